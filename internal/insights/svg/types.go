// Package svg renders small server-side charts as inline SVG.
package svg

// Point is one labelled value of a line chart.
type Point struct {
	Label string
	Value float64
}

// Group is one x-axis slot of a bar chart holding a value per series.
type Group struct {
	Label  string
	Values []float64
}

// Series names and colours one set of bars.
type Series struct {
	Label string
	Color string
}

// TickFormat renders an axis value.
type TickFormat func(float64) string

// LineOpts customises the line chart renderer.
type LineOpts struct {
	Title       string
	Description string
	StrokeColor string
	FillColor   string
	AxisColor   string
	GridColor   string
	Padding     float64
	ShowDots    bool
	TickCount   int
	Format      TickFormat
}

// BarOpts customises the bar chart renderer. Max pins the top of the scale,
// useful for percentages; zero scales to the data.
type BarOpts struct {
	Title       string
	Description string
	Series      []Series
	AxisColor   string
	GridColor   string
	Padding     float64
	TickCount   int
	Max         float64
	Format      TickFormat
}

// GaugeOpts customises the ring gauge renderer.
type GaugeOpts struct {
	Title      string
	Label      string
	Caption    string
	Color      string
	TrackColor string
	Stroke     float64
}

// Defaults for the dashboard charts.
const (
	DefaultWidth   = 720
	DefaultHeight  = 240
	DefaultPadding = 32.0
	DefaultTicks   = 5
	DefaultGauge   = 140
)

var palette = []string{"#6366f1", "#10b981", "#f59e0b", "#f43f5e", "#0ea5e9"}
