package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Bars renders a grouped bar chart with one bar per series in each group.
func Bars(width, height int, groups []Group, opts BarOpts) (template.HTML, error) {
	if len(groups) == 0 {
		return "", fmt.Errorf("svg: groups required")
	}
	series := opts.Series
	if len(series) == 0 {
		series = []Series{{Label: "Value"}}
	}
	var values []float64
	for _, g := range groups {
		if len(g.Values) != len(series) {
			return "", fmt.Errorf("svg: group %q has %d values, want %d", g.Label, len(g.Values), len(series))
		}
		values = append(values, g.Values...)
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	tickCount := opts.TickCount
	if tickCount <= 0 {
		tickCount = DefaultTicks
	}
	format := opts.Format
	if format == nil {
		format = CompactTick
	}
	axisColor := fallback(opts.AxisColor, "#94a3b8")
	gridColor := fallback(opts.GridColor, "#334155")

	chartWidth := float64(width) - 2*padding
	chartHeight := float64(height) - 2*padding
	if chartWidth <= 0 || chartHeight <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}

	minVal, maxVal := bounds(values)
	if opts.Max > 0 {
		maxVal = opts.Max
	}
	sc := newScale(minVal, maxVal, padding, chartHeight)
	zeroY := sc.y(0)
	chartBottom := padding + chartHeight

	groupWidth := chartWidth / float64(len(groups))
	barWidth := groupWidth * 0.7 / float64(len(series))

	titleID := makeID(opts.Title, "bar-title")
	descID := makeID(opts.Title, "bar-desc")

	var b strings.Builder
	fmt.Fprintf(&b, "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", width, height, titleID, descID)
	fmt.Fprintf(&b, "<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Bar chart")))
	fmt.Fprintf(&b, "<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Grouped bar comparison")))

	for i := 0; i <= tickCount; i++ {
		value := sc.tick(i, tickCount)
		y := sc.y(value)
		fmt.Fprintf(&b, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"0.5\" stroke-dasharray=\"2,4\" aria-hidden=\"true\"></line>", padding, y, padding+chartWidth, y, gridColor)
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"end\">%s</text>", padding-6, y+4, axisColor, template.HTMLEscapeString(format(value)))
	}

	fmt.Fprintf(&b, "<g stroke=\"%s\" aria-label=\"Axes\">", axisColor)
	fmt.Fprintf(&b, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", padding, padding, padding, chartBottom)
	fmt.Fprintf(&b, "<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", padding, zeroY, padding+chartWidth, zeroY)
	b.WriteString("</g>")

	for i, g := range groups {
		start := padding + float64(i)*groupWidth + groupWidth*0.15
		for j, v := range g.Values {
			y, h := barPosition(v, sc, zeroY, padding, chartBottom)
			color := fallback(series[j].Color, palette[j%len(palette)])
			fmt.Fprintf(&b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" rx=\"2\" fill=\"%s\"><title>%s %s: %s</title></rect>",
				start+float64(j)*barWidth, y, barWidth*0.9, h, color,
				template.HTMLEscapeString(g.Label), template.HTMLEscapeString(series[j].Label), template.HTMLEscapeString(format(v)))
		}
		center := padding + float64(i)*groupWidth + groupWidth/2
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>", center, chartBottom+14, axisColor, template.HTMLEscapeString(g.Label))
	}

	if len(series) > 1 {
		legendX := padding
		legendY := math.Max(padding-12, 12)
		for j, s := range series {
			color := fallback(s.Color, palette[j%len(palette)])
			fmt.Fprintf(&b, "<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", legendX, legendY-8, color)
			fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", legendX+14, legendY, axisColor, template.HTMLEscapeString(s.Label))
			legendX += 100
		}
	}

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

func barPosition(value float64, sc scale, zeroY, top, bottom float64) (float64, float64) {
	y := sc.y(value)
	if value >= 0 {
		y = math.Max(y, top)
		return y, math.Max(zeroY-y, 0)
	}
	y = math.Min(y, bottom)
	return zeroY, math.Max(y-zeroY, 0)
}
