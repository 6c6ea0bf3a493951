package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"
)

// Gauge renders a ring filled to progress, a value between 0 and 1.
func Gauge(size int, progress float64, opts GaugeOpts) template.HTML {
	if size <= 0 {
		size = DefaultGauge
	}
	if math.IsNaN(progress) || progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	stroke := opts.Stroke
	if stroke <= 0 {
		stroke = 10
	}
	color := fallback(opts.Color, palette[1])
	track := fallback(opts.TrackColor, "#334155")

	center := float64(size) / 2
	radius := center - stroke
	circumference := 2 * math.Pi * radius
	offset := circumference * (1 - progress)
	titleID := makeID(opts.Title, "gauge-title")

	var b strings.Builder
	fmt.Fprintf(&b, "<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s\">", size, size, titleID)
	fmt.Fprintf(&b, "<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Gauge")))
	fmt.Fprintf(&b, "<circle cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\" fill=\"none\" stroke=\"%s\" stroke-width=\"%.1f\"></circle>", center, center, radius, track, stroke)
	fmt.Fprintf(&b, "<circle cx=\"%.2f\" cy=\"%.2f\" r=\"%.2f\" fill=\"none\" stroke=\"%s\" stroke-width=\"%.1f\" stroke-linecap=\"round\" stroke-dasharray=\"%.2f\" stroke-dashoffset=\"%.2f\" transform=\"rotate(-90 %.2f %.2f)\"></circle>",
		center, center, radius, color, stroke, circumference, offset, center, center)
	if opts.Label != "" {
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"#e2e8f0\" font-size=\"22\" font-weight=\"600\" text-anchor=\"middle\">%s</text>", center, center+4, template.HTMLEscapeString(opts.Label))
	}
	if opts.Caption != "" {
		fmt.Fprintf(&b, "<text x=\"%.2f\" y=\"%.2f\" fill=\"#94a3b8\" font-size=\"11\" text-anchor=\"middle\">%s</text>", center, center+22, template.HTMLEscapeString(opts.Caption))
	}
	b.WriteString("</svg>")
	return template.HTML(b.String())
}
