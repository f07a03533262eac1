package helpers

import (
	"fmt"
	"html"
	"math"
	"strings"
)

// Chart is what plot() draws.
type Chart struct {
	Kind   string // line, bar
	Title  string
	Series []ChartSeries
}

// ChartSeries is one named run of values.
type ChartSeries struct {
	Name   string
	Values []float64
}

var palette = []string{"#4e79a7", "#f28e2b", "#e15759", "#76b7b2", "#59a14f", "#edc948"}

const margin = 32.0

// RenderSVG draws c into a width x height SVG document.
func RenderSVG(c Chart, width, height int) []byte {
	w, h := float64(width), float64(height)
	plotW, plotH := w-2*margin, h-2*margin

	lo, hi, longest := bounds(c.Series)
	if c.Kind == "bar" {
		// bars grow from zero, so the axis must include it
		lo, hi = math.Min(lo, 0), math.Max(hi, 0)
	}
	scaleY := func(v float64) float64 {
		if hi == lo {
			return margin + plotH/2
		}
		return margin + plotH - (v-lo)/(hi-lo)*plotH
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`+"\n", width, height, width, height)
	fmt.Fprintf(&b, `<rect width="100%%" height="100%%" fill="#ffffff"/>`+"\n")
	if c.Title != "" {
		fmt.Fprintf(&b, `<text x="%.1f" y="%.1f" text-anchor="middle" font-family="sans-serif" font-size="14">%s</text>`+"\n",
			w/2, margin/2+5, html.EscapeString(c.Title))
	}
	fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333"/>`+"\n", margin, margin+plotH, margin+plotW, margin+plotH)
	fmt.Fprintf(&b, `<line x1="%.1f" y1="%.1f" x2="%.1f" y2="%.1f" stroke="#333"/>`+"\n", margin, margin, margin, margin+plotH)

	switch c.Kind {
	case "bar":
		if longest > 0 && len(c.Series) > 0 {
			slot := plotW / float64(longest)
			barW := slot * 0.8 / float64(len(c.Series))
			base := scaleY(0)
			for si, s := range c.Series {
				color := palette[si%len(palette)]
				for i, v := range s.Values {
					x := margin + float64(i)*slot + slot*0.1 + float64(si)*barW
					y := scaleY(v)
					top, height := math.Min(y, base), math.Abs(base-y)
					fmt.Fprintf(&b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s"><title>%s</title></rect>`+"\n",
						x, top, barW, height, color, html.EscapeString(s.Name))
				}
			}
		}
	default:
		for si, s := range c.Series {
			if len(s.Values) == 0 {
				continue
			}
			step := 0.0
			if longest > 1 {
				step = plotW / float64(longest-1)
			}
			points := make([]string, len(s.Values))
			for i, v := range s.Values {
				points[i] = fmt.Sprintf("%.1f,%.1f", margin+float64(i)*step, scaleY(v))
			}
			fmt.Fprintf(&b, `<polyline fill="none" stroke="%s" stroke-width="2" points="%s"><title>%s</title></polyline>`+"\n",
				palette[si%len(palette)], strings.Join(points, " "), html.EscapeString(s.Name))
		}
	}

	b.WriteString("</svg>\n")
	return []byte(b.String())
}

func bounds(series []ChartSeries) (lo, hi float64, longest int) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range series {
		if len(s.Values) > longest {
			longest = len(s.Values)
		}
		for _, v := range s.Values {
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	if math.IsInf(lo, 1) {
		return 0, 0, longest
	}
	return lo, hi, longest
}
