package analyzer

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"
)

const (
	svgMarginX   = 40
	svgMarginY   = 30
	svgRowHeight = 72
	svgNodeH     = 40
	svgCharW     = 7
	svgMinNodeW  = 80
	svgMaxLabel  = 48
	svgLaneGap   = 14
)

type placed struct {
	node Node
	x, y float64 // center
	w, h float64
}

// RenderSVG lays the graph out top to bottom in creation order and returns
// standalone SVG markup. Every node is a <g id="<node id>" class="node">
// group so clients can highlight it by id.
func RenderSVG(g *Graph) string {
	width := svgMinNodeW
	for _, n := range g.Nodes {
		if w := nodeWidth(n.Label); w > width {
			width = w
		}
	}

	backLanes, skipLanes := 0, 0
	for _, e := range g.Edges {
		src, dst := g.Position(e.Source), g.Position(e.Target)
		switch {
		case src < 0 || dst < 0:
		case dst <= src:
			backLanes++
		case dst > src+1:
			skipLanes++
		}
	}

	centerX := float64(svgMarginX + skipLanes*svgLaneGap + width/2)
	canvasW := svgMarginX*2 + (skipLanes+backLanes)*svgLaneGap + width
	canvasH := svgMarginY*2 + len(g.Nodes)*svgRowHeight

	nodes := make([]placed, len(g.Nodes))
	for i, n := range g.Nodes {
		nodes[i] = placed{
			node: n,
			x:    centerX,
			y:    float64(svgMarginY + i*svgRowHeight + svgNodeH/2),
			w:    float64(nodeWidth(n.Label)),
			h:    svgNodeH,
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">`, canvasW, canvasH, canvasW, canvasH)
	b.WriteString("\n")
	b.WriteString(`<defs><marker id="arrow" viewBox="0 0 10 10" refX="10" refY="5" markerWidth="8" markerHeight="8" orient="auto-start-reverse"><path d="M 0 0 L 10 5 L 0 10 z" fill="#333"/></marker></defs>`)
	b.WriteString("\n")

	backLane, skipLane := 0, 0
	for i, e := range g.Edges {
		src, dst := g.Position(e.Source), g.Position(e.Target)
		if src < 0 || dst < 0 {
			continue
		}
		from, to := nodes[src], nodes[dst]

		var d string
		switch {
		case dst == src+1:
			d = fmt.Sprintf("M %.1f %.1f L %.1f %.1f", from.x, from.y+from.h/2, to.x, to.y-to.h/2)
		case dst > src:
			skipLane++
			laneX := centerX - float64(width)/2 - float64(skipLane*svgLaneGap)
			d = fmt.Sprintf("M %.1f %.1f L %.1f %.1f L %.1f %.1f L %.1f %.1f",
				from.x-from.w/2, from.y, laneX, from.y, laneX, to.y, to.x-to.w/2, to.y)
		default:
			backLane++
			laneX := centerX + float64(width)/2 + float64(backLane*svgLaneGap)
			d = fmt.Sprintf("M %.1f %.1f L %.1f %.1f L %.1f %.1f L %.1f %.1f",
				from.x+from.w/2, from.y, laneX, from.y, laneX, to.y, to.x+to.w/2, to.y)
		}

		fmt.Fprintf(&b, `<g id="edge%d" class="edge"><title>%s&#45;&gt;%s</title><path d="%s" fill="none" stroke="#333" marker-end="url(#arrow)"/></g>`,
			i+1, html.EscapeString(e.Source), html.EscapeString(e.Target), d)
		b.WriteString("\n")
	}

	for _, p := range nodes {
		writeNode(&b, p)
	}

	b.WriteString("</svg>\n")
	return b.String()
}

func writeNode(b *strings.Builder, p placed) {
	id := html.EscapeString(p.node.ID)
	fill := p.node.Fill
	if fill == "" {
		fill = "white"
	}

	fmt.Fprintf(b, `<g id="%s" class="node"><title>%s</title>`, id, id)

	left, right := p.x-p.w/2, p.x+p.w/2
	top, bottom := p.y-p.h/2, p.y+p.h/2
	switch p.node.Shape {
	case ShapeOval:
		fmt.Fprintf(b, `<ellipse cx="%.1f" cy="%.1f" rx="%.1f" ry="%.1f" fill="%s" stroke="black"/>`, p.x, p.y, p.w/2, p.h/2, fill)
	case ShapeDiamond:
		fmt.Fprintf(b, `<polygon points="%.1f,%.1f %.1f,%.1f %.1f,%.1f %.1f,%.1f" fill="%s" stroke="black"/>`,
			p.x, top, right, p.y, p.x, bottom, left, p.y, fill)
	case ShapeParallelogram:
		const slant = 12
		fmt.Fprintf(b, `<polygon points="%.1f,%.1f %.1f,%.1f %.1f,%.1f %.1f,%.1f" fill="%s" stroke="black"/>`,
			left+slant, top, right, top, right-slant, bottom, left, bottom, fill)
	default:
		fmt.Fprintf(b, `<rect x="%.1f" y="%.1f" width="%.1f" height="%.1f" fill="%s" stroke="black"/>`, left, top, p.w, p.h, fill)
	}

	fmt.Fprintf(b, `<text x="%.1f" y="%.1f" text-anchor="middle" dominant-baseline="middle" font-family="Helvetica,sans-serif" font-size="12">%s</text></g>`,
		p.x, p.y, html.EscapeString(truncateLabel(p.node.Label)))
	b.WriteString("\n")
}

func nodeWidth(label string) int {
	w := utf8.RuneCountInString(truncateLabel(label))*svgCharW + 40
	if w < svgMinNodeW {
		return svgMinNodeW
	}
	return w
}

func truncateLabel(label string) string {
	label = strings.Join(strings.Fields(label), " ")
	if utf8.RuneCountInString(label) <= svgMaxLabel {
		return label
	}
	runes := []rune(label)
	return string(runes[:svgMaxLabel-3]) + "..."
}
