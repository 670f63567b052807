package framegraph

import (
	"fmt"
	"io"
	"strings"
)

// WriteDOT renders the plan as a Graphviz digraph. Passes are boxes,
// resources are ellipses, culled nodes are dashed and grey. Edges run from
// resources to the passes that read them and from passes to the resources
// they write.
func (p *Plan) WriteDOT(w io.Writer) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "digraph %q {\n", p.Label)
	sb.WriteString("\trankdir=LR;\n")
	sb.WriteString("\tnode [fontname=\"Helvetica\", fontsize=10];\n")

	for i := range p.Passes {
		pp := &p.Passes[i]
		label := fmt.Sprintf("%s\\n%v b%d", pp.Name, pp.Kind, pp.Batch)
		if !pp.Culled {
			label += " " + pp.Queue.String()
		}
		fmt.Fprintf(&sb, "\tp%d [shape=box, label=\"%s\"%s];\n", i, escapeDOT(label), culledStyle(pp.Culled))
	}
	for i := range p.Resources {
		rp := &p.Resources[i]
		shape := "ellipse"
		if rp.Imported {
			shape = "doubleoctagon"
		}
		fmt.Fprintf(&sb, "\tr%d [shape=%s, label=\"%s\"%s];\n", i, shape, escapeDOT(rp.Label), culledStyle(rp.Culled))
	}
	for i := range p.Passes {
		pp := &p.Passes[i]
		for _, r := range pp.Reads {
			fmt.Fprintf(&sb, "\tr%d -> p%d;\n", r, i)
		}
		for _, r := range pp.Writes {
			fmt.Fprintf(&sb, "\tp%d -> r%d;\n", i, r)
		}
	}
	sb.WriteString("}\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func culledStyle(culled bool) string {
	if culled {
		return ", style=dashed, color=grey, fontcolor=grey"
	}
	return ""
}

// escapeDOT escapes quotes in a label. Backslash sequences such as \n are
// kept so labels can break lines.
func escapeDOT(s string) string {
	return strings.ReplaceAll(s, `"`, `\"`)
}
