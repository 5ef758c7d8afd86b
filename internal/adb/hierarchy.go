package adb

import (
	"encoding/xml"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"voxpilot/internal/screen"
)

var boundsRe = regexp.MustCompile(`\[(-?\d+),(-?\d+)\]\[(-?\d+),(-?\d+)\]`)

// xmlNode mirrors one <node> of a uiautomator dump.
type xmlNode struct {
	Text        string    `xml:"text,attr"`
	ResourceID  string    `xml:"resource-id,attr"`
	Class       string    `xml:"class,attr"`
	Package     string    `xml:"package,attr"`
	ContentDesc string    `xml:"content-desc,attr"`
	Clickable   string    `xml:"clickable,attr"`
	Focused     string    `xml:"focused,attr"`
	Scrollable  string    `xml:"scrollable,attr"`
	Bounds      string    `xml:"bounds,attr"`
	Nodes       []xmlNode `xml:"node"`
}

type hierarchy struct {
	XMLName xml.Name  `xml:"hierarchy"`
	Nodes   []xmlNode `xml:"node"`
}

// uiNode is a parsed dump element with a back pointer to its parent.
type uiNode struct {
	text, desc, id, class, pkg string
	bounds                     screen.Bounds
	clickable, focused         bool
	scrollable                 bool

	parent   *uiNode
	children []*uiNode
}

func (n *uiNode) Text() string          { return n.text }
func (n *uiNode) Description() string   { return n.desc }
func (n *uiNode) ID() string            { return n.id }
func (n *uiNode) Class() string         { return n.class }
func (n *uiNode) Package() string       { return n.pkg }
func (n *uiNode) Bounds() screen.Bounds { return n.bounds }
func (n *uiNode) Clickable() bool       { return n.clickable }
func (n *uiNode) Scrollable() bool      { return n.scrollable }
func (n *uiNode) Focused() bool         { return n.focused }

func (n *uiNode) Editable() bool {
	return strings.HasSuffix(n.class, "EditText") || strings.HasSuffix(n.class, "AutoCompleteTextView")
}

func (n *uiNode) Parent() screen.Node {
	if n.parent == nil {
		return nil
	}
	return n.parent
}

func (n *uiNode) Children() []screen.Node {
	out := make([]screen.Node, len(n.children))
	for i, c := range n.children {
		out[i] = c
	}
	return out
}

// parseDump turns the output of "uiautomator dump && cat" into a tree.
// Anything adb prints around the document is ignored.
func parseDump(out string) (*uiNode, error) {
	start := strings.Index(out, "<?xml")
	if start < 0 {
		start = strings.Index(out, "<hierarchy")
	}
	end := strings.LastIndex(out, "</hierarchy>")
	if start < 0 || end < start {
		return nil, fmt.Errorf("no hierarchy in dump output (%d bytes)", len(out))
	}
	doc := out[start : end+len("</hierarchy>")]

	var h hierarchy
	if err := xml.Unmarshal([]byte(doc), &h); err != nil {
		return nil, fmt.Errorf("parse dump: %w", err)
	}

	switch len(h.Nodes) {
	case 0:
		return nil, nil
	case 1:
		return build(&h.Nodes[0], nil), nil
	}

	// several windows: hang them under a synthetic container
	root := &uiNode{class: "android.view.View", pkg: h.Nodes[0].Package}
	for i := range h.Nodes {
		root.children = append(root.children, build(&h.Nodes[i], root))
	}
	return root, nil
}

func build(x *xmlNode, parent *uiNode) *uiNode {
	n := &uiNode{
		text:       x.Text,
		desc:       x.ContentDesc,
		id:         x.ResourceID,
		class:      x.Class,
		pkg:        x.Package,
		bounds:     parseBounds(x.Bounds),
		clickable:  x.Clickable == "true",
		focused:    x.Focused == "true",
		scrollable: x.Scrollable == "true",
		parent:     parent,
	}
	for i := range x.Nodes {
		n.children = append(n.children, build(&x.Nodes[i], n))
	}
	return n
}

func parseBounds(s string) screen.Bounds {
	m := boundsRe.FindStringSubmatch(s)
	if len(m) != 5 {
		return screen.Bounds{}
	}
	v := make([]int, 4)
	for i := range v {
		v[i], _ = strconv.Atoi(m[i+1])
	}
	return screen.Bounds{Left: v[0], Top: v[1], Right: v[2], Bottom: v[3]}
}
