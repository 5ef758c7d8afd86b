package screen

import (
	"context"
	"errors"
	"time"
)

var ErrUnavailable = errors.New("no automation target on screen")

type Bounds struct {
	Left, Top, Right, Bottom int
}

func (b Bounds) Center() (x, y int) {
	return (b.Left + b.Right) / 2, (b.Top + b.Bottom) / 2
}

func (b Bounds) Empty() bool {
	return b.Right <= b.Left || b.Bottom <= b.Top
}

// Node is one element of the platform's on-screen tree. Parent returns a
// nil interface at the root.
type Node interface {
	Text() string
	Description() string
	ID() string
	Class() string
	Package() string
	Bounds() Bounds
	Clickable() bool
	Editable() bool
	Scrollable() bool
	Focused() bool
	Parent() Node
	Children() []Node
}

type NodeAction int

const (
	ActionClick NodeAction = iota + 1
	ActionScrollForward
	ActionScrollBackward
	ActionFocus
)

type GlobalAction int

const (
	GlobalBack GlobalAction = iota + 1
	GlobalHome
	GlobalRecents
	GlobalNotifications
)

// Device exposes the foreground window and the actions that can be
// performed on it. Every method reports failure instead of panicking when
// the window went away.
type Device interface {
	// Root returns nil when nothing can be automated right now.
	Root(ctx context.Context) Node
	Perform(ctx context.Context, n Node, action NodeAction) bool
	SetText(ctx context.Context, n Node, text string) bool
	Tap(ctx context.Context, x, y int) bool
	Swipe(ctx context.Context, x1, y1, x2, y2 int, d time.Duration) bool
	Global(ctx context.Context, action GlobalAction) bool
}

// ScreenNode is a flattened snapshot of one node. It is only valid for the
// tree it was read from.
type ScreenNode struct {
	Text      string
	ElementID string
	ClassName string
	Bounds    Bounds
	Clickable bool
	Editable  bool
	Depth     int

	node Node
}

func snapshot(n Node, depth int) ScreenNode {
	return ScreenNode{
		Text:      label(n),
		ElementID: n.ID(),
		ClassName: n.Class(),
		Bounds:    n.Bounds(),
		Clickable: n.Clickable(),
		Editable:  n.Editable(),
		Depth:     depth,
		node:      n,
	}
}

// label is the visible text of n, falling back to its accessibility
// description for icon-only elements.
func label(n Node) string {
	if t := n.Text(); t != "" {
		return t
	}
	return n.Description()
}
