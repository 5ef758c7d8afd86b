package screen

import (
	"context"
	log "log/slog"
	"strings"
	"time"
)

type Config struct {
	// MaxDepth stops traversal of pathologically deep trees.
	MaxDepth       int
	SendRetries    int
	SendRetryDelay time.Duration
	Apps           map[string]ComposeFields
	SendLabels     []string
}

func (c *Config) withDefaults() {
	if c.MaxDepth <= 0 {
		c.MaxDepth = 64
	}
	if c.SendRetries <= 0 {
		c.SendRetries = 3
	}
	if c.SendRetryDelay <= 0 {
		c.SendRetryDelay = 300 * time.Millisecond
	}
	if c.Apps == nil {
		c.Apps = DefaultApps
	}
	if c.SendLabels == nil {
		c.SendLabels = DefaultSendLabels
	}
}

// Automation finds and drives elements of the foreground window. A missing
// window is a normal state: lookups come back empty and actions return false.
type Automation struct {
	dev Device
	cfg Config
}

func New(dev Device, cfg Config) *Automation {
	cfg.withDefaults()
	return &Automation{dev: dev, cfg: cfg}
}

type frame struct {
	node  Node
	depth int
}

// walk visits the tree depth-first in document order until visit returns
// false. Nodes deeper than MaxDepth are not visited.
func (a *Automation) walk(root Node, visit func(n Node, depth int) bool) {
	if root == nil {
		return
	}

	stack := []frame{{node: root}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if !visit(f.node, f.depth) {
			return
		}
		if f.depth >= a.cfg.MaxDepth {
			continue
		}

		children := f.node.Children()
		for i := len(children) - 1; i >= 0; i-- {
			if children[i] != nil {
				stack = append(stack, frame{node: children[i], depth: f.depth + 1})
			}
		}
	}
}

func (a *Automation) find(root Node, match func(Node) bool) (ScreenNode, bool) {
	var (
		found ScreenNode
		ok    bool
	)
	a.walk(root, func(n Node, depth int) bool {
		if match(n) {
			found, ok = snapshot(n, depth), true
			return false
		}
		return true
	})
	return found, ok
}

// ReadAllText flattens the current window into its non-empty text nodes.
func (a *Automation) ReadAllText(ctx context.Context) []ScreenNode {
	_, nodes := a.Snapshot(ctx)
	return nodes
}

// Snapshot reads the foreground package and its text nodes from one tree.
func (a *Automation) Snapshot(ctx context.Context) (string, []ScreenNode) {
	root := a.dev.Root(ctx)
	if root == nil {
		return "", nil
	}

	var out []ScreenNode
	a.walk(root, func(n Node, depth int) bool {
		if strings.TrimSpace(label(n)) != "" {
			out = append(out, snapshot(n, depth))
		}
		return true
	})
	return root.Package(), out
}

// ForegroundApp is the package name of the window being automated.
func (a *Automation) ForegroundApp(ctx context.Context) string {
	root := a.dev.Root(ctx)
	if root == nil {
		return ""
	}
	return root.Package()
}

// FindByText returns the first node whose text or description matches:
// case-insensitively equal when exact, otherwise containing text.
func (a *Automation) FindByText(ctx context.Context, text string, exact bool) (ScreenNode, bool) {
	return a.find(a.dev.Root(ctx), textMatcher(text, exact))
}

func (a *Automation) FindByID(ctx context.Context, id string) (ScreenNode, bool) {
	return a.find(a.dev.Root(ctx), idMatcher(id))
}

func textMatcher(text string, exact bool) func(Node) bool {
	want := strings.ToLower(strings.TrimSpace(text))
	return func(n Node) bool {
		if want == "" {
			return false
		}
		for _, s := range []string{n.Text(), n.Description()} {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if exact && s == want || !exact && strings.Contains(s, want) {
				return true
			}
		}
		return false
	}
}

// idMatcher accepts full resource ids and bare names ("send" matches
// "com.whatsapp:id/send").
func idMatcher(id string) func(Node) bool {
	return func(n Node) bool {
		nid := n.ID()
		if id == "" || nid == "" {
			return false
		}
		return nid == id || strings.HasSuffix(nid, ":id/"+id)
	}
}

// Click activates sn. Many toolkits only mark the container clickable, so
// the nearest clickable ancestor is clicked instead; if there is none the
// node's center is tapped.
func (a *Automation) Click(ctx context.Context, sn ScreenNode) bool {
	n := sn.node
	if n == nil {
		return false
	}

	for cur, hops := n, 0; cur != nil && hops <= a.cfg.MaxDepth; cur, hops = cur.Parent(), hops+1 {
		if !cur.Clickable() {
			continue
		}
		if a.dev.Perform(ctx, cur, ActionClick) {
			return true
		}
		log.Debug("Click action refused, tapping instead", "id", cur.ID())
		break
	}

	b := n.Bounds()
	if b.Empty() {
		return false
	}
	x, y := b.Center()
	return a.dev.Tap(ctx, x, y)
}

// ClickText clicks the first node containing text.
func (a *Automation) ClickText(ctx context.Context, text string) bool {
	sn, ok := a.FindByText(ctx, text, false)
	if !ok {
		return false
	}
	return a.Click(ctx, sn)
}

// TypeInto replaces the content of the field named by targetID, or of the
// focused editable field when targetID is empty.
func (a *Automation) TypeInto(ctx context.Context, text, targetID string) bool {
	root := a.dev.Root(ctx)
	if root == nil {
		return false
	}

	var (
		sn ScreenNode
		ok bool
	)
	if targetID != "" {
		sn, ok = a.find(root, idMatcher(targetID))
	} else {
		sn, ok = a.find(root, func(n Node) bool { return n.Editable() && n.Focused() })
		if !ok {
			sn, ok = a.find(root, func(n Node) bool { return n.Editable() })
		}
	}
	if !ok {
		return false
	}

	return a.dev.SetText(ctx, sn.node, text)
}

// SendComposedMessage types text into the foreground chat app and presses send.
func (a *Automation) SendComposedMessage(ctx context.Context, text string) bool {
	pkg := a.ForegroundApp(ctx)
	if pkg == "" {
		return false
	}
	fields := a.cfg.Apps[pkg]

	if !a.TypeInto(ctx, text, fields.Input) && (fields.Input == "" || !a.TypeInto(ctx, text, "")) {
		log.Warn("No message field found", "app", pkg)
		return false
	}

	if fields.Send != "" {
		for attempt := 1; attempt <= a.cfg.SendRetries; attempt++ {
			// the send button often renders only after the text lands
			if !sleep(ctx, time.Duration(attempt)*a.cfg.SendRetryDelay) {
				return false
			}
			if sn, ok := a.FindByID(ctx, fields.Send); ok && a.Click(ctx, sn) {
				return true
			}
			log.Debug("Send button not ready", "app", pkg, "attempt", attempt)
		}
	}

	root := a.dev.Root(ctx)
	for _, l := range a.cfg.SendLabels {
		if sn, ok := a.find(root, textMatcher(l, true)); ok {
			return a.Click(ctx, sn)
		}
	}

	log.Warn("No send button found", "app", pkg)
	return false
}

// Scroll scrolls the first scrollable container. Direction is one of
// down/forward/right or up/backward/left.
func (a *Automation) Scroll(ctx context.Context, direction string) bool {
	action := ActionScrollForward
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up", "backward", "back", "left":
		action = ActionScrollBackward
	}

	sn, ok := a.find(a.dev.Root(ctx), func(n Node) bool { return n.Scrollable() })
	if !ok {
		return false
	}
	return a.dev.Perform(ctx, sn.node, action)
}

func (a *Automation) Global(ctx context.Context, action GlobalAction) bool {
	return a.dev.Global(ctx, action)
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
