package agent

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"

	"voxpilot/internal/screen"
)

// Automator drives the foreground application. *screen.Automation
// implements it.
type Automator interface {
	Snapshot(ctx context.Context) (pkg string, nodes []screen.ScreenNode)
	FindByText(ctx context.Context, text string, exact bool) (screen.ScreenNode, bool)
	Click(ctx context.Context, n screen.ScreenNode) bool
	TypeInto(ctx context.Context, text, targetID string) bool
	SendComposedMessage(ctx context.Context, text string) bool
	Scroll(ctx context.Context, direction string) bool
	Global(ctx context.Context, action screen.GlobalAction) bool
}

// Utilities are device features reached without the element tree.
type Utilities interface {
	OpenApp(ctx context.Context, name string) error
	Volume(ctx context.Context, direction string) error
	SendSMS(ctx context.Context, to, text string) error
	Call(ctx context.Context, to string) error
	WebSearch(ctx context.Context, query string) error
}

// Switches toggles home devices.
type Switches interface {
	Flashlight(ctx context.Context, on bool) error
}

const (
	screenNodeLimit = 40
	screenCharLimit = 1500
)

var globalTargets = map[string]screen.GlobalAction{
	"back":          screen.GlobalBack,
	"home":          screen.GlobalHome,
	"recents":       screen.GlobalRecents,
	"recent apps":   screen.GlobalRecents,
	"notifications": screen.GlobalNotifications,
}

type dispatcher struct {
	auto     Automator
	util     Utilities
	switches Switches
}

// dispatch runs a and returns text to speak after the reply, if any.
func (d *dispatcher) dispatch(ctx context.Context, a Action) (string, error) {
	switch a := a.(type) {
	case Speak:
		return a.Text, nil

	case ReadScreen:
		if d.auto == nil {
			return "", screen.ErrUnavailable
		}
		_, nodes := d.auto.Snapshot(ctx)
		text := screenText(nodes, screenCharLimit)
		if text == "" {
			return "I can't see any text on the screen.", nil
		}
		return text, nil

	case Click:
		if d.auto == nil {
			return "", screen.ErrUnavailable
		}
		n, ok := d.auto.FindByText(ctx, a.Target, true)
		if !ok {
			n, ok = d.auto.FindByText(ctx, a.Target, false)
		}
		if !ok {
			return "", fmt.Errorf("click %q: %w", a.Target, screen.ErrUnavailable)
		}
		return "", check(d.auto.Click(ctx, n), "click %q", a.Target)

	case Type:
		if d.auto == nil {
			return "", screen.ErrUnavailable
		}
		return "", check(d.auto.TypeInto(ctx, a.Text, a.TargetID), "type into %q", a.TargetID)

	case SendMessage:
		if d.auto == nil {
			return "", screen.ErrUnavailable
		}
		return "", check(d.auto.SendComposedMessage(ctx, a.Text), "send message")

	case Scroll:
		if d.auto == nil {
			return "", screen.ErrUnavailable
		}
		return "", check(d.auto.Scroll(ctx, a.Direction), "scroll %s", a.Direction)

	case Navigate:
		return "", d.navigate(ctx, a.Target)

	case OpenApp:
		if d.util == nil {
			return "", fmt.Errorf("%w: open_app needs device utilities", ErrUnsupportedAction)
		}
		return "", d.util.OpenApp(ctx, a.App)

	case WebSearch:
		if d.util == nil {
			return "", fmt.Errorf("%w: web_search needs device utilities", ErrUnsupportedAction)
		}
		return "", d.util.WebSearch(ctx, a.Query)

	case Volume:
		if d.util == nil {
			return "", fmt.Errorf("%w: volume needs device utilities", ErrUnsupportedAction)
		}
		return "", d.util.Volume(ctx, a.Direction)

	case SendSMS:
		if d.util == nil {
			return "", fmt.Errorf("%w: send_sms needs device utilities", ErrUnsupportedAction)
		}
		return "", d.util.SendSMS(ctx, a.To, a.Text)

	case Call:
		if d.util == nil {
			return "", fmt.Errorf("%w: call needs device utilities", ErrUnsupportedAction)
		}
		return "", d.util.Call(ctx, a.To)

	case Flashlight:
		if d.switches == nil {
			return "", fmt.Errorf("%w: no flashlight", ErrUnsupportedAction)
		}
		return "", d.switches.Flashlight(ctx, a.On)
	}

	return "", fmt.Errorf("%w: %T", ErrUnsupportedAction, a)
}

// navigate handles system targets first, then apps, then on-screen labels.
func (d *dispatcher) navigate(ctx context.Context, target string) error {
	key := strings.ToLower(strings.TrimSpace(target))
	if g, ok := globalTargets[key]; ok {
		if d.auto == nil {
			return screen.ErrUnavailable
		}
		return check(d.auto.Global(ctx, g), "navigate %s", key)
	}

	if d.util != nil {
		err := d.util.OpenApp(ctx, key)
		if err == nil {
			return nil
		}
		log.Debug("Navigate target is not an app", "target", key, "err", err)
	}

	if d.auto == nil {
		return screen.ErrUnavailable
	}
	n, ok := d.auto.FindByText(ctx, target, false)
	if !ok {
		return fmt.Errorf("navigate %q: %w", target, screen.ErrUnavailable)
	}
	return check(d.auto.Click(ctx, n), "navigate %q", target)
}

func check(ok bool, format string, args ...any) error {
	if ok {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, screen.ErrUnavailable)...)
}

// screenText joins node labels in reading order, stopping before limit
// characters.
func screenText(nodes []screen.ScreenNode, limit int) string {
	var b strings.Builder
	seen := make(map[string]bool)
	for _, n := range nodes {
		t := strings.Join(strings.Fields(n.Text), " ")
		if t == "" || seen[t] {
			continue
		}
		if b.Len()+len(t)+2 > limit {
			break
		}
		seen[t] = true
		if b.Len() > 0 {
			b.WriteString(". ")
		}
		b.WriteString(t)
	}
	return b.String()
}

// screenContext describes the foreground app for the completion request.
func (d *dispatcher) screenContext(ctx context.Context) string {
	if d.auto == nil {
		return ""
	}
	pkg, nodes := d.auto.Snapshot(ctx)
	if pkg == "" {
		return ""
	}
	if len(nodes) > screenNodeLimit {
		nodes = nodes[:screenNodeLimit]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Foreground app: %s\n", pkg)
	for _, n := range nodes {
		line := strings.Join(strings.Fields(n.Text), " ")
		if n.Clickable {
			line += " [button]"
		}
		if n.Editable {
			line += " [input"
			if n.ElementID != "" {
				line += " id=" + n.ElementID
			}
			line += "]"
		}
		if b.Len()+len(line)+1 > screenCharLimit {
			break
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return strings.TrimRight(b.String(), "\n")
}
