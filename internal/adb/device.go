package adb

import (
	"context"
	"encoding/base64"
	"fmt"
	log "log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"voxpilot/internal/screen"
)

const (
	dumpFile    = "/data/local/tmp/voxpilot-view.xml"
	adbKeyboard = "com.android.adbkeyboard/.AdbIME"
)

// Runner executes an adb subcommand against one device and returns stdout.
type Runner func(ctx context.Context, args ...string) (string, error)

// ExecRunner runs the adb binary at path, targeting serial when set.
func ExecRunner(path, serial string) Runner {
	if path == "" {
		path = "adb"
	}
	return func(ctx context.Context, args ...string) (string, error) {
		full := args
		if serial != "" {
			full = append([]string{"-s", serial}, args...)
		}
		out, err := exec.CommandContext(ctx, path, full...).Output()
		if err != nil {
			return string(out), fmt.Errorf("adb %s: %w", strings.Join(args, " "), err)
		}
		return string(out), nil
	}
}

// Device drives an Android phone over adb. The on-screen tree comes from
// uiautomator dumps, actions are injected as input events.
type Device struct {
	run Runner

	DumpRetries int
	RetryDelay  time.Duration

	kbOnce sync.Once
	kb     bool
}

func New(run Runner) *Device {
	return &Device{
		run:         run,
		DumpRetries: 3,
		RetryDelay:  500 * time.Millisecond,
	}
}

func (d *Device) shell(ctx context.Context, cmd string) (string, error) {
	return d.run(ctx, "shell", cmd)
}

func (d *Device) Root(ctx context.Context) screen.Node {
	var lastErr error
	for i := 0; i < d.DumpRetries; i++ {
		if i > 0 {
			// a previous dump can wedge the service
			d.shell(ctx, "pkill uiautomator")
			if !sleep(ctx, d.RetryDelay) {
				return nil
			}
		}

		out, err := d.shell(ctx, fmt.Sprintf("uiautomator dump %s >/dev/null && cat %s", dumpFile, dumpFile))
		if err != nil {
			lastErr = err
			continue
		}
		root, err := parseDump(out)
		if err != nil {
			lastErr = err
			continue
		}
		if root == nil {
			return nil
		}
		return root
	}

	log.Warn("UI dump failed", "err", lastErr)
	return nil
}

func (d *Device) Perform(ctx context.Context, n screen.Node, action screen.NodeAction) bool {
	b := n.Bounds()
	if b.Empty() {
		return false
	}
	x, y := b.Center()
	h := b.Bottom - b.Top

	switch action {
	case screen.ActionClick, screen.ActionFocus:
		return d.Tap(ctx, x, y)
	case screen.ActionScrollForward:
		return d.Swipe(ctx, x, b.Bottom-h/5, x, b.Top+h/5, 300*time.Millisecond)
	case screen.ActionScrollBackward:
		return d.Swipe(ctx, x, b.Top+h/5, x, b.Bottom-h/5, 300*time.Millisecond)
	}

	log.Debug("Unsupported node action", "action", action)
	return false
}

// SetText focuses n and replaces its content. With ADBKeyBoard installed as
// the input method the text goes through its broadcast receiver, which
// handles unicode; otherwise the field is cleared with key events and
// "input text" types ASCII text.
func (d *Device) SetText(ctx context.Context, n screen.Node, text string) bool {
	if !d.Perform(ctx, n, screen.ActionFocus) {
		return false
	}
	if !sleep(ctx, 200*time.Millisecond) {
		return false
	}

	if d.hasKeyboard(ctx) {
		if _, err := d.shell(ctx, "am broadcast -a ADB_CLEAR_TEXT"); err != nil {
			log.Warn("Clear text failed", "err", err)
		}
		enc := base64.StdEncoding.EncodeToString([]byte(text))
		if _, err := d.shell(ctx, "am broadcast -a ADB_INPUT_B64 --es msg "+enc); err == nil {
			return true
		}
	}

	if err := d.clearField(ctx, n); err != nil {
		log.Warn("Clear text failed", "err", err)
		return false
	}
	for _, chunk := range inputChunks(text) {
		if _, err := d.shell(ctx, "input text "+inputEscape(chunk)); err != nil {
			log.Warn("Input text failed", "err", err)
			return false
		}
	}
	return true
}

const (
	keyMoveEnd = 123
	keyDel     = 67

	maxClear = 500
)

// clearField moves the cursor to the end of n and deletes its current text
// in one batched keyevent command.
func (d *Device) clearField(ctx context.Context, n screen.Node) error {
	count := min(utf8.RuneCountInString(n.Text()), maxClear)
	if count == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "input keyevent %d", keyMoveEnd)
	for range count {
		fmt.Fprintf(&b, " %d", keyDel)
	}
	_, err := d.shell(ctx, b.String())
	return err
}

// inputChunks splits text so no chunk contains a literal "%s", which
// "input text" would turn into a space.
func inputChunks(text string) []string {
	parts := strings.Split(text, "%s")
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		if i > 0 {
			p = "s" + p
		}
		if i < len(parts)-1 {
			p += "%"
		}
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (d *Device) hasKeyboard(ctx context.Context) bool {
	d.kbOnce.Do(func() {
		out, err := d.shell(ctx, "settings get secure default_input_method")
		d.kb = err == nil && strings.TrimSpace(out) == adbKeyboard
	})
	return d.kb
}

func (d *Device) Tap(ctx context.Context, x, y int) bool {
	return d.ok(d.shell(ctx, fmt.Sprintf("input tap %d %d", x, y)))
}

func (d *Device) Swipe(ctx context.Context, x1, y1, x2, y2 int, dur time.Duration) bool {
	return d.ok(d.shell(ctx, fmt.Sprintf("input swipe %d %d %d %d %d", x1, y1, x2, y2, dur.Milliseconds())))
}

func (d *Device) Global(ctx context.Context, action screen.GlobalAction) bool {
	switch action {
	case screen.GlobalBack:
		return d.keyevent(ctx, 4)
	case screen.GlobalHome:
		return d.keyevent(ctx, 3)
	case screen.GlobalRecents:
		return d.keyevent(ctx, 187)
	case screen.GlobalNotifications:
		return d.ok(d.shell(ctx, "cmd statusbar expand-notifications"))
	}
	return false
}

func (d *Device) keyevent(ctx context.Context, code int) bool {
	return d.ok(d.shell(ctx, fmt.Sprintf("input keyevent %d", code)))
}

func (d *Device) ok(_ string, err error) bool {
	if err != nil {
		log.Warn("adb command failed", "err", err)
		return false
	}
	return true
}

// inputEscape prepares text for "input text": spaces become %s and shell
// metacharacters are backslash-escaped.
func inputEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch {
		case r == ' ':
			b.WriteString("%s")
		case strings.ContainsRune(`\'"()<>|;&*~$!?#`+"`", r):
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// quote wraps s in single quotes for the device shell.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
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
