package adb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var ErrUnknownApp = errors.New("unknown app")

// KnownApps maps spoken app names to launcher packages.
var KnownApps = map[string]string{
	"whatsapp":  "com.whatsapp",
	"messages":  "com.google.android.apps.messaging",
	"signal":    "org.thoughtcrime.securesms",
	"instagram": "com.instagram.android",
	"youtube":   "com.google.android.youtube",
	"maps":      "com.google.android.apps.maps",
	"chrome":    "com.android.chrome",
	"browser":   "com.android.chrome",
	"gmail":     "com.google.android.gm",
	"camera":    "com.android.camera",
	"settings":  "com.android.settings",
	"phone":     "com.google.android.dialer",
	"contacts":  "com.google.android.contacts",
	"calendar":  "com.google.android.calendar",
	"clock":     "com.google.android.deskclock",
	"photos":    "com.google.android.apps.photos",
	"spotify":   "com.spotify.music",
	"telegram":  "org.telegram.messenger",
}

// OpenApp launches an app by spoken name. Names missing from KnownApps are
// matched against installed package names.
func (d *Device) OpenApp(ctx context.Context, name string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ErrUnknownApp
	}

	pkg, ok := KnownApps[name]
	if !ok {
		var err error
		if pkg, err = d.findPackage(ctx, name); err != nil {
			return err
		}
	}

	out, err := d.shell(ctx, "monkey -p "+quote(pkg)+" -c android.intent.category.LAUNCHER 1")
	if err != nil {
		return err
	}
	if strings.Contains(out, "No activities found") {
		return fmt.Errorf("%w: %s has no launcher activity", ErrUnknownApp, pkg)
	}
	return nil
}

func (d *Device) findPackage(ctx context.Context, name string) (string, error) {
	out, err := d.shell(ctx, "pm list packages")
	if err != nil {
		return "", err
	}

	key := strings.ReplaceAll(name, " ", "")
	var matches []string
	for _, line := range strings.Split(out, "\n") {
		pkg := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "package:"))
		if pkg == "" {
			continue
		}
		parts := strings.Split(pkg, ".")
		if parts[len(parts)-1] == key {
			return pkg, nil
		}
		if strings.Contains(pkg, key) {
			matches = append(matches, pkg)
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownApp, name)
	}
	sort.Slice(matches, func(i, j int) bool { return len(matches[i]) < len(matches[j]) })
	return matches[0], nil
}

// Volume steps media volume: up, down or mute.
func (d *Device) Volume(ctx context.Context, direction string) error {
	code := 0
	switch strings.ToLower(strings.TrimSpace(direction)) {
	case "up", "louder", "raise":
		code = 24
	case "down", "quieter", "lower":
		code = 25
	case "mute", "off":
		code = 164
	default:
		return fmt.Errorf("volume direction %q", direction)
	}
	_, err := d.shell(ctx, fmt.Sprintf("input keyevent %d", code))
	return err
}

// SendSMS opens the messaging app with a prefilled draft for to.
func (d *Device) SendSMS(ctx context.Context, to, text string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("sms: no recipient")
	}
	_, err := d.shell(ctx, "am start -a android.intent.action.SENDTO -d "+quote("sms:"+to)+" --es sms_body "+quote(text))
	return err
}

func (d *Device) Call(ctx context.Context, to string) error {
	if strings.TrimSpace(to) == "" {
		return errors.New("call: no number")
	}
	_, err := d.shell(ctx, "am start -a android.intent.action.CALL -d "+quote("tel:"+to))
	return err
}

func (d *Device) WebSearch(ctx context.Context, query string) error {
	_, err := d.shell(ctx, "am start -a android.intent.action.WEB_SEARCH --es query "+quote(query))
	return err
}
