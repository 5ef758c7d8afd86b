package espeak

/*
#cgo LDFLAGS: -lespeak-ng
#include <stdlib.h>
#include <espeak-ng/speak_lib.h>

static int
espeak_open(const char *lang)
{
	if (espeak_Initialize(AUDIO_OUTPUT_SYNCH_PLAYBACK, 500, NULL, 0) < 0)
	{ return -1; }

	espeak_VOICE specs = { 0 };
	specs.languages = lang;
	if (espeak_SetVoiceByProperties(&specs) != EE_OK)
	{ return -2; }

	return 0;
}

static int
espeak_say(const char *text, int rate)
{
	if (!text)
	{ return -1; }

	espeak_SetParameter(espeakRATE, rate, 0);
	if (espeak_Synth(text, 0, 0, POS_CHARACTER, 0, espeakCHARS_AUTO, NULL, NULL) != EE_OK)
	{ return -2; }

	return espeak_Synchronize() == EE_OK ? 0 : -3;
}
*/
import "C"

import (
	"context"
	"fmt"
	"sync"
	"unsafe"

	"voxpilot/pkg/completion"
)

// Backend speaks through the local espeak-ng engine. It works without
// network access and is the last link of the chain.
type Backend struct {
	lang string
	rate int

	once    sync.Once
	openErr error
	mu      sync.Mutex
}

func New(lang string, rate int) *Backend {
	if lang == "" {
		lang = "en"
	}
	if rate <= 0 {
		rate = 175
	}
	return &Backend{lang: lang, rate: rate}
}

func (b *Backend) Name() string { return "espeak" }

func (b *Backend) open() error {
	b.once.Do(func() {
		clang := C.CString(b.lang)
		defer C.free(unsafe.Pointer(clang))
		if rc := C.espeak_open(clang); rc != 0 {
			b.openErr = fmt.Errorf("espeak init failed: %d", int(rc))
		}
	})
	return b.openErr
}

func (b *Backend) Speak(ctx context.Context, text string) error {
	if text == "" {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.open(); err != nil {
		return err
	}

	done := completion.New[error]()
	go func() {
		ctext := C.CString(text)
		defer C.free(unsafe.Pointer(ctext))

		rc := C.espeak_say(ctext, C.int(b.rate))
		if rc != 0 {
			done.Resolve(fmt.Errorf("espeak_say failed: %d", int(rc)))
			return
		}
		done.Resolve(nil)
	}()

	select {
	case <-done.Done():
		return done.Value()
	case <-ctx.Done():
		C.espeak_Cancel()
		done.Resolve(ctx.Err())
		return ctx.Err()
	}
}
