package agent

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestController_Lifecycle(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := newRig(nil, replyWith("Sure."), Config{Greeting: "Ready."})
	c := NewController(r.orch)

	assert.ErrorIs(t, c.Say("hello"), ErrInactive)
	assert.Equal(t, StateInactive, c.State())

	require.True(t, c.Activate(context.Background()))
	assert.False(t, c.Activate(context.Background()))
	assert.True(t, c.Active())
	assert.NotEmpty(t, c.Session())

	require.NoError(t, c.Say("book a table"))
	assert.Equal(t, []string{"Ready.", "Sure."}, r.waitSpoken(t, 2))
	assert.Equal(t, "book a table", r.completer.Requests()[0].User)

	c.Deactivate()
	assert.False(t, c.Active())
	assert.Empty(t, c.Session())
	assert.Equal(t, StateInactive, c.State())
	assert.Equal(t, 1, r.speaker.stops)

	// deactivating twice is harmless
	c.Deactivate()
}

func TestController_ShutdownPhraseEndsSession(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	r := newRig([]string{"please shut down"}, replyWith("unused"), Config{})
	c := NewController(r.orch)
	require.True(t, c.Activate(context.Background()))

	done := c.Done()
	require.NotNil(t, done)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("session did not end")
	}

	require.Eventually(t, func() bool { return !c.Active() }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Goodbye."}, r.speaker.Spoken())

	// a finished session can be started again
	require.True(t, c.Activate(context.Background()))
	c.Deactivate()
}

func TestController_PauseResume(t *testing.T) {
	r := newRig(nil, replyWith("Sure."), Config{})
	c := NewController(r.orch)
	require.True(t, c.Activate(context.Background()))
	defer c.Deactivate()

	require.Eventually(t, func() bool { return r.listener.Calls() == 1 }, time.Second, 5*time.Millisecond)
	c.Pause()
	require.NoError(t, c.Say("hi"))
	require.Eventually(t, func() bool { return c.State() == StatePaused }, time.Second, 5*time.Millisecond)

	c.Resume()
	require.Eventually(t, func() bool { return c.State() == StateListening }, time.Second, 5*time.Millisecond)
}
