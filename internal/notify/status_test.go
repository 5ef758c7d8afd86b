package notify

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxpilot/internal/agent"
)

type recorder struct {
	mu     sync.Mutex
	shown  []string
	states []string
	block  chan struct{}
}

func (r *recorder) notify(ctx context.Context, summary, body string) error {
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.shown = append(r.shown, summary+"|"+body)
	return nil
}

func (r *recorder) Publish(state string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, state)
	return nil
}

func (r *recorder) Shown() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.shown...)
}

func (r *recorder) States() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.states...)
}

// start runs s until the test ends.
func start(t *testing.T, s *Status) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestStatus_StateChanges(t *testing.T) {
	r := &recorder{}
	s := NewStatus(r.notify, r, 0)
	start(t, s)

	s.SetState(agent.StateListening)
	s.SetState(agent.StateListening)
	s.SetState(agent.StateThinking)

	require.Eventually(t, func() bool { return len(r.Shown()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"listening", "thinking"}, r.States())
	assert.Equal(t, []string{"Listening…|", "Thinking…|"}, r.Shown())
	assert.Equal(t, agent.StateThinking, s.State())
}

func TestStatus_PartialsThrottled(t *testing.T) {
	r := &recorder{}
	s := NewStatus(r.notify, nil, time.Hour)
	start(t, s)
	s.SetState(agent.StateListening)

	s.Partial("open")
	s.Partial("open what")
	s.Partial("open whatsapp")

	require.Eventually(t, func() bool { return len(r.Shown()) == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"Listening…|", "Listening…|open"}, r.Shown())
}

func TestStatus_HungNotifierDoesNotBlock(t *testing.T) {
	r := &recorder{block: make(chan struct{})}
	s := NewStatus(r.notify, nil, 0)
	start(t, s)
	defer close(r.block)

	begin := time.Now()
	for _, st := range []agent.AgentState{
		agent.StateListening, agent.StateThinking, agent.StateSpeaking,
	} {
		for i := 0; i < 10; i++ {
			s.SetState(st)
			s.SetState(agent.StateExecuting)
		}
	}
	s.Alert("speech failed")

	assert.Less(t, time.Since(begin), 500*time.Millisecond)
	assert.Equal(t, agent.StateExecuting, s.State())
}

func TestStatus_NilCollaborators(t *testing.T) {
	s := NewStatus(nil, nil, 0)
	start(t, s)
	s.SetState(agent.StateSpeaking)
	s.Partial("hello")
	s.Alert("speech failed")
	assert.Equal(t, agent.StateSpeaking, s.State())
}
