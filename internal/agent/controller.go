package agent

import (
	"context"
	"errors"
	log "log/slog"
	"sync"

	"github.com/google/uuid"
)

var ErrInactive = errors.New("agent is not active")

// Controller owns the lifecycle of one Orchestrator: at most one loop runs
// at a time and deactivation waits for it to exit.
type Controller struct {
	orch    *Orchestrator
	speaker Speaker

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	session string
}

func NewController(o *Orchestrator) *Controller {
	return &Controller{orch: o, speaker: o.deps.Speaker}
}

// Activate starts the loop. It reports false when a loop is already running.
func (c *Controller) Activate(ctx context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done != nil {
		return false
	}

	c.orch.reset()
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	session := uuid.NewString()
	c.cancel, c.done, c.session = cancel, done, session

	go func() {
		defer close(done)
		defer c.finished(done)

		log.Info("Agent activated", "session", session)
		c.orch.Run(ctx)
		log.Info("Agent deactivated", "session", session)
	}()
	return true
}

func (c *Controller) finished(done chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != done {
		return
	}
	c.cancel()
	c.cancel, c.done, c.session = nil, nil, ""
}

// Deactivate stops the loop, silences speech and waits for the loop to
// exit. It is a no-op when inactive.
func (c *Controller) Deactivate() {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	if done == nil {
		return
	}
	cancel()
	if c.speaker != nil {
		c.speaker.Stop()
	}
	<-done
}

// Done is closed when the current loop exits; nil when inactive.
func (c *Controller) Done() <-chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.done
}

func (c *Controller) Active() bool {
	return c.Done() != nil
}

// Session identifies the current activation in logs.
func (c *Controller) Session() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

func (c *Controller) Pause()  { c.orch.Pause() }
func (c *Controller) Resume() { c.orch.Resume() }

func (c *Controller) State() AgentState { return c.orch.State() }

// Say feeds text to the running loop as a user utterance.
func (c *Controller) Say(text string) error {
	if !c.Active() {
		return ErrInactive
	}
	if !c.orch.Inject(text) {
		return errors.New("say: queue full or empty text")
	}
	return nil
}
