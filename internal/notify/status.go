package notify

import (
	"context"
	log "log/slog"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"voxpilot/internal/agent"
)

// Publisher mirrors state changes somewhere else, e.g. the bus.
type Publisher interface {
	Publish(state string) error
}

// Notifier shows a persistent desktop notification.
type Notifier func(ctx context.Context, summary, body string) error

// SwayNotify replaces the single voxpilot notification through notify-send.
func SwayNotify(ctx context.Context, summary, body string) error {
	return exec.CommandContext(ctx, "notify-send",
		"-a", "voxpilot",
		"-h", "string:x-canonical-private-synchronous:voxpilot",
		summary, body,
	).Run()
}

var stateText = map[agent.AgentState]string{
	agent.StateInactive:  "Inactive",
	agent.StateGreeting:  "Starting up…",
	agent.StateListening: "Listening…",
	agent.StateThinking:  "Thinking…",
	agent.StateSpeaking:  "Speaking…",
	agent.StateExecuting: "Working on it…",
	agent.StatePaused:    "Paused",
}

// update is one queued side effect. An empty publish skips the publisher.
type update struct {
	publish string
	summary string
	body    string
}

// Status is the foreground status surface: it reflects the agent state and
// the live partial transcript, the latter throttled. Callers only enqueue;
// Run delivers the updates.
type Status struct {
	notify    Notifier
	publisher Publisher
	timeout   time.Duration

	partials rate.Sometimes
	updates  chan update

	mu    sync.Mutex
	state agent.AgentState
}

func NewStatus(n Notifier, p Publisher, partialInterval time.Duration) *Status {
	if partialInterval <= 0 {
		partialInterval = 300 * time.Millisecond
	}
	return &Status{
		notify:    n,
		publisher: p,
		timeout:   2 * time.Second,
		partials:  rate.Sometimes{Interval: partialInterval},
		updates:   make(chan update, 16),
		state:     agent.StateInactive,
	}
}

func (s *Status) SetState(state agent.AgentState) {
	s.mu.Lock()
	changed := s.state != state
	s.state = state
	s.mu.Unlock()

	if !changed {
		return
	}

	log.Debug("Status", "state", state)
	s.enqueue(update{publish: string(state), summary: stateText[state]})
}

// Partial shows an interim transcript. Calls closer than the throttle
// interval are dropped.
func (s *Status) Partial(text string) {
	s.partials.Do(func() {
		s.enqueue(update{summary: stateText[s.State()], body: text})
	})
}

// Alert surfaces a failure the user would otherwise not notice.
func (s *Status) Alert(text string) {
	log.Warn("Alert", "text", text)
	s.enqueue(update{summary: "voxpilot", body: text})
}

func (s *Status) State() agent.AgentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Run delivers queued updates in order until ctx ends.
func (s *Status) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case u := <-s.updates:
			s.deliver(u)
		}
	}
}

// enqueue drops the update when the queue is full.
func (s *Status) enqueue(u update) {
	select {
	case s.updates <- u:
	default:
		log.Debug("Status queue full, update dropped", "summary", u.summary)
	}
}

func (s *Status) deliver(u update) {
	if u.publish != "" && s.publisher != nil {
		if err := s.publisher.Publish(u.publish); err != nil {
			log.Debug("Failed to publish state", "err", err)
		}
	}
	if s.notify == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	if err := s.notify(ctx, u.summary, u.body); err != nil {
		log.Debug("Notification failed", "err", err)
	}
}
