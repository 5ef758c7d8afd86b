package agent

import (
	"context"
	"errors"
	log "log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"voxpilot/pkg/completion"
)

// Listener returns one utterance, or "" when nothing usable was heard.
type Listener interface {
	Listen(ctx context.Context) string
}

type Speaker interface {
	Speak(ctx context.Context, text string) error
	SpeakAsync(ctx context.Context, text string) <-chan struct{}
	Stop()
}

type CompletionRequest struct {
	System  string
	History []ConversationTurn
	// Screen describes the foreground app; empty when none is available.
	Screen string
	User   string
}

type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// StatusSurface shows the current state to the user.
type StatusSurface interface {
	SetState(s AgentState)
}

// Memory persists finished turns outside the process.
type Memory interface {
	Remember(ctx context.Context, turns ...ConversationTurn) error
}

const DefaultSystemPrompt = `You are a voice assistant controlling the user's phone. Replies are spoken aloud, so keep them short and plain, without markdown.
When the request needs the phone, add exactly one JSON object to your reply: {"action": "<kind>", ...}.
Kinds: open_app{app}, read_screen, click{target}, type{text,id?}, scroll{direction}, navigate{target}, web_search{query}, speak{text}, send_message{text}, volume{direction}, flashlight{state}, send_sms{to,text}, call{to}.
The current screen is listed below the conversation when available.`

type Config struct {
	SystemPrompt string
	Greeting     string
	Farewell     string
	// Apology is spoken when the completion service fails or times out.
	Apology          string
	Acknowledge      bool
	Acknowledgements []string
	HistoryCap       int

	CompletionTimeout time.Duration
	ActionTimeout     time.Duration
	RecoveryDelay     time.Duration

	Now func() time.Time
}

func (c *Config) withDefaults() {
	if c.SystemPrompt == "" {
		c.SystemPrompt = DefaultSystemPrompt
	}
	if c.Apology == "" {
		c.Apology = "Sorry, I couldn't reach my brain just now. Please try again."
	}
	if c.Farewell == "" {
		c.Farewell = "Goodbye."
	}
	if len(c.Acknowledgements) == 0 {
		c.Acknowledgements = []string{"Okay.", "One moment.", "Sure.", "Let me check."}
	}
	if c.HistoryCap <= 0 {
		c.HistoryCap = 20
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = 15 * time.Second
	}
	if c.ActionTimeout <= 0 {
		c.ActionTimeout = 10 * time.Second
	}
	if c.RecoveryDelay <= 0 {
		c.RecoveryDelay = 500 * time.Millisecond
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// Deps are the collaborators of an Orchestrator. Automator, Utilities,
// Switches, Status and Memory are optional.
type Deps struct {
	Listener  Listener
	Speaker   Speaker
	Completer Completer
	Automator Automator
	Utilities Utilities
	Switches  Switches
	Status    StatusSurface
	Memory    Memory
	FastPaths *FastPaths
}

// Orchestrator runs the listen, think, execute, speak loop. Run must not be
// called concurrently; Controller takes care of that.
type Orchestrator struct {
	deps Deps
	cfg  Config
	act  dispatcher

	history *History
	acks    int

	mu     sync.Mutex
	state  AgentState
	paused bool
	resume chan struct{}

	injected chan string
}

func NewOrchestrator(deps Deps, cfg Config) *Orchestrator {
	cfg.withDefaults()
	if deps.FastPaths == nil {
		deps.FastPaths = NewFastPaths(nil, cfg.Greeting)
	}
	return &Orchestrator{
		deps:     deps,
		cfg:      cfg,
		act:      dispatcher{auto: deps.Automator, util: deps.Utilities, switches: deps.Switches},
		history:  NewHistory(cfg.HistoryCap),
		state:    StateInactive,
		resume:   make(chan struct{}),
		injected: make(chan string, 8),
	}
}

func (o *Orchestrator) State() AgentState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// History returns the turns of the running session, oldest first.
func (o *Orchestrator) History() []ConversationTurn {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.history.Turns()
}

func (o *Orchestrator) setState(s AgentState) {
	o.mu.Lock()
	prev := o.state
	o.state = s
	o.mu.Unlock()

	if prev == s {
		return
	}
	log.Debug("Agent state", "from", prev, "to", s)
	if o.deps.Status != nil {
		o.deps.Status.SetState(s)
	}
}

// reset clears pause and queued utterances left by a previous session.
func (o *Orchestrator) reset() {
	o.mu.Lock()
	o.paused = false
	o.mu.Unlock()
	for {
		select {
		case <-o.injected:
		default:
			return
		}
	}
}

// Pause makes the loop stop after the current turn until Resume.
func (o *Orchestrator) Pause() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.paused = true
}

func (o *Orchestrator) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.paused {
		return
	}
	o.paused = false
	close(o.resume)
	o.resume = make(chan struct{})
}

// Inject hands text to the loop as if the user had said it. It reports false
// when too many injected utterances are already waiting.
func (o *Orchestrator) Inject(text string) bool {
	text = strings.TrimSpace(text)
	if text == "" {
		return false
	}
	select {
	case o.injected <- text:
		return true
	default:
		return false
	}
}

// Run greets the user and loops until ctx ends or the user asks to stop.
// Failures inside a turn never end the loop.
func (o *Orchestrator) Run(ctx context.Context) {
	defer o.setState(StateInactive)

	o.mu.Lock()
	o.history.Reset()
	o.mu.Unlock()

	o.setState(StateGreeting)
	if o.cfg.Greeting != "" {
		o.speak(ctx, o.cfg.Greeting)
	}

	for ctx.Err() == nil {
		if !o.waitResume(ctx) {
			return
		}
		if o.safeTurn(ctx) {
			log.Info("Session ended by user")
			return
		}
	}
}

func (o *Orchestrator) waitResume(ctx context.Context) bool {
	o.mu.Lock()
	paused, resume := o.paused, o.resume
	o.mu.Unlock()
	if !paused {
		return true
	}

	o.setState(StatePaused)
	select {
	case <-ctx.Done():
		return false
	case <-resume:
		return true
	}
}

// safeTurn runs one turn and recovers from a panic in it.
func (o *Orchestrator) safeTurn(ctx context.Context) (stop bool) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Turn failed, recovering", "panic", r, "stack", string(debug.Stack()))
			sleep(ctx, o.cfg.RecoveryDelay)
			stop = false
		}
	}()
	return o.turn(ctx)
}

func (o *Orchestrator) turn(ctx context.Context) (stop bool) {
	o.setState(StateListening)
	text := strings.TrimSpace(o.hear(ctx))
	if text == "" || ctx.Err() != nil {
		return false
	}
	log.Info("Heard", "text", text)

	if q, ok := o.deps.FastPaths.Match(text, o.cfg.Now()); ok {
		return o.quick(ctx, text, q)
	}

	o.setState(StateThinking)
	if o.cfg.Acknowledge {
		o.deps.Speaker.SpeakAsync(ctx, o.nextAck())
	}

	reply := o.complete(ctx, text)
	o.remember(ctx, text, reply)

	act, spoken, err := TryParseAction(reply)
	if err != nil {
		log.Warn("Ignoring action", "err", err)
	}

	var follow string
	if act != nil {
		follow = o.execute(ctx, act)
	}

	o.setState(StateSpeaking)
	o.speak(ctx, spoken)
	o.speak(ctx, follow)
	return false
}

func (o *Orchestrator) quick(ctx context.Context, text string, q Quick) bool {
	if q.Shutdown {
		o.setState(StateSpeaking)
		o.speak(ctx, o.cfg.Farewell)
		return true
	}

	var follow string
	if q.Action != nil {
		follow = o.execute(ctx, q.Action)
	}
	if q.Reply != "" {
		o.remember(ctx, text, q.Reply)
	}

	o.setState(StateSpeaking)
	o.speak(ctx, q.Reply)
	o.speak(ctx, follow)
	return false
}

// hear listens for the next utterance. Injected text preempts the
// microphone, canceling a listening attempt already in progress.
func (o *Orchestrator) hear(ctx context.Context) string {
	select {
	case t := <-o.injected:
		return t
	default:
	}

	lctx, cancel := context.WithCancel(ctx)
	defer cancel()

	heard := make(chan string, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Error("Listener panicked", "panic", r)
				heard <- ""
			}
		}()
		heard <- o.deps.Listener.Listen(lctx)
	}()

	select {
	case t := <-heard:
		return t
	case t := <-o.injected:
		cancel()
		<-heard
		return t
	}
}

func (o *Orchestrator) complete(ctx context.Context, text string) string {
	o.mu.Lock()
	hist := o.history.Turns()
	o.mu.Unlock()

	screenCtx, err := completion.Run(ctx, o.cfg.ActionTimeout, func(ctx context.Context) (string, error) {
		return o.act.screenContext(ctx), nil
	})
	if err != nil {
		log.Warn("Screen context unavailable", "err", err)
	}

	req := CompletionRequest{
		System:  o.cfg.SystemPrompt,
		History: hist,
		Screen:  screenCtx,
		User:    text,
	}

	start := time.Now()
	reply, err := completion.Run(ctx, o.cfg.CompletionTimeout, func(ctx context.Context) (string, error) {
		return o.deps.Completer.Complete(ctx, req)
	})
	if err == nil && strings.TrimSpace(reply) == "" {
		err = errors.New("empty reply")
	}
	if err != nil {
		log.Warn("Completion failed", "err", err, "elapsed", time.Since(start))
		return o.cfg.Apology
	}

	log.Debug("Completion", "elapsed", time.Since(start), "reply", reply)
	return reply
}

func (o *Orchestrator) execute(ctx context.Context, act Action) string {
	o.setState(StateExecuting)

	follow, err := completion.Run(ctx, o.cfg.ActionTimeout, func(ctx context.Context) (string, error) {
		return o.act.dispatch(ctx, act)
	})
	if err != nil {
		log.Warn("Action failed", "kind", act.Kind(), "err", err)
		return ""
	}

	log.Info("Action done", "kind", act.Kind())
	return follow
}

func (o *Orchestrator) remember(ctx context.Context, user, reply string) {
	now := o.cfg.Now()
	turns := []ConversationTurn{
		{Role: RoleUser, Text: user, Timestamp: now},
		{Role: RoleAssistant, Text: reply, Timestamp: now},
	}

	o.mu.Lock()
	o.history.Append(turns...)
	o.mu.Unlock()

	if o.deps.Memory != nil {
		if err := o.deps.Memory.Remember(ctx, turns...); err != nil {
			log.Warn("Could not persist turn", "err", err)
		}
	}
}

func (o *Orchestrator) speak(ctx context.Context, text string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	if err := o.deps.Speaker.Speak(ctx, text); err != nil {
		log.Warn("Could not speak", "err", err)
	}
}

func (o *Orchestrator) nextAck() string {
	a := o.cfg.Acknowledgements[o.acks%len(o.cfg.Acknowledgements)]
	o.acks++
	return a
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
