package main

import (
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/lmittmann/tint"
	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	cli "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"voxpilot/internal/adb"
	"voxpilot/internal/agent"
	"voxpilot/internal/audio"
	"voxpilot/internal/audio/pcm"
	"voxpilot/internal/audio/speaker"
	"voxpilot/internal/bus"
	"voxpilot/internal/config"
	"voxpilot/internal/ipc"
	"voxpilot/internal/listen"
	"voxpilot/internal/llm"
	"voxpilot/internal/notify"
	"voxpilot/internal/proxy"
	"voxpilot/internal/recognizer"
	"voxpilot/internal/screen"
	"voxpilot/internal/tts"
	"voxpilot/internal/tts/espeak"
	"voxpilot/internal/tts/openaitts"
	"voxpilot/pkg/protocol"
	"voxpilot/pkg/stt"
)

const shard = "VOXPILOT"

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, cli.ErrHelp) {
		os.Exit(0)
	}

	level := log.LevelInfo
	if err == nil {
		level = cfg.LogLevel
	}
	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      level,
		TimeFormat: time.TimeOnly,
	})))

	if err != nil {
		log.Error("Bad configuration", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("Booting up")
	if err := run(ctx, cfg); err != nil {
		log.Error("Daemon failed", "err", err)
		os.Exit(1)
	}
	log.Info("Shut down")
}

func run(ctx context.Context, cfg config.Config) error {
	httpClient, err := proxy.NewSocksClient(cfg.Proxy, 120*time.Second)
	if err != nil {
		return fmt.Errorf("socks proxy %s: %w", cfg.Proxy, err)
	}
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
	)
	log.Debug("Loaded OpenAI client", "proxy", cfg.Proxy)

	if err := pcm.Init(); err != nil {
		return fmt.Errorf("init audio: %w", err)
	}
	defer pcm.Terminate()

	whisper, err := stt.NewTranscriber(cfg.WhisperModel)
	if err != nil {
		return fmt.Errorf("init whisper: %w", err)
	}
	defer whisper.Close()
	log.Debug("Loaded whisper", "model", cfg.WhisperModel)

	var rec listen.Recognizer = recognizer.NewMic(pcm.NewRecorder(), whisper, 0)
	if cfg.ReplayDir != "" {
		clips, err := recognizer.NewClips(cfg.ReplayDir, whisper, 0)
		if err != nil {
			return err
		}
		rec = clips
	}

	g, ctx := errgroup.WithContext(ctx)

	var (
		publisher notify.Publisher
		switches  agent.Switches
	)
	if cfg.BusURL != "" {
		ptcl, err := protocol.NewProtocol(ctx, protocol.PtclConfig{
			Shard:  shard,
			Url:    cfg.BusURL,
			Reconn: 2 * time.Second,
			EmitOut: func(m *protocol.Message) {
				log.Debug("Bus message", "msg", m.String())
			},
		})
		if err != nil {
			log.Warn("Bus unavailable, home devices disabled", "url", cfg.BusURL, "err", err)
		} else {
			g.Go(func() error { return ptcl.Run(ctx) })
			publisher = bus.NewStatePublisher(ptcl)
			switches = bus.NewDevices(ptcl)
		}
	}

	status := notify.NewStatus(notify.SwayNotify, publisher, 300*time.Millisecond)
	g.Go(func() error {
		status.Run(ctx)
		return nil
	})

	ducker := audio.NewDucker([]string{"voxpilot", "voxpilot-daemon"}, 5, nil)
	focus := audio.NewFocusArbiter(ducker, audio.DefaultFocusConfig())
	g.Go(func() error {
		focus.Watch(ctx, 2*time.Second)
		return nil
	})

	var onStart func()
	if _, err := os.Stat(cfg.Earcon); cfg.Earcon != "" && err == nil {
		earcon := speaker.NewEarcon(cfg.Earcon)
		onStart = func() {
			go func() {
				ectx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				if err := earcon.Play(ectx); err != nil {
					log.Debug("Earcon failed", "err", err)
				}
			}()
		}
	}

	listener := listen.NewLoop(rec, focus, listen.Config{
		Language:    cfg.Language,
		Sensitivity: cfg.Sensitivity,
		OnPartial:   status.Partial,
		OnStart:     onStart,
	})

	voice := openaitts.Options{Model: cfg.TTSModel, Voice: cfg.TTSVoice}
	speech := tts.NewDispatcher(tts.Config{
		OnExhausted: func(text string, err error) {
			status.Alert("Could not speak: " + text)
		},
	},
		openaitts.NewStreaming(client, voice),
		openaitts.NewBuffered(client, voice),
		espeak.New(espeakLanguage(cfg.Language), 0),
	)

	phone := adb.New(adb.ExecRunner(cfg.ADBPath, cfg.Serial))
	apps := make([]string, 0, len(adb.KnownApps))
	for name := range adb.KnownApps {
		apps = append(apps, name)
	}

	orch := agent.NewOrchestrator(agent.Deps{
		Listener:  listener,
		Speaker:   speech,
		Completer: llm.New(client, llm.Options{Model: cfg.Model, MaxTokens: 400}),
		Automator: screen.New(phone, screen.Config{}),
		Utilities: phone,
		Switches:  switches,
		Status:    status,
		FastPaths: agent.NewFastPaths(apps, ""),
	}, agent.Config{
		Greeting:    "Hi, I'm listening.",
		Acknowledge: cfg.Acknowledge,
		HistoryCap:  cfg.HistoryCap,
	})
	ctrl := agent.NewController(orch)

	srv, err := ipc.Listen(cfg.Socket)
	if err != nil {
		return err
	}
	g.Go(func() error { return srv.Serve(ctx, control(ctx, ctrl)) })
	g.Go(func() error {
		<-ctx.Done()
		ctrl.Deactivate()
		return nil
	})

	log.Info("Boot up - successful", "socket", srv.Path())
	return g.Wait()
}

// control maps IPC commands onto the controller. Activation is tied to the
// daemon's context, not to the requesting connection.
func control(ctx context.Context, ctrl *agent.Controller) ipc.Handler {
	return func(_ context.Context, msg ipc.ControlMessage) ipc.Reply {
		var err error
		switch msg.Cmd {
		case ipc.CmdActivate:
			if !ctrl.Activate(ctx) {
				err = errors.New("already active")
			}
		case ipc.CmdDeactivate:
			ctrl.Deactivate()
		case ipc.CmdPause:
			ctrl.Pause()
		case ipc.CmdResume:
			ctrl.Resume()
		case ipc.CmdStatus:
		case ipc.CmdSay:
			err = ctrl.Say(msg.Text)
		default:
			err = fmt.Errorf("unknown command %q", msg.Cmd)
		}

		if err != nil {
			log.Warn("Control command failed", "cmd", msg.Cmd, "err", err)
			return ipc.Reply{State: ctrl.State().String(), Error: err.Error()}
		}
		return ipc.Reply{OK: true, State: ctrl.State().String()}
	}
}

// espeakLanguage picks an espeak voice for a whisper language hint.
func espeakLanguage(hint string) string {
	hint = strings.ToLower(strings.TrimSpace(hint))
	if hint == "" || hint == "auto" {
		return "en"
	}
	return hint
}
