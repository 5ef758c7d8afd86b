package config

import (
	"errors"
	"fmt"
	"io/fs"
	log "log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"voxpilot/internal/ipc"
	"voxpilot/internal/listen"
)

var ErrMissingKey = errors.New("OPENAI_API_KEY not set")

var LogLevels = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

type Config struct {
	APIKey   string
	Model    string
	TTSModel string
	TTSVoice string
	Language string

	Sensitivity  listen.Sensitivity
	WhisperModel string
	// ReplayDir replaces the microphone with recorded clips when set.
	ReplayDir string
	Earcon    string

	ADBPath string
	Serial  string

	BusURL string
	Proxy  string

	HistoryCap  int
	Acknowledge bool

	LogLevel log.Level
	Socket   string
}

func defaults() Config {
	return Config{
		Model:        "gpt-5-nano",
		TTSModel:     "gpt-4o-mini-tts",
		TTSVoice:     "alloy",
		Language:     "auto",
		Sensitivity:  listen.SensitivityNormal,
		WhisperModel: "third_party/whisper.cpp/models/ggml-medium.bin",
		Earcon:       "beep.mp3",
		ADBPath:      "adb",
		HistoryCap:   20,
		Acknowledge:  true,
		LogLevel:     log.LevelInfo,
		Socket:       ipc.DefaultSocketPath,
	}
}

// Load reads the env file named by --env, then the environment, then the
// remaining flags; later sources win.
func Load(args []string) (Config, error) {
	cfg := defaults()

	fl := cli.NewFlagSet("voxpilot-daemon", cli.ContinueOnError)
	fl.SetOutput(os.Stderr)
	envFile := fl.StringP("env", "e", ".env", "Env file path")
	proxyAddr := fl.StringP("proxy", "p", "", "Socks proxy address")
	logLevel := fl.StringP("log", "l", "info", "Log level")
	serial := fl.StringP("serial", "s", "", "adb device serial")
	replay := fl.String("replay", "", "Directory of audio clips to use instead of the microphone")
	busURL := fl.String("bus", "", "Url of the device bus hub")
	noAck := fl.Bool("no-ack", false, "Do not speak acknowledgements while thinking")
	if err := fl.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(*envFile); err != nil {
		if fl.Changed("env") || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("env file %s: %w", *envFile, err)
		}
		log.Debug("No env file", "path", *envFile)
	}

	if err := cfg.fromEnv(); err != nil {
		return Config{}, err
	}

	if fl.Changed("proxy") {
		cfg.Proxy = *proxyAddr
	}
	if fl.Changed("serial") {
		cfg.Serial = *serial
	}
	if fl.Changed("replay") {
		cfg.ReplayDir = *replay
	}
	if fl.Changed("bus") {
		cfg.BusURL = *busURL
	}
	if *noAck {
		cfg.Acknowledge = false
	}

	lvl, ok := LogLevels[strings.ToLower(*logLevel)]
	if !ok {
		return Config{}, fmt.Errorf("unknown log level %q", *logLevel)
	}
	cfg.LogLevel = lvl

	return cfg, cfg.validate()
}

func (c *Config) fromEnv() error {
	str := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}

	str("OPENAI_API_KEY", &c.APIKey)
	str("VOXPILOT_MODEL", &c.Model)
	str("VOXPILOT_TTS_MODEL", &c.TTSModel)
	str("VOXPILOT_TTS_VOICE", &c.TTSVoice)
	str("VOXPILOT_LANGUAGE", &c.Language)
	str("VOXPILOT_WHISPER_MODEL", &c.WhisperModel)
	str("VOXPILOT_ADB", &c.ADBPath)
	str("VOXPILOT_SERIAL", &c.Serial)
	str("VOXPILOT_REPLAY_DIR", &c.ReplayDir)
	str("VOXPILOT_EARCON", &c.Earcon)
	str("VOXPILOT_SOCKET", &c.Socket)
	str("BUS_URL", &c.BusURL)
	str("VOXPILOT_PROXY", &c.Proxy)

	var s string
	str("VOXPILOT_SENSITIVITY", &s)
	if s != "" {
		sens, ok := listen.ParseSensitivity(strings.ToLower(s))
		if !ok {
			return fmt.Errorf("VOXPILOT_SENSITIVITY: unknown value %q", s)
		}
		c.Sensitivity = sens
	}

	s = ""
	str("VOXPILOT_HISTORY", &s)
	if s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return fmt.Errorf("VOXPILOT_HISTORY: %w", err)
		}
		c.HistoryCap = n
	}

	s = ""
	str("VOXPILOT_ACK", &s)
	if s != "" {
		b, err := strconv.ParseBool(s)
		if err != nil {
			return fmt.Errorf("VOXPILOT_ACK: %w", err)
		}
		c.Acknowledge = b
	}
	return nil
}

func (c Config) validate() error {
	if c.APIKey == "" {
		return ErrMissingKey
	}
	if c.HistoryCap < 2 {
		return fmt.Errorf("history cap %d: need room for at least one exchange", c.HistoryCap)
	}
	return nil
}
