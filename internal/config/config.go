// Package config loads voice-orchestrator settings from the environment and
// an optional YAML file: secrets come from the environment, everything
// else from YAML.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mathisarends/voiceorchestrator/internal/orcherr"
)

// Config is the fully resolved set of settings the Session Coordinator needs
// to build the orchestrator. Credentials come exclusively from the
// environment; everything else may be overridden by an optional YAML file.
type Config struct {
	RealtimeAPIKey    string `yaml:"-"`
	WakeWordEngineKey string `yaml:"-"`

	RealtimeURL  string            `yaml:"realtime_url"`
	Model        string            `yaml:"model"`
	Voice        string            `yaml:"voice"`
	Instructions string            `yaml:"instructions"`
	SpeechSpeed  float64           `yaml:"speech_speed"`
	ResourceDir  string            `yaml:"resource_dir"`
	ConnectWait  time.Duration     `yaml:"connect_wait"`
	SilenceWait  time.Duration     `yaml:"silence_wait"`
	MCPServers   []MCPServerConfig `yaml:"mcp_servers"`
}

// MCPServerConfig names one remote MCP tool server surfaced to the model
// alongside locally-registered tools.
type MCPServerConfig struct {
	Label string `yaml:"label"`
	URL   string `yaml:"url"`
}

const (
	defaultRealtimeURL = "wss://api.openai.com/v1/realtime"
	defaultModel       = "gpt-realtime"
	defaultVoice       = "alloy"
	defaultSpeed       = 1.0
	defaultConnectWait = 10 * time.Second
	defaultSilenceWait = 10 * time.Second
)

// Default returns a Config with every non-secret field at its documented default.
func Default() Config {
	return Config{
		RealtimeURL:  defaultRealtimeURL,
		Model:        defaultModel,
		Voice:        defaultVoice,
		Instructions: "You are a helpful voice assistant.",
		SpeechSpeed:  defaultSpeed,
		ResourceDir:  "./assets",
		ConnectWait:  defaultConnectWait,
		SilenceWait:  defaultSilenceWait,
	}
}

// Load builds a Config from environment credentials plus an optional YAML
// overlay at yamlPath (ignored if empty or missing). Missing credentials are
// reported as a fatal KindConfiguration error.
func Load(yamlPath string) (Config, error) {
	cfg := Default()

	if yamlPath != "" {
		if data, err := os.ReadFile(yamlPath); err == nil {
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, orcherr.New("config", "Load", orcherr.KindConfiguration, err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, orcherr.New("config", "Load", orcherr.KindConfiguration, err)
		}
	}

	cfg.RealtimeAPIKey = os.Getenv("REALTIME_API_KEY")
	cfg.WakeWordEngineKey = os.Getenv("WAKE_WORD_ENGINE_KEY")

	if cfg.RealtimeAPIKey == "" {
		return Config{}, orcherr.New("config", "Load", orcherr.KindConfiguration,
			fmt.Errorf("REALTIME_API_KEY is not set"))
	}
	if cfg.WakeWordEngineKey == "" {
		return Config{}, orcherr.New("config", "Load", orcherr.KindConfiguration,
			fmt.Errorf("WAKE_WORD_ENGINE_KEY is not set"))
	}

	cfg.SpeechSpeed = ClampSpeechSpeed(cfg.SpeechSpeed)

	return cfg, nil
}

const (
	minSpeechSpeed = 0.25
	maxSpeechSpeed = 1.5
)

// ClampSpeechSpeed restricts speed to the [0.25, 1.5] range the realtime
// API accepts.
func ClampSpeechSpeed(speed float64) float64 {
	switch {
	case speed < minSpeechSpeed:
		return minSpeechSpeed
	case speed > maxSpeechSpeed:
		return maxSpeechSpeed
	default:
		return speed
	}
}

// NormalizeLanguageCode lowercases a two-letter language code and rejects
// anything else ("EN" becomes "en", "english" is rejected).
func NormalizeLanguageCode(code string) (string, error) {
	if len(code) != 2 {
		return "", fmt.Errorf("invalid language code %q: must be exactly two letters", code)
	}
	lower := []rune(code)
	for i, r := range lower {
		if r >= 'A' && r <= 'Z' {
			lower[i] = r + ('a' - 'A')
		} else if r < 'a' || r > 'z' {
			return "", fmt.Errorf("invalid language code %q: must be alphabetic", code)
		}
	}
	return string(lower), nil
}
