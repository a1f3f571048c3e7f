// Package factories turns the JSON config files into a wired pipeline:
// settings.json selects engines and endpoints, character.json defines
// who the companion is, and the security audit refuses to start against
// non-local endpoints.
package factories

import (
	"fmt"
	"os"

	"companionkit/face/vts"
	agenth "companionkit/handlers/agent"
	llmh "companionkit/handlers/llm"
	stth "companionkit/handlers/stt"
	ttsh "companionkit/handlers/tts"
	vadh "companionkit/handlers/vad"
	gptsovits "companionkit/services/gptsovits/tts"
	ollamallm "companionkit/services/ollama/llm"
	openaillm "companionkit/services/openai/llm"
	sensevoice "companionkit/services/sensevoice/stt"
	wstransport "companionkit/transports/websocket"
	"companionkit/vad/energy"
	"companionkit/vad/silero"

	"github.com/bytedance/sonic"
)

// VADEngineKind selects the frame-scoring engine.
type VADEngineKind string

const (
	VADEngineSilero VADEngineKind = "silero"
	VADEngineEnergy VADEngineKind = "energy"
)

// LLMProviderKind selects the cognition backend.
type LLMProviderKind string

const (
	LLMProviderOllama LLMProviderKind = "ollama"
	LLMProviderOpenAI LLMProviderKind = "openai"
)

// FaceBackendKind selects the avatar bridge.
type FaceBackendKind string

const (
	FaceBackendVTS      FaceBackendKind = "vts"
	FaceBackendLoopback FaceBackendKind = "loopback"
	FaceBackendNone     FaceBackendKind = "none"
)

type VADSettings struct {
	Engine  VADEngineKind  `json:"engine"`
	Energy  energy.Config  `json:"energy"`
	Silero  silero.Config  `json:"silero"`
	Handler vadh.VADConfig `json:"handler"`
}

type STTSettings struct {
	SenseVoice sensevoice.Config `json:"sensevoice"`
	Handler    stth.STTConfig    `json:"handler"`
}

type LLMSettings struct {
	Provider LLMProviderKind  `json:"provider"`
	Ollama   ollamallm.Config `json:"ollama"`
	OpenAI   openaillm.Config `json:"openai"`
	Handler  llmh.LLMConfig   `json:"handler"`
}

type TTSSettings struct {
	GPTSoVITS gptsovits.Config `json:"gptsovits"`
	Handler   ttsh.TTSConfig   `json:"handler"`
}

type FaceSettings struct {
	Backend      FaceBackendKind `json:"backend"`
	VTS          vts.Config      `json:"vts"`
	LoopbackAddr string          `json:"loopback_addr"`
}

// SettingsConfig is the top-level config loaded from settings.json.
type SettingsConfig struct {
	Transport wstransport.Config `json:"transport"`
	VAD       VADSettings        `json:"vad"`
	STT       STTSettings        `json:"stt"`
	LLM       LLMSettings        `json:"llm"`
	TTS       TTSSettings        `json:"tts"`
	Agent     agenth.AgentConfig `json:"agent"`
	Face      FaceSettings       `json:"face"`
	JSONLogs  bool               `json:"json_logs"`
}

// DefaultSettingsConfig returns a SettingsConfig pre-filled with
// loopback defaults for every service.
func DefaultSettingsConfig() SettingsConfig {
	return SettingsConfig{
		Transport: wstransport.DefaultConfig(),
		VAD: VADSettings{
			Engine:  VADEngineSilero,
			Energy:  energy.DefaultConfig(),
			Silero:  silero.DefaultConfig(),
			Handler: vadh.DefaultConfig(),
		},
		STT: STTSettings{
			SenseVoice: sensevoice.DefaultConfig(),
			Handler:    stth.DefaultConfig(),
		},
		LLM: LLMSettings{
			Provider: LLMProviderOllama,
			Ollama:   ollamallm.DefaultConfig(),
			Handler:  llmh.DefaultConfig(),
		},
		TTS: TTSSettings{
			GPTSoVITS: gptsovits.DefaultConfig(),
			Handler:   ttsh.DefaultConfig(),
		},
		Agent: agenth.DefaultConfig(),
		Face: FaceSettings{
			Backend:      FaceBackendVTS,
			VTS:          vts.DefaultConfig(),
			LoopbackAddr: "127.0.0.1:8766",
		},
	}
}

// SettingsConfigFromJSON parses a JSON blob over the defaults, so a
// sparse file only overrides what it mentions.
func SettingsConfigFromJSON(data []byte) (SettingsConfig, error) {
	cfg := DefaultSettingsConfig()
	if err := sonic.Unmarshal(data, &cfg); err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: %w", err)
	}
	cfg.applyEnvOverrides()
	return cfg, nil
}

// SettingsConfigFromFile reads and parses a SettingsConfig from a JSON file.
func SettingsConfigFromFile(path string) (SettingsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SettingsConfig{}, fmt.Errorf("settings: read %q: %w", path, err)
	}
	return SettingsConfigFromJSON(data)
}

// applyEnvOverrides pulls secrets from the environment so they never
// have to live in settings.json.
func (c *SettingsConfig) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.OpenAI.APIKey = key
	}
}
