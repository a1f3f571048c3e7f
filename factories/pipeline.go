package factories

import (
	"context"
	"fmt"

	"companionkit/core"
	"companionkit/face"
	"companionkit/face/loopback"
	"companionkit/face/vts"
	agenth "companionkit/handlers/agent"
	llmh "companionkit/handlers/llm"
	stth "companionkit/handlers/stt"
	transporth "companionkit/handlers/transport"
	ttsh "companionkit/handlers/tts"
	vadh "companionkit/handlers/vad"
	gptsovits "companionkit/services/gptsovits/tts"
	ollamallm "companionkit/services/ollama/llm"
	openaillm "companionkit/services/openai/llm"
	sensevoice "companionkit/services/sensevoice/stt"
	"companionkit/transports/websocket"
	enginevad "companionkit/vad"
	"companionkit/vad/energy"
	"companionkit/vad/silero"
)

// Companion bundles everything the entrypoint needs to run and stop a
// session.
type Companion struct {
	Transport *websocket.Transport
	Handlers  []core.IHandler
	Brain     *llmh.Brain
	Speaker   *ttsh.Speaker
	Face      face.Bridge
	Gate      *core.ListenGate

	Loopback *loopback.Server // nil unless the loopback backend is selected
	cleanup  []func()
}

// Build wires services, engines and handlers according to settings and
// character. Nothing is connected to the network yet except the VTube
// Studio bridge, which needs its handshake before the pipeline starts.
func Build(ctx context.Context, settings SettingsConfig, character CharacterConfig, logger *core.Logger) (*Companion, error) {
	if logger == nil {
		logger = core.GetLogger()
	}

	c := &Companion{Gate: core.NewListenGate(true)}

	engine, err := buildVADEngine(settings.VAD)
	if err != nil {
		return nil, err
	}

	bridge, err := c.buildFace(ctx, settings.Face, logger)
	if err != nil {
		return nil, err
	}
	c.Face = bridge

	c.Transport = websocket.NewTransport(settings.Transport, logger)

	sttService := sensevoice.NewService(settings.STT.SenseVoice, logger)

	llmService, err := buildLLMService(settings.LLM, logger)
	if err != nil {
		return nil, err
	}
	// Brain and Speaker sit outside the handler chain, so the runner
	// never initializes their services; do it here.
	if err := llmService.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("llm service: %w", err)
	}
	c.cleanup = append(c.cleanup, func() { _ = llmService.Cleanup() })
	c.Brain = llmh.NewBrain(llmService, character.PromptText(), settings.LLM.Handler, logger)

	ttsConfig := settings.TTS.GPTSoVITS
	ttsConfig.Voice = character.Voice
	ttsService := gptsovits.NewService(ttsConfig, logger)
	if err := ttsService.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("tts service: %w", err)
	}
	c.cleanup = append(c.cleanup, func() { _ = ttsService.Cleanup() })
	c.Speaker = ttsh.NewSpeaker(ttsService, c.Transport, bridge, settings.TTS.Handler, logger)

	expressions := &emotionFace{bridge: bridge, mapping: character.EmotionMap}

	c.Handlers = []core.IHandler{
		vadh.NewVADHandler(engine, c.Gate, settings.VAD.Handler, logger),
		stth.NewSTTHandler(sttService, settings.STT.Handler, logger),
		agenth.NewAgentHandler(c.Brain, c.Speaker, expressions, c.Gate, settings.Agent, logger),
		transporth.NewTransportHandler(c.Transport, logger),
	}
	return c, nil
}

// Close tears down whatever Build connected.
func (c *Companion) Close() {
	for i := len(c.cleanup) - 1; i >= 0; i-- {
		c.cleanup[i]()
	}
}

func buildVADEngine(settings VADSettings) (enginevad.Engine, error) {
	switch settings.Engine {
	case VADEngineEnergy:
		return energy.New(settings.Energy), nil
	case VADEngineSilero, "":
		engine := silero.New(settings.Silero)
		if err := engine.Initialize(); err != nil {
			return nil, fmt.Errorf("silero engine: %w", err)
		}
		return engine, nil
	default:
		return nil, fmt.Errorf("unknown vad engine %q", settings.Engine)
	}
}

func buildLLMService(settings LLMSettings, logger *core.Logger) (llmh.LLMService, error) {
	switch settings.Provider {
	case LLMProviderOpenAI:
		return openaillm.NewService(settings.OpenAI, logger), nil
	case LLMProviderOllama, "":
		return ollamallm.NewService(settings.Ollama, logger), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", settings.Provider)
	}
}

func (c *Companion) buildFace(ctx context.Context, settings FaceSettings, logger *core.Logger) (face.Bridge, error) {
	switch settings.Backend {
	case FaceBackendNone:
		return face.Nop{}, nil
	case FaceBackendLoopback:
		c.Loopback = loopback.NewServer(settings.LoopbackAddr, logger)
		client := loopback.NewClient("http://"+settings.LoopbackAddr, logger)
		c.cleanup = append(c.cleanup, client.Close)
		return client, nil
	case FaceBackendVTS, "":
		client := vts.NewClient(settings.VTS, logger)
		if err := client.Connect(ctx); err != nil {
			// The avatar is an accessory; the companion still listens
			// and talks without one.
			logger.Warn("vtube studio unreachable, avatar disabled", "error", err)
			return face.Nop{}, nil
		}
		c.cleanup = append(c.cleanup, func() { client.Close() })
		return client, nil
	default:
		return nil, fmt.Errorf("unknown face backend %q", settings.Backend)
	}
}

// emotionFace adapts a Bridge to the coordinator's expression port,
// translating model emotion tags through the character's map.
type emotionFace struct {
	bridge  face.Bridge
	mapping map[string]string
}

func (f *emotionFace) SetExpression(emotion string) {
	f.bridge.SetExpression(face.MapEmotion(f.mapping, emotion))
}
