// Package websocket serves the UI session: binary frames in are mic
// audio, binary frames out are playback audio, and JSON envelopes carry
// everything else. One client at a time; a new connection replaces the
// old one.
package websocket

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"companionkit/core"
	transportevents "companionkit/events/transport"
	"companionkit/protocol"
	"companionkit/utils/audio"

	"github.com/gorilla/websocket"
)

type Config struct {
	Addr string `json:"addr"`
	Path string `json:"path"`
}

func DefaultConfig() Config {
	return Config{
		Addr: "127.0.0.1:8765",
		Path: "/session",
	}
}

type Transport struct {
	config   Config
	logger   *core.Logger
	upgrader websocket.Upgrader
	server   *http.Server

	// Incoming feeds the pipeline head.
	Incoming chan *core.EventPacket

	mu            sync.Mutex // guards conn and writes to it
	conn          *websocket.Conn
	inputRate     int
	inputChannels int
	inputFormat   core.AudioEncodingFormat
}

func NewTransport(config Config, logger *core.Logger) *Transport {
	if config.Addr == "" {
		config = DefaultConfig()
	}
	if config.Path == "" {
		config.Path = DefaultConfig().Path
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	t := &Transport{
		config:        config,
		logger:        logger.With(map[string]any{"component": "transport"}),
		Incoming:      make(chan *core.EventPacket, 100),
		inputRate:     16000,
		inputChannels: 1,
		inputFormat:   core.PCM,
	}

	mux := http.NewServeMux()
	mux.HandleFunc(config.Path, t.handleSession)
	t.server = &http.Server{Addr: config.Addr, Handler: mux}
	return t
}

// Handler exposes the mux for tests.
func (t *Transport) Handler() http.Handler {
	return t.server.Handler
}

// Start serves until Shutdown. It returns once the listener stops.
func (t *Transport) Start() error {
	t.logger.Info("ui transport listening", "addr", t.config.Addr, "path", t.config.Path)
	err := t.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (t *Transport) Shutdown(ctx context.Context) error {
	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
		t.conn = nil
	}
	t.mu.Unlock()
	return t.server.Shutdown(ctx)
}

func (t *Transport) handleSession(w http.ResponseWriter, r *http.Request) {
	conn, err := t.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	t.mu.Lock()
	if t.conn != nil {
		t.conn.Close()
	}
	t.conn = conn
	t.mu.Unlock()
	t.logger.Info("ui client connected", "remote", conn.RemoteAddr().String())

	go t.readLoop(conn)
}

func (t *Transport) readLoop(conn *websocket.Conn) {
	defer func() {
		t.mu.Lock()
		if t.conn == conn {
			t.conn = nil
		}
		t.mu.Unlock()
		conn.Close()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			t.logger.Debug("ui client gone", "error", err)
			return
		}

		switch messageType {
		case websocket.BinaryMessage:
			t.handleAudioFrame(data)
		case websocket.TextMessage:
			if err := t.handleEnvelope(data); err != nil {
				t.logger.Warn("bad ui message", "error", err)
			}
		}
	}
}

func (t *Transport) handleAudioFrame(data []byte) {
	// The frame buffer is reused by gorilla on the next read; copy it.
	pcm := make([]byte, len(data))
	copy(pcm, data)

	t.mu.Lock()
	rate, channels, format := t.inputRate, t.inputChannels, t.inputFormat
	t.mu.Unlock()

	t.deliver(&transportevents.TransportAudioInputEvent{
		AudioChunk: core.AudioChunk{
			Data:       &pcm,
			SampleRate: rate,
			Channels:   channels,
			Format:     format,
		},
	})
}

func (t *Transport) handleEnvelope(data []byte) error {
	msgType, raw, err := protocol.Unmarshal(data)
	if err != nil {
		return err
	}

	switch msgType {
	case protocol.MsgHello:
		hello, err := protocol.UnmarshalPayload[protocol.HelloPayload](raw)
		if err != nil {
			return err
		}
		if hello.SampleRate <= 0 || hello.Channels <= 0 {
			return fmt.Errorf("invalid mic format %d Hz x%d", hello.SampleRate, hello.Channels)
		}
		format := core.PCM
		switch hello.Encoding {
		case "", "pcm16":
		case "mulaw":
			format = core.ULAW
		case "alaw":
			format = core.ALAW
		default:
			return fmt.Errorf("unknown mic encoding %q", hello.Encoding)
		}
		t.mu.Lock()
		t.inputRate = hello.SampleRate
		t.inputChannels = hello.Channels
		t.inputFormat = format
		t.mu.Unlock()
		t.logger.Info("mic format declared",
			"sample_rate", hello.SampleRate, "channels", hello.Channels, "encoding", hello.Encoding)

	case protocol.MsgTextInput:
		input, err := protocol.UnmarshalPayload[protocol.TextInputPayload](raw)
		if err != nil {
			return err
		}
		t.deliver(&transportevents.TransportTextInputEvent{Text: input.Text})

	default:
		return fmt.Errorf("unexpected message type %q", msgType)
	}
	return nil
}

func (t *Transport) deliver(event core.IEvent) {
	packet := core.NewEventPacket(event, core.EventRelayDestinationNextService, "Transport")
	select {
	case t.Incoming <- packet:
	default:
		// The pipeline is wedged; dropping audio beats blocking reads.
		t.logger.Warn("pipeline input full, dropping", "event", event.GetId())
	}
}

// WriteBlock implements the speaker's audio sink: an audio envelope
// followed by the block as 16-bit PCM.
func (t *Transport) WriteBlock(samples []float32, sampleRate int) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return fmt.Errorf("no ui client connected")
	}

	header, err := protocol.Marshal(protocol.MsgAudio, protocol.AudioPayload{
		SampleRate: sampleRate,
		Samples:    len(samples),
	})
	if err != nil {
		return err
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, header); err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.BinaryMessage, audio.Float32ToPCMBytes(samples))
}

// SendEnvelope sends a typed message to the connected client. Without a
// client it is a silent no-op; the pipeline does not care whether
// anyone is watching.
func (t *Transport) SendEnvelope(msgType protocol.MessageType, payload any) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}
	data, err := protocol.Marshal(msgType, payload)
	if err != nil {
		return err
	}
	return t.conn.WriteMessage(websocket.TextMessage, data)
}
