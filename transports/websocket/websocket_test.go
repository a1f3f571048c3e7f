package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"companionkit/core"
	transportevents "companionkit/events/transport"
	"companionkit/protocol"
	"companionkit/utils/audio"

	gorilla "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTransport(t *testing.T) (*Transport, *gorilla.Conn) {
	t.Helper()
	tr := NewTransport(DefaultConfig(), core.GetLogger())
	server := httptest.NewServer(tr.Handler())
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/session"
	conn, _, err := gorilla.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return tr, conn
}

func sendEnvelope(t *testing.T, conn *gorilla.Conn, msgType protocol.MessageType, payload any) {
	t.Helper()
	data, err := protocol.Marshal(msgType, payload)
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(gorilla.TextMessage, data))
}

func nextPacket(t *testing.T, tr *Transport) *core.EventPacket {
	t.Helper()
	select {
	case packet := <-tr.Incoming:
		return packet
	case <-time.After(time.Second):
		t.Fatal("no packet arrived")
		return nil
	}
}

func TestBinaryFramesBecomeAudioEvents(t *testing.T) {
	tr, conn := dialTransport(t)

	pcm := audio.Float32ToPCMBytes([]float32{0.5, -0.5, 0.25})
	require.NoError(t, conn.WriteMessage(gorilla.BinaryMessage, pcm))

	packet := nextPacket(t, tr)
	event, ok := packet.Event.(*transportevents.TransportAudioInputEvent)
	require.True(t, ok, "got %T", packet.Event)
	// No hello yet: the default mic format applies.
	assert.Equal(t, 16000, event.AudioChunk.SampleRate)
	assert.Equal(t, 1, event.AudioChunk.Channels)
	assert.Equal(t, pcm, *event.AudioChunk.Data)
}

func TestHelloDeclaresMicFormat(t *testing.T) {
	tr, conn := dialTransport(t)

	sendEnvelope(t, conn, protocol.MsgHello, protocol.HelloPayload{SampleRate: 48000, Channels: 2})
	require.NoError(t, conn.WriteMessage(gorilla.BinaryMessage, []byte{0, 0, 0, 0}))

	packet := nextPacket(t, tr)
	event := packet.Event.(*transportevents.TransportAudioInputEvent)
	assert.Equal(t, 48000, event.AudioChunk.SampleRate)
	assert.Equal(t, 2, event.AudioChunk.Channels)
}

func TestTextInputBecomesTextEvent(t *testing.T) {
	tr, conn := dialTransport(t)

	sendEnvelope(t, conn, protocol.MsgTextInput, protocol.TextInputPayload{Text: "how are you"})

	packet := nextPacket(t, tr)
	event, ok := packet.Event.(*transportevents.TransportTextInputEvent)
	require.True(t, ok, "got %T", packet.Event)
	assert.Equal(t, "how are you", event.Text)
}

func TestWriteBlockSendsHeaderThenPCM(t *testing.T) {
	tr, conn := dialTransport(t)

	// The upgrade is handled on the server goroutine; wait until the
	// transport has registered the client.
	samples := []float32{0.1, 0.2, 0.3, 0.4}
	require.Eventually(t, func() bool {
		return tr.WriteBlock(samples, 32000) == nil
	}, time.Second, 10*time.Millisecond)

	msgType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, gorilla.TextMessage, msgType)
	parsedType, raw, err := protocol.Unmarshal(data)
	require.NoError(t, err)
	require.Equal(t, protocol.MsgAudio, parsedType)
	header, err := protocol.UnmarshalPayload[protocol.AudioPayload](raw)
	require.NoError(t, err)
	assert.Equal(t, 32000, header.SampleRate)
	assert.Equal(t, len(samples), header.Samples)

	msgType, data, err = conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, gorilla.BinaryMessage, msgType)
	assert.Equal(t, audio.Float32ToPCMBytes(samples), data)
}

func TestWriteBlockWithoutClientErrors(t *testing.T) {
	tr := NewTransport(DefaultConfig(), core.GetLogger())
	assert.Error(t, tr.WriteBlock([]float32{0}, 16000))
}

func TestSendEnvelopeWithoutClientIsNoop(t *testing.T) {
	tr := NewTransport(DefaultConfig(), core.GetLogger())
	assert.NoError(t, tr.SendEnvelope(protocol.MsgState, protocol.StatePayload{Phase: "idle"}))
}
