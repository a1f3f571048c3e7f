package sensevoice

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscribeSendsWAV(t *testing.T) {
	var payload []byte
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/asr", r.URL.Path)
		assert.Equal(t, "auto", r.URL.Query().Get("lang"))
		assert.Equal(t, "audio/wav", r.Header.Get("Content-Type"))

		payload, _ = io.ReadAll(r.Body)
		w.Write([]byte(`{"result":[{"text":"<|zh|><|HAPPY|><|Speech|>你好"}]}`))
	}))
	defer server.Close()

	svc := NewService(Config{BaseURL: server.URL, Language: "auto"}, nil)
	require.NoError(t, svc.Initialize(context.Background()))

	samples := make([]float32, 1600)
	text, err := svc.Transcribe(context.Background(), samples, 16000)
	require.NoError(t, err)
	assert.Equal(t, "<|zh|><|HAPPY|><|Speech|>你好", text)
	assert.True(t, bytes.HasPrefix(payload, []byte("RIFF")), "body must be a WAV file")
}

func TestTranscribeEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[]}`))
	}))
	defer server.Close()

	svc := NewService(Config{BaseURL: server.URL}, nil)
	text, err := svc.Transcribe(context.Background(), make([]float32, 160), 16000)
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestTranscribeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	svc := NewService(Config{BaseURL: server.URL}, nil)
	_, err := svc.Transcribe(context.Background(), make([]float32, 160), 16000)
	assert.Error(t, err)
}
