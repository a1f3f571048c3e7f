package gptsovits

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"companionkit/utils/audio"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testVoice = Voice{
	RefAudioPath: "/voices/companion_ref.wav",
	PromptText:   "今天也要加油哦",
	PromptLang:   "zh",
}

func TestSynthesizeWireFormat(t *testing.T) {
	clip := make([]float32, 3200)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/tts", r.URL.Path)

		q := r.URL.Query()
		assert.Equal(t, "你好呀", q.Get("text"))
		assert.Equal(t, "zh", q.Get("text_lang"))
		assert.Equal(t, testVoice.RefAudioPath, q.Get("ref_audio_path"))
		assert.Equal(t, testVoice.PromptText, q.Get("prompt_text"))
		assert.Equal(t, "zh", q.Get("prompt_lang"))

		w.Write(audio.EncodeWAV(clip, 32000))
	}))
	defer server.Close()

	svc := NewService(Config{BaseURL: server.URL, TextLang: "zh", Voice: testVoice}, nil)
	require.NoError(t, svc.Initialize(context.Background()))

	out, err := svc.Synthesize(context.Background(), "你好呀")
	require.NoError(t, err)
	assert.Equal(t, 32000, out.SampleRate)
	assert.Len(t, out.Samples, len(clip))
}

func TestSynthesizeRawPCMFallback(t *testing.T) {
	raw := audio.Float32ToPCMBytes(make([]float32, 320))
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(raw)
	}))
	defer server.Close()

	svc := NewService(Config{BaseURL: server.URL, TextLang: "zh", FallbackRate: 32000, Voice: testVoice}, nil)
	out, err := svc.Synthesize(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, 32000, out.SampleRate)
	assert.Len(t, out.Samples, 320)
}

func TestSynthesizeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`ref audio not found`))
	}))
	defer server.Close()

	svc := NewService(Config{BaseURL: server.URL, Voice: testVoice}, nil)
	_, err := svc.Synthesize(context.Background(), "hi")
	assert.Error(t, err)
}
