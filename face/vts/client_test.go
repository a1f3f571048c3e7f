package vts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"companionkit/core"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchExpression(t *testing.T) {
	expressions := []expressionInfo{
		{Name: "Happy", File: "happy.exp3.json"},
		{Name: "AngryFace", File: "angry.exp3.json"},
		{Name: "happy_extreme", File: "extreme.exp3.json"},
	}

	assert.Equal(t, "happy.exp3.json", matchExpression(expressions, "Happy"))
	assert.Equal(t, "happy.exp3.json", matchExpression(expressions, "HAPPY"))
	assert.Equal(t, "angry.exp3.json", matchExpression(expressions, "angry"))
	assert.Empty(t, matchExpression(expressions, "melancholy"))

	// Exact beats substring even when a substring candidate comes first.
	assert.Equal(t, "happy.exp3.json", matchExpression(expressions, "happy"))
}

// fakeVTS speaks just enough of the public API for the client: token
// grant, authentication, expression listing, activation, injection.
type fakeVTS struct {
	mu          sync.Mutex
	activations []expressionActivationRequest
	injections  []injectParameterDataRequest
	authCount   int
}

func (f *fakeVTS) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		for {
			_, raw, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var req struct {
				RequestID   string          `json:"requestID"`
				MessageType string          `json:"messageType"`
				Data        json.RawMessage `json:"data"`
			}
			require.NoError(t, sonic.Unmarshal(raw, &req))

			var data any
			var respType string
			switch req.MessageType {
			case "AuthenticationTokenRequest":
				respType = "AuthenticationTokenResponse"
				data = authTokenResponse{AuthenticationToken: "granted-token"}
			case "AuthenticationRequest":
				f.mu.Lock()
				f.authCount++
				f.mu.Unlock()
				respType = "AuthenticationResponse"
				data = authResponse{Authenticated: true}
			case "ExpressionStateRequest":
				respType = "ExpressionStateResponse"
				data = expressionStateResponse{Expressions: []expressionInfo{
					{Name: "Happy", File: "happy.exp3.json"},
					{Name: "Angry", File: "angry.exp3.json"},
				}}
			case "ExpressionActivationRequest":
				var act expressionActivationRequest
				require.NoError(t, sonic.Unmarshal(req.Data, &act))
				f.mu.Lock()
				f.activations = append(f.activations, act)
				f.mu.Unlock()
				respType = "ExpressionActivationResponse"
				data = struct{}{}
			case "InjectParameterDataRequest":
				var inj injectParameterDataRequest
				require.NoError(t, sonic.Unmarshal(req.Data, &inj))
				f.mu.Lock()
				f.injections = append(f.injections, inj)
				f.mu.Unlock()
				respType = "InjectParameterDataResponse"
				data = struct{}{}
			default:
				respType = "APIError"
				data = apiError{ErrorID: 1, Message: "unexpected " + req.MessageType}
			}

			payload, err := sonic.Marshal(envelope{
				APIName:     apiName,
				APIVersion:  apiVersion,
				RequestID:   req.RequestID,
				MessageType: respType,
				Data:        data,
			})
			require.NoError(t, err)
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, payload))
		}
	}
}

func newConnectedClient(t *testing.T, fake *fakeVTS) *Client {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	cfg := DefaultConfig()
	cfg.URL = "ws" + strings.TrimPrefix(server.URL, "http")
	cfg.TokenPath = filepath.Join(t.TempDir(), "token.txt")

	client := NewClient(cfg, core.NewDevelopmentLogger())
	require.NoError(t, client.Connect(context.Background()))
	t.Cleanup(func() { client.Close() })
	return client
}

func TestExpressionLifecycle(t *testing.T) {
	fake := &fakeVTS{}
	client := newConnectedClient(t, fake)

	client.SetExpression("happy")
	client.SetExpression("angry")
	client.SetExpression("neutral")

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.activations) == 4
	}, time.Second, 10*time.Millisecond)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	// happy on, happy off, angry on, angry off.
	assert.Equal(t, "happy.exp3.json", fake.activations[0].ExpressionFile)
	assert.True(t, fake.activations[0].Active)
	assert.Equal(t, "happy.exp3.json", fake.activations[1].ExpressionFile)
	assert.False(t, fake.activations[1].Active)
	assert.Equal(t, "angry.exp3.json", fake.activations[2].ExpressionFile)
	assert.True(t, fake.activations[2].Active)
	assert.Equal(t, "angry.exp3.json", fake.activations[3].ExpressionFile)
	assert.False(t, fake.activations[3].Active)

	for _, act := range fake.activations {
		assert.InDelta(t, 0.5, act.FadeTime, 1e-9)
	}
}

func TestMouthInjectionFormat(t *testing.T) {
	fake := &fakeVTS{}
	client := newConnectedClient(t, fake)

	client.SetMouthOpen(0.75)

	require.Eventually(t, func() bool {
		fake.mu.Lock()
		defer fake.mu.Unlock()
		return len(fake.injections) > 0
	}, time.Second, 10*time.Millisecond)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	inj := fake.injections[0]
	assert.False(t, inj.FaceFound)
	assert.Equal(t, "set", inj.Mode)
	require.Len(t, inj.ParameterValues, 1)
	assert.Equal(t, "MouthOpen", inj.ParameterValues[0].ID)
	assert.InDelta(t, 0.75, inj.ParameterValues[0].Value, 1e-9)
	assert.InDelta(t, 1.0, inj.ParameterValues[0].Weight, 1e-9)
}

func TestTokenPersistedAfterGrant(t *testing.T) {
	fake := &fakeVTS{}
	client := newConnectedClient(t, fake)

	token, fromFile := client.loadToken()
	assert.True(t, fromFile)
	assert.Equal(t, "granted-token", token)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.Equal(t, 1, fake.authCount, "a fresh grant needs exactly one auth round")
}
