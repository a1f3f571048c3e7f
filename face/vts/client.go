// Package vts drives a VTube Studio avatar over its public websocket
// API. A single goroutine owns the connection; expression changes are
// queued and always delivered, while lip-sync values go through a
// one-slot latest-wins channel because a stale mouth position is worse
// than a skipped one.
package vts

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"companionkit/core"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// requestTimeout bounds ordinary control round trips.
	requestTimeout = 2 * time.Second
	// tokenGrantTimeout covers the token request, which blocks until the
	// user clicks Allow in the VTube Studio window.
	tokenGrantTimeout = 60 * time.Second
)

type Config struct {
	URL             string  `json:"url"`
	PluginName      string  `json:"plugin_name"`
	PluginDeveloper string  `json:"plugin_developer"`
	TokenPath       string  `json:"token_path"`       // Where the granted auth token is persisted between runs.
	MouthParameter  string  `json:"mouth_parameter"`  // Injected avatar parameter, usually "MouthOpen".
	FadeTime        float64 `json:"fade_time"`        // Expression crossfade in seconds.
}

func DefaultConfig() Config {
	return Config{
		URL:             "ws://127.0.0.1:8001",
		PluginName:      "CompanionKit",
		PluginDeveloper: "CompanionKit",
		TokenPath:       "./vts_token.txt",
		MouthParameter:  "MouthOpen",
		FadeTime:        0.5,
	}
}

type Client struct {
	config Config
	logger *core.Logger
	conn   *websocket.Conn

	ops  chan func()
	lip  chan float64
	done chan struct{}

	expressions []expressionInfo
	activeFile  string
}

func NewClient(config Config, logger *core.Logger) *Client {
	if config.MouthParameter == "" {
		config.MouthParameter = DefaultConfig().MouthParameter
	}
	if config.FadeTime <= 0 {
		config.FadeTime = DefaultConfig().FadeTime
	}
	if logger == nil {
		logger = core.GetLogger()
	}
	return &Client{
		config: config,
		logger: logger.With(map[string]any{"component": "vts"}),
		ops:    make(chan func(), 16),
		lip:    make(chan float64, 1),
		done:   make(chan struct{}),
	}
}

// Connect dials VTube Studio, authenticates, loads the expression list
// and starts the actor loop.
func (c *Client) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.config.URL, nil)
	if err != nil {
		return fmt.Errorf("dial vtube studio: %w", err)
	}
	c.conn = conn

	if err := c.authenticate(); err != nil {
		conn.Close()
		return err
	}
	if err := c.refreshExpressions(); err != nil {
		conn.Close()
		return err
	}

	c.logger.Info("connected to vtube studio", "expressions", len(c.expressions))
	go c.run()
	return nil
}

// SetExpression queues an expression change. "neutral" clears the
// active expression.
func (c *Client) SetExpression(name string) {
	select {
	case c.ops <- func() { c.applyExpression(name) }:
	default:
		c.logger.Warn("expression queue full, dropping", "expression", name)
	}
}

// SetMouthOpen submits a lip-sync value. Only the most recent value is
// kept if the actor is busy.
func (c *Client) SetMouthOpen(value float64) {
	for {
		select {
		case c.lip <- value:
			return
		default:
			select {
			case <-c.lip:
			default:
			}
		}
	}
}

// Close stops the actor and drops the connection.
func (c *Client) Close() error {
	close(c.done)
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func (c *Client) run() {
	for {
		select {
		case op := <-c.ops:
			op()
		case value := <-c.lip:
			c.injectMouth(value)
		case <-c.done:
			return
		}
	}
}

func (c *Client) authenticate() error {
	token, fromFile := c.loadToken()
	if token == "" {
		fresh, err := c.requestToken()
		if err != nil {
			return err
		}
		token = fresh
	}

	ok, err := c.sendAuth(token)
	if err != nil {
		return err
	}
	if !ok && fromFile {
		// Persisted token was revoked; ask the user for a new grant.
		fresh, err := c.requestToken()
		if err != nil {
			return err
		}
		token = fresh
		ok, err = c.sendAuth(token)
		if err != nil {
			return err
		}
	}
	if !ok {
		return fmt.Errorf("vtube studio rejected authentication")
	}

	c.saveToken(token)
	return nil
}

func (c *Client) requestToken() (string, error) {
	var resp authTokenResponse
	err := c.requestWithTimeout("AuthenticationTokenRequest", authTokenRequest{
		PluginName:      c.config.PluginName,
		PluginDeveloper: c.config.PluginDeveloper,
	}, &resp, tokenGrantTimeout)
	if err != nil {
		return "", fmt.Errorf("request auth token: %w", err)
	}
	return resp.AuthenticationToken, nil
}

func (c *Client) sendAuth(token string) (bool, error) {
	var resp authResponse
	err := c.request("AuthenticationRequest", authRequest{
		PluginName:          c.config.PluginName,
		PluginDeveloper:     c.config.PluginDeveloper,
		AuthenticationToken: token,
	}, &resp)
	if err != nil {
		return false, fmt.Errorf("authenticate: %w", err)
	}
	if !resp.Authenticated {
		c.logger.Warn("authentication refused", "reason", resp.Reason)
	}
	return resp.Authenticated, nil
}

func (c *Client) loadToken() (string, bool) {
	if c.config.TokenPath == "" {
		return "", false
	}
	data, err := os.ReadFile(c.config.TokenPath)
	if err != nil {
		return "", false
	}
	return strings.TrimSpace(string(data)), true
}

func (c *Client) saveToken(token string) {
	if c.config.TokenPath == "" {
		return
	}
	if err := os.WriteFile(c.config.TokenPath, []byte(token), 0o600); err != nil {
		c.logger.Warn("could not persist auth token", "error", err)
	}
}

func (c *Client) refreshExpressions() error {
	var resp expressionStateResponse
	if err := c.request("ExpressionStateRequest", struct{}{}, &resp); err != nil {
		return fmt.Errorf("list expressions: %w", err)
	}
	c.expressions = resp.Expressions
	for _, e := range resp.Expressions {
		if e.Active {
			c.activeFile = e.File
		}
	}
	return nil
}

func (c *Client) applyExpression(name string) {
	if strings.EqualFold(name, "neutral") {
		c.deactivateCurrent()
		return
	}

	file := matchExpression(c.expressions, name)
	if file == "" {
		c.logger.Warn("no expression matches", "expression", name)
		return
	}
	if file == c.activeFile {
		return
	}

	c.deactivateCurrent()
	err := c.request("ExpressionActivationRequest", expressionActivationRequest{
		ExpressionFile: file,
		Active:         true,
		FadeTime:       c.config.FadeTime,
	}, nil)
	if err != nil {
		c.logger.Error("expression activation failed", "error", err)
		return
	}
	c.activeFile = file
}

func (c *Client) deactivateCurrent() {
	if c.activeFile == "" {
		return
	}
	err := c.request("ExpressionActivationRequest", expressionActivationRequest{
		ExpressionFile: c.activeFile,
		Active:         false,
		FadeTime:       c.config.FadeTime,
	}, nil)
	if err != nil {
		c.logger.Error("expression deactivation failed", "error", err)
		return
	}
	c.activeFile = ""
}

func (c *Client) injectMouth(value float64) {
	// faceFound false tells VTube Studio the injected value replaces
	// tracking input rather than blending with it.
	err := c.request("InjectParameterDataRequest", injectParameterDataRequest{
		FaceFound: false,
		Mode:      "set",
		ParameterValues: []parameterValue{
			{ID: c.config.MouthParameter, Value: value, Weight: 1.0},
		},
	}, nil)
	if err != nil {
		c.logger.Debug("mouth injection failed", "error", err)
	}
}

// request sends one message and waits for its reply. The connection is
// owned by a single goroutine, so a plain send-then-read is safe.
func (c *Client) request(messageType string, data any, out any) error {
	return c.requestWithTimeout(messageType, data, out, requestTimeout)
}

func (c *Client) requestWithTimeout(messageType string, data any, out any, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	_ = c.conn.SetWriteDeadline(deadline)
	_ = c.conn.SetReadDeadline(deadline)

	id := uuid.NewString()
	payload, err := sonic.Marshal(envelope{
		APIName:     apiName,
		APIVersion:  apiVersion,
		RequestID:   id,
		MessageType: messageType,
		Data:        data,
	})
	if err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return err
		}
		var resp responseEnvelope
		if err := sonic.Unmarshal(raw, &resp); err != nil {
			return err
		}
		if resp.RequestID != id {
			// Unsolicited event; VTube Studio pushes these freely.
			continue
		}
		if resp.MessageType == "APIError" {
			var apiErr apiError
			_ = sonic.Unmarshal(resp.Data, &apiErr)
			return fmt.Errorf("vtube studio error %d: %s", apiErr.ErrorID, apiErr.Message)
		}
		if out != nil {
			return sonic.Unmarshal(resp.Data, out)
		}
		return nil
	}
}

// matchExpression resolves a requested expression name to a file:
// exact match first, then case-insensitive, then substring.
func matchExpression(expressions []expressionInfo, name string) string {
	for _, e := range expressions {
		if e.Name == name {
			return e.File
		}
	}
	for _, e := range expressions {
		if strings.EqualFold(e.Name, name) {
			return e.File
		}
	}
	lower := strings.ToLower(name)
	for _, e := range expressions {
		if strings.Contains(strings.ToLower(e.Name), lower) {
			return e.File
		}
	}
	return ""
}
