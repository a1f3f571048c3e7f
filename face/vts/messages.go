package vts

import "encoding/json"

const (
	apiName    = "VTubeStudioPublicAPI"
	apiVersion = "1.0"
)

type envelope struct {
	APIName     string `json:"apiName"`
	APIVersion  string `json:"apiVersion"`
	RequestID   string `json:"requestID"`
	MessageType string `json:"messageType"`
	Data        any    `json:"data,omitempty"`
}

type responseEnvelope struct {
	RequestID   string          `json:"requestID"`
	MessageType string          `json:"messageType"`
	Data        json.RawMessage `json:"data"`
}

type apiError struct {
	ErrorID int    `json:"errorID"`
	Message string `json:"message"`
}

type authTokenRequest struct {
	PluginName      string `json:"pluginName"`
	PluginDeveloper string `json:"pluginDeveloper"`
}

type authTokenResponse struct {
	AuthenticationToken string `json:"authenticationToken"`
}

type authRequest struct {
	PluginName          string `json:"pluginName"`
	PluginDeveloper     string `json:"pluginDeveloper"`
	AuthenticationToken string `json:"authenticationToken"`
}

type authResponse struct {
	Authenticated bool   `json:"authenticated"`
	Reason        string `json:"reason"`
}

type expressionStateResponse struct {
	Expressions []expressionInfo `json:"expressions"`
}

type expressionInfo struct {
	Name   string `json:"name"`
	File   string `json:"file"`
	Active bool   `json:"active"`
}

type expressionActivationRequest struct {
	ExpressionFile string  `json:"expressionFile"`
	Active         bool    `json:"active"`
	FadeTime       float64 `json:"fadeTime"`
}

type injectParameterDataRequest struct {
	FaceFound       bool             `json:"faceFound"`
	Mode            string           `json:"mode"`
	ParameterValues []parameterValue `json:"parameterValues"`
}

type parameterValue struct {
	ID     string  `json:"id"`
	Value  float64 `json:"value"`
	Weight float64 `json:"weight"`
}
