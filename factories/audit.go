package factories

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// loopbackHosts are the only hostnames an endpoint may resolve to. The
// companion drives a desktop avatar and local model servers; a config
// pointing any of them at a remote machine is treated as tampering, not
// as a preference.
var loopbackHosts = map[string]struct{}{
	"127.0.0.1": {},
	"localhost": {},
	"::1":       {},
}

// SecurityAudit verifies that every endpoint the companion will talk to
// is on the local machine. It returns the first violation found; the
// caller is expected to treat any violation as fatal.
func SecurityAudit(cfg SettingsConfig) error {
	checks := []struct {
		name     string
		endpoint string
	}{
		{"transport.addr", "http://" + cfg.Transport.Addr},
		{"stt.sensevoice.base_url", cfg.STT.SenseVoice.BaseURL},
		{"tts.gptsovits.base_url", cfg.TTS.GPTSoVITS.BaseURL},
		{"face.vts.url", cfg.Face.VTS.URL},
	}
	if cfg.LLM.Provider == LLMProviderOllama {
		checks = append(checks, struct{ name, endpoint string }{"llm.ollama.base_url", cfg.LLM.Ollama.BaseURL})
	}
	if cfg.Face.Backend == FaceBackendLoopback {
		checks = append(checks, struct{ name, endpoint string }{"face.loopback_addr", "http://" + cfg.Face.LoopbackAddr})
	}

	for _, check := range checks {
		if err := requireLoopback(check.endpoint); err != nil {
			return fmt.Errorf("security audit: %s: %w", check.name, err)
		}
	}
	return nil
}

func requireLoopback(endpoint string) error {
	if endpoint == "" {
		return fmt.Errorf("endpoint is empty")
	}
	u, err := url.Parse(endpoint)
	if err != nil {
		return fmt.Errorf("unparseable endpoint %q: %w", endpoint, err)
	}
	host := u.Hostname()
	if host == "" {
		// Addr forms like ":8765" bind every interface; that exposes
		// the session to the network.
		if strings.HasPrefix(u.Host, ":") {
			return fmt.Errorf("endpoint %q binds all interfaces", endpoint)
		}
		if h, _, splitErr := net.SplitHostPort(u.Host); splitErr == nil {
			host = h
		}
	}
	if _, ok := loopbackHosts[host]; !ok {
		return fmt.Errorf("endpoint %q is not loopback", endpoint)
	}
	return nil
}
