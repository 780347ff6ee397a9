package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Arrogantx/hyperian/pkg/logger"
)

// Forwarder relays JSON-RPC request bodies to one fixed upstream node. It
// never rewrites the request or the upstream's response body; it only
// refuses methods outside the allow-list so the endpoint cannot be used as
// an open relay for state-changing calls.
type Forwarder struct {
	upstream       string
	allowedMethods map[string]struct{}
	httpClient     *http.Client
}

func NewForwarder(upstream string, allowedMethods []string, timeout time.Duration) *Forwarder {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	allowed := make(map[string]struct{}, len(allowedMethods))
	for _, m := range allowedMethods {
		allowed[m] = struct{}{}
	}
	return &Forwarder{
		upstream:       upstream,
		allowedMethods: allowed,
		httpClient:     &http.Client{Timeout: timeout},
	}
}

type proxyErrorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (f *Forwarder) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeProxyError(w, http.StatusMethodNotAllowed, "method not allowed", "")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeProxyError(w, http.StatusBadRequest, "failed to read request body", err.Error())
		return
	}

	var probe struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		writeProxyError(w, http.StatusBadRequest, "body is not valid JSON", err.Error())
		return
	}
	if _, ok := f.allowedMethods[probe.Method]; !ok {
		logger.WithFields(map[string]interface{}{
			"method": probe.Method,
		}).Warn("rejected rpc method")
		writeProxyError(w, http.StatusForbidden,
			fmt.Sprintf("method %q is not allowed", probe.Method), "")
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, f.upstream, bytes.NewReader(body))
	if err != nil {
		writeProxyError(w, http.StatusInternalServerError, "proxy error", err.Error())
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		writeProxyError(w, http.StatusBadGateway, "proxy error", err.Error())
		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		logger.WithError(err).Error("failed to relay rpc response")
	}
}

func writeProxyError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(proxyErrorBody{Error: message, Details: details})
}
