package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Arrogantx/hyperian/pkg/errors"
)

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
	ID      uint64        `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	Result *string   `json:"result"`
	Error  *rpcError `json:"error"`
}

type callParams struct {
	To   string `json:"to"`
	Data string `json:"data"`
}

// Client issues read-only JSON-RPC calls against one upstream node.
type Client struct {
	endpoint   string
	httpClient *http.Client
	requestID  uint64
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// EthCall executes eth_call against the contract at the latest block and
// returns the raw hex result.
func (c *Client) EthCall(ctx context.Context, contract, data string) (string, error) {
	req := rpcRequest{
		JSONRPC: "2.0",
		Method:  "eth_call",
		Params:  []interface{}{callParams{To: contract, Data: data}, "latest"},
		ID:      atomic.AddUint64(&c.requestID, 1),
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", errors.New(errors.ErrUpstreamUnavailable, "failed to encode rpc request", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.New(errors.ErrUpstreamUnavailable, "failed to build rpc request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", errors.New(errors.ErrUpstreamUnavailable, "rpc endpoint unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", errors.New(errors.ErrUpstreamUnavailable,
			fmt.Sprintf("rpc endpoint returned status %d", resp.StatusCode), nil)
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", errors.New(errors.ErrUpstreamUnavailable, "failed to read rpc response", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBody, &rpcResp); err != nil {
		return "", errors.New(errors.ErrMalformedResponse, "rpc response is not valid JSON", err)
	}
	if rpcResp.Error != nil {
		return "", errors.New(errors.ErrUpstreamUnavailable,
			fmt.Sprintf("rpc error %d: %s", rpcResp.Error.Code, rpcResp.Error.Message), nil)
	}
	if rpcResp.Result == nil {
		return "", errors.New(errors.ErrMalformedResponse, "rpc response missing result", nil)
	}

	return *rpcResp.Result, nil
}
