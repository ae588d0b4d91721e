package proxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
)

const maxRequestBody = 5 << 20

type rpcRequest struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Method string          `json:"method"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Error   *rpcError       `json:"error"`
}

// checkMethods returns the first request in body, single or batch, that rule rejects.
func checkMethods(body []byte, rule MethodRule) (*rpcRequest, error) {
	body = bytes.TrimSpace(body)
	var reqs []rpcRequest
	if len(body) > 0 && body[0] == '[' {
		if err := json.Unmarshal(body, &reqs); err != nil {
			return nil, fmt.Errorf("decode json-rpc batch: %w", err)
		}
	} else {
		var req rpcRequest
		if err := json.Unmarshal(body, &req); err != nil {
			return nil, fmt.Errorf("decode json-rpc request: %w", err)
		}
		reqs = append(reqs, req)
	}
	for i := range reqs {
		if !rule(reqs[i].Method) {
			return &reqs[i], nil
		}
	}
	return nil, nil
}

func deniedResponse(req *rpcRequest) rpcResponse {
	id := req.ID
	if len(id) == 0 {
		id = json.RawMessage("null")
	}
	return rpcResponse{
		JSONRPC: "2.0",
		ID:      id,
		Error: &rpcError{
			Code:    -32601,
			Message: fmt.Sprintf("%s: %s", ErrorMethodNotAllowed, req.Method),
		},
	}
}

func writeDenied(w http.ResponseWriter, req *rpcRequest) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusForbidden)
	_ = json.NewEncoder(w).Encode(deniedResponse(req))
}
