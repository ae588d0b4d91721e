package api

import (
	"context"
	"net/http"

	"github.com/filecoin-project/go-jsonrpc"
)

// NewWavePortalClient dials the daemon at addr, a ws or http rpc url.
func NewWavePortalClient(ctx context.Context, addr string, requestHeader http.Header, opts ...jsonrpc.Option) (IWavePortal, jsonrpc.ClientCloser, error) {
	var res WavePortalStruct
	closer, err := jsonrpc.NewMergeClient(ctx, addr, APINamespace, []interface{}{&res.Internal}, requestHeader, opts...)
	return &res, closer, err
}

// AuthHeader builds the request header for token.
func AuthHeader(token string) http.Header {
	header := http.Header{}
	if token != "" {
		header.Add(AuthorizationHeader, "Bearer "+token)
	}
	return header
}
