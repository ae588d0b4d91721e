package utils

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/filecoin-project/go-jsonrpc/auth"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/trace"

	"github.com/ipfs-force-community/sophon-waveportal/types"
)

var log = logging.Logger("auth")

type AuthHandler struct {
	Verify func(ctx context.Context, token string) (*JWTPayload, []auth.Permission, error)
	Next   http.HandlerFunc
}

func (h *AuthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := trace.StartSpan(r.Context(), "AuthHandler.ServeHTTP",
		func(so *trace.StartOptions) { so.Sampler = trace.AlwaysSample() })
	defer span.End()

	token := r.Header.Get("Authorization")
	if token == "" {
		token = r.FormValue("token")
		if token != "" {
			token = "Bearer " + token
		}
	}

	ctx = context.WithValue(ctx, types.IPKey, h.getClientIp(r))

	if len(token) == 0 {
		// local call doesn't need a token
		if !isLoopback(r.RemoteAddr) {
			message := "JWT verification failed, empty token"
			span.SetStatus(trace.Status{Code: trace.StatusCodeUnauthenticated, Message: message})
			log.Warn(message)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		ctx = auth.WithPerm(ctx, AllPermissions)
		h.Next(w, r.WithContext(ctx))
		return
	}

	if !strings.HasPrefix(token, "Bearer ") {
		log.Warn("missing Bearer prefix in auth header")
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	token = strings.TrimPrefix(token, "Bearer ")

	span.AddAttributes(trace.StringAttribute("X-Real-IP", r.RemoteAddr),
		trace.StringAttribute("preHost", r.Host))

	payload, perms, err := h.Verify(ctx, token)
	if err != nil {
		message := fmt.Sprintf("JWT Verification failed (originating from %s): %s", r.RemoteAddr, err.Error())
		span.SetStatus(trace.Status{Code: trace.StatusCodeUnauthenticated, Message: message})
		log.Warn(message)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	span.AddAttributes(trace.StringAttribute("Account", payload.Name))
	ctx = context.WithValue(ctx, types.AccountKey, payload.Name)
	ctx = auth.WithPerm(ctx, perms)

	h.Next(w, r.WithContext(ctx))
}

func (h *AuthHandler) getClientIp(r *http.Request) string {
	realIp := r.Header.Get("X-Real-IP")
	if len(realIp) == 0 {
		return r.RemoteAddr
	}
	return realIp
}

func isLoopback(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		host = remoteAddr
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
