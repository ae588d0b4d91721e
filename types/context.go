package types

import "context"

type ctxKey string

var (
	IPKey      = ctxKey("ip")
	AccountKey = ctxKey("account")
)

// CtxGetIP returns the remote address the auth handler stored in ctx.
func CtxGetIP(ctx context.Context) (string, bool) {
	ip, ok := ctx.Value(IPKey).(string)
	return ip, ok
}

// CtxGetAccount returns the token holder the auth handler stored in ctx.
func CtxGetAccount(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(AccountKey).(string)
	return name, ok
}
