package httpx

import (
	"context"
	"net/http"
	"strings"
)

// AccessTokenHeader carries the access token on authenticated routes.
const AccessTokenHeader = "X-Access-Token"

const msgNotAuthorized = "User is not authorized"

type authContextKey string

type authInfo struct {
	Email string
}

const contextKeyAuth authContextKey = "crate-auth-info"

type contextSetter interface {
	SetContext(context.Context)
}

func withAuthInfo(ctx context.Context, info authInfo) context.Context {
	return context.WithValue(ctx, contextKeyAuth, info)
}

// authInfoFromContext extracts auth metadata from context.
func authInfoFromContext(ctx context.Context) (authInfo, bool) {
	value := ctx.Value(contextKeyAuth)
	if value == nil {
		return authInfo{}, false
	}
	info, ok := value.(authInfo)
	return info, ok
}

func accessToken(req *http.Request) string {
	return strings.TrimSpace(req.Header.Get(AccessTokenHeader))
}
