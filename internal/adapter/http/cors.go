package httpadapter

import (
	"context"
	"crypto/subtle"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

const corsAllowMethods = "GET,POST,PUT,OPTIONS"
const corsAllowHeaders = "Content-Type,Authorization"

func applyCORSHeaders(ctx *app.RequestContext) {
	ctx.Response.Header.Set("Access-Control-Allow-Origin", "*")
	ctx.Response.Header.Set("Access-Control-Allow-Methods", corsAllowMethods)
	ctx.Response.Header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
	ctx.Response.Header.Set("Access-Control-Max-Age", "600")
}

func corsMiddleware() app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		applyCORSHeaders(ctx)
		if string(ctx.Method()) == consts.MethodOptions {
			ctx.AbortWithStatus(consts.StatusNoContent)
			return
		}
		ctx.Next(c)
	}
}

// tokenMiddleware is a no-op when token is empty.
func tokenMiddleware(token string) app.HandlerFunc {
	return func(c context.Context, ctx *app.RequestContext) {
		if token == "" {
			ctx.Next(c)
			return
		}
		got := bearerToken(ctx)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			writeError(ctx, ErrMissingToken)
			ctx.Abort()
			return
		}
		ctx.Next(c)
	}
}
