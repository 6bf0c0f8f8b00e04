package httpadapter

import (
	"context"
	"testing"

	"github.com/cloudwego/hertz/pkg/app"
	"github.com/cloudwego/hertz/pkg/protocol/consts"
)

func TestApplyCORSHeaders(t *testing.T) {
	ctx := &app.RequestContext{}
	applyCORSHeaders(ctx)

	if got, want := string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")), "*"; got != want {
		t.Fatalf("allow-origin mismatch: got=%q want=%q", got, want)
	}
	if got, want := string(ctx.Response.Header.Peek("Access-Control-Allow-Methods")), corsAllowMethods; got != want {
		t.Fatalf("allow-methods mismatch: got=%q want=%q", got, want)
	}
	if got, want := string(ctx.Response.Header.Peek("Access-Control-Allow-Headers")), corsAllowHeaders; got != want {
		t.Fatalf("allow-headers mismatch: got=%q want=%q", got, want)
	}
}

func TestTokenMiddleware_RejectsMissingToken(t *testing.T) {
	ctx := &app.RequestContext{}
	tokenMiddleware("s3cret")(context.Background(), ctx)

	if got, want := ctx.Response.StatusCode(), consts.StatusUnauthorized; got != want {
		t.Fatalf("status mismatch: got=%d want=%d", got, want)
	}
	if !ctx.IsAborted() {
		t.Fatalf("expected request to be aborted")
	}
}

func TestTokenMiddleware_AcceptsBearer(t *testing.T) {
	ctx := &app.RequestContext{}
	ctx.Request.Header.Set("Authorization", "Bearer s3cret")
	tokenMiddleware("s3cret")(context.Background(), ctx)

	if ctx.IsAborted() {
		t.Fatalf("valid token was rejected")
	}
}

func TestTokenMiddleware_DisabledWithoutToken(t *testing.T) {
	ctx := &app.RequestContext{}
	tokenMiddleware("")(context.Background(), ctx)
	if ctx.IsAborted() {
		t.Fatalf("empty token must not guard routes")
	}
}
