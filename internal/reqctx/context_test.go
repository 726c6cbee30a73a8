package reqctx

import (
	"context"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	if RequestID(ctx) != "" || UserID(ctx) != "" {
		t.Fatalf("empty context should yield empty values")
	}
	ctx = WithUserID(WithRequestID(ctx, "rid-1"), "u1")
	if RequestID(ctx) != "rid-1" || UserID(ctx) != "u1" {
		t.Fatalf("got rid=%q uid=%q", RequestID(ctx), UserID(ctx))
	}
}
