package goGate

import (
	"context"
	"testing"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if ip := ClientIPFromContext(ctx); ip != "" {
		t.Fatalf("expected empty ip, got %q", ip)
	}
	if _, ok := IdentityFromContext(ctx); ok {
		t.Fatal("expected no identity")
	}

	ctx = WithClientIP(ctx, "192.0.2.1")
	ctx = WithIdentity(ctx, &Identity{Subject: "u1", Role: RoleFranchise})

	if ip := ClientIPFromContext(ctx); ip != "192.0.2.1" {
		t.Fatalf("ip: %q", ip)
	}
	id, ok := IdentityFromContext(ctx)
	if !ok || id.Subject != "u1" || id.Role != RoleFranchise {
		t.Fatalf("identity: %+v %v", id, ok)
	}

	if _, ok := IdentityFromContext(WithIdentity(context.Background(), nil)); ok {
		t.Fatal("nil identity must not be reported")
	}
}
