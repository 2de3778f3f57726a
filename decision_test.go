package goGate

import (
	"errors"
	"testing"
)

func TestAuthorizerDecisionTable(t *testing.T) {
	table := DefaultRouteTable()
	admin := &Identity{Subject: "u-admin", Role: RoleAdmin}
	franchise := &Identity{Subject: "u-fr", Role: RoleFranchise}
	client := &Identity{Subject: "u-cl", Role: RoleClient}

	cases := []struct {
		name     string
		path     string
		id       *Identity
		kind     DecisionKind
		location string
		reason   error
	}{
		{"public anonymous", "/login", nil, Continue, "", nil},
		{"public with identity", "/", admin, Continue, "", nil},
		{"admin anonymous", "/admin/dashboard", nil, RedirectToLogin, "/login?next=%2Fadmin%2Fdashboard", ErrNoCredential},
		{"admin as admin", "/admin/dashboard", admin, Continue, "", nil},
		{"admin as franchise", "/admin/dashboard", franchise, RedirectToForbidden, "/unauthorized", ErrInsufficientRole},
		{"franchise as admin", "/franchise", admin, RedirectToForbidden, "/unauthorized", ErrInsufficientRole},
		{"franchise as franchise", "/franchise/x", franchise, Continue, "", nil},
		{"other as client", "/account", client, Continue, "", nil},
		{"other anonymous", "/account", nil, RedirectToLogin, "/login?next=%2Faccount", ErrNoCredential},
	}

	var authz Authorizer
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := authz.Decide(table.Classify(tc.path), tc.id, tc.path)
			if d.Kind != tc.kind {
				t.Fatalf("kind = %v, want %v", d.Kind, tc.kind)
			}
			if d.Location != tc.location {
				t.Fatalf("location = %q, want %q", d.Location, tc.location)
			}
			if tc.reason == nil && d.Reason != nil || tc.reason != nil && !errors.Is(d.Reason, tc.reason) {
				t.Fatalf("reason = %v, want %v", d.Reason, tc.reason)
			}
		})
	}
}

func TestAuthorizerContinueHeaders(t *testing.T) {
	id := &Identity{Subject: "u-1", Role: RoleAdmin}
	d := Authorizer{}.Decide(DefaultRouteTable().Classify("/admin"), id, "/admin")

	if got := d.Headers.Get(HeaderUserID); got != "u-1" {
		t.Fatalf("%s = %q", HeaderUserID, got)
	}
	if got := d.Headers.Get(HeaderUserRole); got != "ADMIN" {
		t.Fatalf("%s = %q", HeaderUserRole, got)
	}

	public := Authorizer{}.Decide(Classification{Public: true}, id, "/")
	if public.Headers != nil {
		t.Fatalf("public decision must not carry identity headers, got %v", public.Headers)
	}
}

func TestAuthorizerCustomPathsAndDeny(t *testing.T) {
	a := Authorizer{LoginPath: LegacyLoginPath, ForbiddenPath: LegacyForbiddenPath}
	c := Classification{HasRequirement: true, Required: RoleAdmin}

	d := a.deny(c, "/admin/settings?tab=1", ErrStoreUnavailable)
	if d.Kind != RedirectToLogin || d.Location != "/admin/login?next=%2Fadmin%2Fsettings%3Ftab%3D1" {
		t.Fatalf("unexpected deny decision: %+v", d)
	}
	if !errors.Is(d.Reason, ErrStoreUnavailable) {
		t.Fatalf("deny must keep the real reason, got %v", d.Reason)
	}

	d = a.Decide(c, &Identity{Subject: "u", Role: RoleClient}, "/admin/settings")
	if d.Location != LegacyForbiddenPath {
		t.Fatalf("forbidden location = %q", d.Location)
	}
}
