package authz

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type fakeClient struct {
	allow bool
	err   error
}

func (f *fakeClient) Check(ctx context.Context, user, object, relation string) (bool, error) {
	return f.allow, f.err
}

func TestIsOperatorAllowed(t *testing.T) {
	c := &fakeClient{allow: true}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Principal", "user:alice")
	if !IsOperator(context.Background(), c, r) {
		t.Fatalf("expected operator")
	}
}

func TestIsOperatorDenied(t *testing.T) {
	c := &fakeClient{allow: false}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("X-Principal", "user:charlie")
	if IsOperator(context.Background(), c, r) {
		t.Fatalf("expected denial")
	}
}

func TestIsOperatorDeniesOnError(t *testing.T) {
	c := &fakeClient{allow: true, err: errors.New("fga unreachable")}
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if IsOperator(context.Background(), c, r) {
		t.Fatalf("check errors must deny")
	}
}

func TestPrincipalFallsBackToAnonymous(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if got := PrincipalFromRequest(r); got != "user:anonymous" {
		t.Fatalf("unexpected principal %q", got)
	}
}
