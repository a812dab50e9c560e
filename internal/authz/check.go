package authz

import (
	"context"
	"log"
	"net/http"
)

// Object and relation guarding operator-only failure detail.
const (
	GatewayObject    = "gateway:bna"
	RelationOperator = "operator"
)

// PrincipalFromRequest extracts the effective principal.
// Order of precedence: X-Principal header, X-User header, anonymous.
func PrincipalFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Principal"); v != "" {
		return v
	}
	if v := r.Header.Get("X-User"); v != "" {
		return v
	}
	return "user:anonymous"
}

// IsOperator reports whether the request's principal may see internal error
// detail. Check errors deny and are logged; never allow on error.
func IsOperator(ctx context.Context, c Client, r *http.Request) bool {
	principal := PrincipalFromRequest(r)
	allowed, err := c.Check(ctx, principal, GatewayObject, RelationOperator)
	if err != nil {
		log.Printf("authz check error user=%s object=%s relation=%s: %v", principal, GatewayObject, RelationOperator, err)
		return false
	}
	return allowed
}
