package domain

import "context"

type Role string

const (
	RoleAdmin Role = "admin" // platform operator
	RoleOwner Role = "owner" // landlord owning the account
	RoleAgent Role = "agent" // staff acting on the owner's behalf
)

func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleOwner, RoleAgent:
		return true
	}
	return false
}

// Scope identifies the caller. Every account-owned row read or written on its
// behalf is filtered or stamped with AccountID.
type Scope struct {
	AccountID string
	UserID    string
	Role      Role
}

func (s Scope) IsAdmin() bool { return s.Role == RoleAdmin }

type scopeKey struct{}

func WithScope(ctx context.Context, s Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the caller scope, or ErrUnauthorized when the context
// carries none.
func ScopeFrom(ctx context.Context) (Scope, error) {
	s, ok := ctx.Value(scopeKey{}).(Scope)
	if !ok || s.AccountID == "" {
		return Scope{}, ErrUnauthorized
	}
	return s, nil
}
