package auth

import "context"

// Identity is what the identity provider vouches for: a stable user id and a role.
type Identity struct {
	UserID string
	Role   Role
}

type ctxKey int

const ctxKeyIdentity ctxKey = iota

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

// IdentityFromContext returns the caller identity, if the request carried a valid token.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	if !ok || id.UserID == "" || !id.Role.Valid() {
		return Identity{}, false
	}
	return id, true
}
