package identity

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleAdmin   = "admin"
	RoleFinance = "finance"
	RoleMember  = "member"
)

// User is the acting user as supplied by the identity collaborator. It is trusted as given.
type User struct {
	ID       snowflake.ID `json:"id"`
	FullName string       `json:"fullName"`
	Email    string       `json:"email"`
	Role     string       `json:"role"`
}

func (u User) Valid() bool {
	return u.ID != 0
}

type userKey struct{}

func WithUser(ctx context.Context, u User) context.Context {
	u.Role = NormalizeRole(u.Role)
	return context.WithValue(ctx, userKey{}, u)
}

func UserFromContext(ctx context.Context) (User, bool) {
	if ctx == nil {
		return User{}, false
	}
	u, ok := ctx.Value(userKey{}).(User)
	if !ok || !u.Valid() {
		return User{}, false
	}
	return u, true
}

func NormalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	switch role {
	case RoleAdmin, RoleFinance:
		return role
	default:
		return RoleMember
	}
}
