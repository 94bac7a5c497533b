package auth

import (
	"github.com/google/uuid"

	"github.com/reliefbridge/fundledger/pkg/enums"
)

// Actor is the authenticated caller as services see it.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// Actor projects the token claims onto an Actor.
func (c *AccessTokenClaims) Actor() Actor {
	if c == nil {
		return Actor{}
	}
	return Actor{UserID: c.UserID, Role: c.Role}
}
