package domain

import "strings"

// Role is the caller's access level in the synchronization protocol.
type Role string

const (
	// RoleAdmin sees every operation.
	RoleAdmin Role = "admin"

	// RoleAgent sees only operations touching their shop.
	RoleAgent Role = "agent"
)

// ParseRole normalizes a role string.
func ParseRole(raw string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(raw))) {
	case RoleAdmin:
		return RoleAdmin, nil
	case RoleAgent:
		return RoleAgent, nil
	default:
		return "", NewFieldError("user_role", "role must be admin or agent")
	}
}

// Scope is the visibility window of a caller.
type Scope struct {
	ShopID *int64
	Role   Role
	Actor  Actor
}

// AdminScope returns an unrestricted scope.
func AdminScope() Scope {
	return Scope{Role: RoleAdmin}
}

// AgentScope returns a scope restricted to shopID.
func AgentScope(shopID int64) Scope {
	return Scope{Role: RoleAgent, ShopID: &shopID}
}

// Validate fails closed: an agent without a shop gets no feed at all.
func (s Scope) Validate() error {
	switch s.Role {
	case RoleAdmin:
		return nil
	case RoleAgent:
		if s.ShopID == nil || *s.ShopID <= 0 {
			return ErrAgentWithoutShop
		}
		return nil
	default:
		return NewFieldError("user_role", "role must be admin or agent")
	}
}

// IsAdmin reports whether the scope is unrestricted.
func (s Scope) IsAdmin() bool {
	return s.Role == RoleAdmin
}

// CanSee applies the agent visibility rule: own source shop, or own destination
// shop for the transfer types the destination validates.
func (s Scope) CanSee(op *Operation) bool {
	if s.IsAdmin() {
		return true
	}
	if s.ShopID == nil {
		return false
	}
	if op.SourceShopID == *s.ShopID {
		return true
	}
	return op.DestinationIs(*s.ShopID) && op.Type.VisibleToDestination()
}
