package models

import "github.com/golang-jwt/jwt/v5"

// Roles
const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

// Application permissions
const (
	PermissionPaymentWrite   = "payment:write"
	PermissionRefundWrite    = "refund:write"
	PermissionProcessorWrite = "processor:write"
	PermissionPayoutRead     = "payout:read"
	PermissionPayoutWrite    = "payout:write"
)

type UserClaims struct {
	jwt.RegisteredClaims
	UserID      uint     `json:"user_id"`
	BusinessID  uint     `json:"business_id"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions"`
}

// HasPermission checks if the claims include a specific permission
func (c *UserClaims) HasPermission(permission string) bool {
	if c.Role == RoleAdmin {
		return true
	}
	for _, p := range c.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CanAccessBusiness reports whether the caller may act on businessID.
func (c *UserClaims) CanAccessBusiness(businessID uint) bool {
	return c.Role == RoleAdmin || (c.BusinessID != 0 && c.BusinessID == businessID)
}

// GetDefaultPermissions returns default permissions based on role
func GetDefaultPermissions(role string) []string {
	switch role {
	case RoleAdmin, RoleOwner:
		return []string{
			PermissionPaymentWrite,
			PermissionRefundWrite,
			PermissionProcessorWrite,
			PermissionPayoutRead,
			PermissionPayoutWrite,
		}
	default:
		return []string{}
	}
}
