package auth

import (
	"time"

	"github.com/platinummonkey/stockroom/pkg/rbac"
)

// User represents a user account. Super-admin users have no organization.
type User struct {
	ID             int64      `json:"id"`
	OrganizationID *int64     `json:"organization_id,omitempty"`
	RoleID         int64      `json:"role_id"`
	Username       string     `json:"username"`
	Email          string     `json:"email,omitempty"`
	IsActive       bool       `json:"is_active"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func (u *User) GetID() int64              { return u.ID }
func (u *User) GetOrganizationID() *int64 { return u.OrganizationID }
func (u *User) ResourceName() string      { return "users" }
func (u *User) EntityType() string        { return "user" }
func (u *User) GetRoleID() int64          { return u.RoleID }

// SetOrganizationID stamps the owning organization
func (u *User) SetOrganizationID(orgID int64) {
	id := orgID
	u.OrganizationID = &id
}

// APIToken represents an API token
type APIToken struct {
	ID          int64      `json:"id"`
	UserID      int64      `json:"user_id"`
	TokenHash   string     `json:"-"` // Never expose hash
	TokenPrefix string     `json:"token_prefix"`
	Name        string     `json:"name"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	LastUsedAt  *time.Time `json:"last_used_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	RevokedAt   *time.Time `json:"revoked_at,omitempty"`
}

// Actor is the authenticated principal performing an operation
type Actor struct {
	ID             int64
	Username       string
	OrganizationID *int64 // nil only for platform-level super-admins
	Role           *rbac.Role
	IsActive       bool
}
