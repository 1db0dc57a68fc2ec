package orgs

import (
	"errors"
	"strings"
	"time"
)

// PlanTier represents subscription plan tiers
type PlanTier string

const (
	PlanFree       PlanTier = "free"
	PlanPro        PlanTier = "pro"
	PlanEnterprise PlanTier = "enterprise"
	PlanCustom     PlanTier = "custom"
)

// OrgStatus represents organization status
type OrgStatus string

const (
	OrgStatusActive    OrgStatus = "active"
	OrgStatusSuspended OrgStatus = "suspended"
)

var (
	ErrOrganizationNotFound = errors.New("organization not found")
	ErrPlanNotFound         = errors.New("plan not found")
)

// Organization is a tenant. Its own ID is its organization ID.
type Organization struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	Slug      string     `json:"slug"`
	PlanID    *int64     `json:"plan_id,omitempty"`
	Status    OrgStatus  `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

func (o *Organization) GetID() int64 { return o.ID }

// GetOrganizationID returns the organization's own ID, or nil before it is persisted
func (o *Organization) GetOrganizationID() *int64 {
	if o.ID == 0 {
		return nil
	}
	id := o.ID
	return &id
}

func (o *Organization) ResourceName() string { return "organizations" }
func (o *Organization) EntityType() string   { return "organization" }

// Plan is a platform-wide subscription plan. Plans belong to no organization.
type Plan struct {
	ID                int64     `json:"id"`
	Name              string    `json:"name"`
	Tier              PlanTier  `json:"tier"`
	MaxItems          int       `json:"max_items"`
	MaxLocations      int       `json:"max_locations"`
	PriceCentsMonthly int64     `json:"price_cents_monthly"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (p *Plan) GetID() int64              { return p.ID }
func (p *Plan) GetOrganizationID() *int64 { return nil }
func (p *Plan) ResourceName() string      { return "plans" }
func (p *Plan) EntityType() string        { return "plan" }

// generateSlug derives a URL-safe slug from name
func generateSlug(name string) string {
	slug := strings.ToLower(name)
	slug = strings.ReplaceAll(slug, " ", "-")
	slug = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, slug)
	return slug
}
