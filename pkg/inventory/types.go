package inventory

import (
	"errors"
	"time"
)

var (
	ErrItemNotFound     = errors.New("item not found")
	ErrLocationNotFound = errors.New("location not found")
)

// Item is a tracked asset owned by one organization
type Item struct {
	ID             int64      `json:"id"`
	OrganizationID *int64     `json:"organization_id,omitempty"`
	LocationID     *int64     `json:"location_id,omitempty"`
	Name           string     `json:"name"`
	SKU            string     `json:"sku,omitempty"`
	Quantity       int        `json:"quantity"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func (i *Item) GetID() int64              { return i.ID }
func (i *Item) GetOrganizationID() *int64 { return i.OrganizationID }
func (i *Item) ResourceName() string      { return "items" }
func (i *Item) EntityType() string        { return "item" }

// SetOrganizationID stamps the owning organization
func (i *Item) SetOrganizationID(orgID int64) {
	id := orgID
	i.OrganizationID = &id
}

// Location is a place items are stored, owned by one organization
type Location struct {
	ID             int64      `json:"id"`
	OrganizationID *int64     `json:"organization_id,omitempty"`
	Name           string     `json:"name"`
	Address        string     `json:"address,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
	DeletedAt      *time.Time `json:"deleted_at,omitempty"`
}

func (l *Location) GetID() int64              { return l.ID }
func (l *Location) GetOrganizationID() *int64 { return l.OrganizationID }
func (l *Location) ResourceName() string      { return "locations" }
func (l *Location) EntityType() string        { return "location" }

// SetOrganizationID stamps the owning organization
func (l *Location) SetOrganizationID(orgID int64) {
	id := orgID
	l.OrganizationID = &id
}
