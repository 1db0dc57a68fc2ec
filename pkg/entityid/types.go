package entityid

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SequenceWidth is the zero-padded width of the numeric part of a public ID
const SequenceWidth = 8

var (
	ErrNotFound          = errors.New("entity id not found")
	ErrUnknownEntityType = errors.New("unknown entity type")
	ErrRetriesExhausted  = errors.New("allocation retries exhausted")
	ErrInvalidPublicID   = errors.New("invalid public id")
)

// GlobalBucket is the organization ID under which rows without an organization are numbered
const GlobalBucket int64 = 0

// EntityID maps an internal row ID to its tenant-scoped public sequence
type EntityID struct {
	ID             int64     `json:"id"`
	OrganizationID int64     `json:"organization_id"`
	EntityType     string    `json:"entity_type"`
	Prefix         string    `json:"prefix"`
	Sequence       int64     `json:"sequence"`
	InternalID     int64     `json:"internal_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// PublicID renders the human-readable identifier
func (e *EntityID) PublicID() string {
	return Render(e.Prefix, e.Sequence)
}

// Render formats prefix and sequence as a public ID, e.g. ITM-00000042
func Render(prefix string, sequence int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, SequenceWidth, sequence)
}

// Parse splits a public ID into its prefix and sequence. Only the rendered
// form is accepted, so ITM-1 and ITM-000000001 are rejected in favour of
// ITM-00000001.
func Parse(publicID string) (string, int64, error) {
	i := strings.LastIndex(publicID, "-")
	if i <= 0 || i == len(publicID)-1 {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidPublicID, publicID)
	}

	prefix, digits := publicID[:i], publicID[i+1:]
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", 0, fmt.Errorf("%w: %q", ErrInvalidPublicID, publicID)
		}
	}
	seq, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || seq <= 0 || Render(prefix, seq) != publicID {
		return "", 0, fmt.Errorf("%w: %q", ErrInvalidPublicID, publicID)
	}
	return prefix, seq, nil
}

// AllocationError reports a public ID that could not be minted. The owning
// row is unaffected; a backfill pass can repair it later.
type AllocationError struct {
	OrganizationID int64
	EntityType     string
	InternalID     int64
	Attempts       int
	Err            error
}

func (e *AllocationError) Error() string {
	return fmt.Sprintf("failed to allocate public id for %s %d in organization %d after %d attempt(s): %v",
		e.EntityType, e.InternalID, e.OrganizationID, e.Attempts, e.Err)
}

func (e *AllocationError) Unwrap() error {
	return e.Err
}
