package tenancy

import (
	"errors"
	"fmt"

	"github.com/platinummonkey/stockroom/pkg/rbac"
)

// Reason is a stable machine-readable denial code
type Reason string

const (
	ReasonCrossOrg     Reason = "cross_org"
	ReasonNoPerms      Reason = "no_perms"
	ReasonNoSelfDelete Reason = "no_self_delete"
)

// Messages rendered to API clients for each denial reason
const (
	MessageCrossOrg     = "You cannot access records that belong to another organization."
	MessageNoPerms      = "You do not have permission to perform this action."
	MessageNoSelfDelete = "You cannot delete your own account."
)

// Message returns the client-facing message for reason
func Message(reason Reason) string {
	switch reason {
	case ReasonCrossOrg:
		return MessageCrossOrg
	case ReasonNoSelfDelete:
		return MessageNoSelfDelete
	default:
		return MessageNoPerms
	}
}

// ForbiddenError is returned when an operation is denied. It is never retried.
type ForbiddenError struct {
	Action   rbac.Action
	Resource string
	Reason   Reason
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("forbidden: cannot %s %s (%s)", e.Action, e.Resource, e.Reason)
}

// IsForbidden reports whether err is or wraps a *ForbiddenError
func IsForbidden(err error) bool {
	var fe *ForbiddenError
	return errors.As(err, &fe)
}

// ReasonOf returns the denial reason carried by err, or "" when err is not a denial
func ReasonOf(err error) Reason {
	var fe *ForbiddenError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}
