package service

import (
	"errors"
	"fmt"

	"github.com/roach88/cascade/internal/ir"
)

// PermissionError means the principal may not delete the root object. It
// is returned before any row is touched.
type PermissionError struct {
	Type   string
	ID     int64
	UserID int64
	Reason string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %d cannot delete %s %d: %s", e.UserID, e.Type, e.ID, e.Reason)
}

// IsPermissionError returns true if err is a PermissionError.
func IsPermissionError(err error) bool {
	var pe *PermissionError
	return errors.As(err, &pe)
}

// rootOwner is the owner and group of the root row.
type rootOwner struct {
	OwnerID int64
	GroupID int64
}

// checkPermission decides whether p may delete a root row owned by owner.
// It admits exactly the rows engine.Ownership lets the deletes reach:
// anything for an administrator, anything when a leader of the row's group
// forces, rows of the current group for its leader, own rows otherwise.
func checkPermission(p ir.Principal, force bool, owner rootOwner) string {
	switch {
	case p.Admin:
		return ""
	case force:
		if p.Leads(owner.GroupID) {
			return ""
		}
		return fmt.Sprintf("force requires an administrator or a leader of group %d", owner.GroupID)
	case p.Leads(p.GroupID):
		if owner.GroupID == p.GroupID {
			return ""
		}
		return fmt.Sprintf("in group %d, outside current group %d", owner.GroupID, p.GroupID)
	case p.UserID == owner.OwnerID:
		return ""
	default:
		return fmt.Sprintf("owned by user %d", owner.OwnerID)
	}
}
