package user

import (
	"errors"
	"fmt"
)

var ErrInsufficientRole = errors.New("insufficient role")

// Capabilities is what a role may do in the client. The backend enforces
// authorization independently, so these only decide what is offered.
type Capabilities struct {
	CanApprove         bool
	CanViewReports     bool
	CanConfigure       bool
	CanManageUsers     bool
	CanAssignRoles     bool
	CanManageProjects  bool
	CanManageHolidays  bool
	CanExportForOthers bool
}

func CapabilitiesFor(role Role) Capabilities {
	switch role {
	case RoleAdmin:
		return Capabilities{
			CanApprove:         true,
			CanViewReports:     true,
			CanConfigure:       true,
			CanManageUsers:     true,
			CanAssignRoles:     true,
			CanManageProjects:  true,
			CanManageHolidays:  true,
			CanExportForOthers: true,
		}
	case RoleManager:
		return Capabilities{
			CanApprove:         true,
			CanViewReports:     true,
			CanManageUsers:     true,
			CanManageProjects:  true,
			CanExportForOthers: true,
		}
	default:
		return Capabilities{}
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleEmployee, RoleManager, RoleAdmin:
		return true
	}
	return false
}

// Require returns ErrInsufficientRole unless allowed is true.
func Require(allowed bool, action string) error {
	if !allowed {
		return fmt.Errorf("%w: not allowed to %s", ErrInsufficientRole, action)
	}
	return nil
}
