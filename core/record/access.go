package record

import (
	"errors"

	"github.com/mzalendo/shule/core/user"
)

// ErrForbidden is returned whenever a (role, action, kind) combination is not
// explicitly granted. There is no default-allow.
var ErrForbidden = errors.New("permission denied")

// Action is an operation a role may be granted on a resource kind.
type Action string

const (
	ActionCreate Action = "create"
	ActionList   Action = "list"
	ActionRead   Action = "read"
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

type capability struct {
	role   string
	action Action
	kind   Kind
}

// capabilities is the exhaustive static grant table. PARENT appears only for
// student listing: parents reach their children through the identity-linking
// path and hold no capability on staff-side records.
var capabilities = map[capability]struct{}{}

func init() {
	grant := func(kind Kind, action Action, roles ...string) {
		for _, role := range roles {
			capabilities[capability{role, action, kind}] = struct{}{}
		}
	}

	staffSide := []string{user.RoleStaff, user.RolePrincipal, user.RoleStateAdmin, user.RoleDistrictAdmin}
	admins := []string{user.RolePrincipal, user.RoleStateAdmin, user.RoleDistrictAdmin}

	// tasks: any staff-side identity may create and list; reassignment and
	// removal stay with principals and above.
	grant(KindTask, ActionCreate, staffSide...)
	grant(KindTask, ActionList, staffSide...)
	grant(KindTask, ActionRead, staffSide...)
	grant(KindTask, ActionUpdate, admins...)
	grant(KindTask, ActionDelete, admins...)

	// leave requests: staff and principals file them; principals and above
	// review them.
	grant(KindLeave, ActionCreate, user.RoleStaff, user.RolePrincipal)
	grant(KindLeave, ActionList, staffSide...)
	grant(KindLeave, ActionRead, staffSide...)
	grant(KindLeave, ActionUpdate, admins...)
	grant(KindLeave, ActionDelete, admins...)

	// projects: principals and state admins own the lifecycle; district
	// admins and staff may only consult.
	grant(KindProject, ActionCreate, user.RolePrincipal, user.RoleStateAdmin)
	grant(KindProject, ActionList, staffSide...)
	grant(KindProject, ActionRead, staffSide...)
	grant(KindProject, ActionUpdate, user.RolePrincipal, user.RoleStateAdmin)
	grant(KindProject, ActionDelete, user.RolePrincipal, user.RoleStateAdmin)

	// students
	grant(KindStudent, ActionCreate, staffSide...)
	grant(KindStudent, ActionList, append(staffSide, user.RoleParent)...)
	grant(KindStudent, ActionRead, append(staffSide, user.RoleParent)...)
	grant(KindStudent, ActionUpdate, admins...)
	grant(KindStudent, ActionDelete, admins...)
}

// Authorize decides whether role may perform action on kind.
// Unknown combinations fail closed.
func Authorize(role string, action Action, kind Kind) error {
	if _, ok := capabilities[capability{role, action, kind}]; !ok {
		return ErrForbidden
	}
	return nil
}
