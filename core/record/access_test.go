package record

import (
	"testing"

	"github.com/mzalendo/shule/core/user"
)

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name    string
		role    string
		action  Action
		kind    Kind
		allowed bool
	}{
		{name: "staff creates task", role: user.RoleStaff, action: ActionCreate, kind: KindTask, allowed: true},
		{name: "staff lists tasks", role: user.RoleStaff, action: ActionList, kind: KindTask, allowed: true},
		{name: "staff cannot update task", role: user.RoleStaff, action: ActionUpdate, kind: KindTask},
		{name: "staff cannot delete task", role: user.RoleStaff, action: ActionDelete, kind: KindTask},
		{name: "principal updates task", role: user.RolePrincipal, action: ActionUpdate, kind: KindTask, allowed: true},

		{name: "staff files leave", role: user.RoleStaff, action: ActionCreate, kind: KindLeave, allowed: true},
		{name: "principal files leave", role: user.RolePrincipal, action: ActionCreate, kind: KindLeave, allowed: true},
		{name: "state admin cannot file leave", role: user.RoleStateAdmin, action: ActionCreate, kind: KindLeave},
		{name: "district admin reviews leave", role: user.RoleDistrictAdmin, action: ActionUpdate, kind: KindLeave, allowed: true},

		{name: "staff cannot create project", role: user.RoleStaff, action: ActionCreate, kind: KindProject},
		{name: "principal creates project", role: user.RolePrincipal, action: ActionCreate, kind: KindProject, allowed: true},
		{name: "state admin deletes project", role: user.RoleStateAdmin, action: ActionDelete, kind: KindProject, allowed: true},
		{name: "district admin cannot delete project", role: user.RoleDistrictAdmin, action: ActionDelete, kind: KindProject},
		{name: "staff reads project", role: user.RoleStaff, action: ActionRead, kind: KindProject, allowed: true},

		{name: "parent lists students", role: user.RoleParent, action: ActionList, kind: KindStudent, allowed: true},
		{name: "parent cannot create student", role: user.RoleParent, action: ActionCreate, kind: KindStudent},
		{name: "parent cannot touch tasks", role: user.RoleParent, action: ActionList, kind: KindTask},
		{name: "parent cannot touch leaves", role: user.RoleParent, action: ActionRead, kind: KindLeave},
		{name: "staff creates student", role: user.RoleStaff, action: ActionCreate, kind: KindStudent, allowed: true},

		// fail closed
		{name: "unknown role", role: "OVERLORD", action: ActionCreate, kind: KindTask},
		{name: "empty role", role: "", action: ActionList, kind: KindTask},
		{name: "unknown kind", role: user.RoleStaff, action: ActionList, kind: Kind("exam")},
		{name: "unknown action", role: user.RoleStaff, action: Action("approve"), kind: KindTask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.role, tt.action, tt.kind)
			if tt.allowed && err != nil {
				t.Errorf("Authorize() error = %v; want nil", err)
			}
			if !tt.allowed && err != ErrForbidden {
				t.Errorf("Authorize() error = %v; want %v", err, ErrForbidden)
			}
		})
	}
}
