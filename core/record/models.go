// Package record implements the role-scoped records (tasks, leave requests,
// projects) and the authorization/visibility rules gating access to them.
package record

import (
	"time"

	"github.com/mzalendo/shule/core"
)

// Kind is a record's resource kind.
type Kind string

const (
	KindTask    Kind = "task"
	KindLeave   Kind = "leave"
	KindProject Kind = "project"
	// KindStudent only exists for authorization decisions; student records
	// themselves live in the student package.
	KindStudent Kind = "student"
)

// Record is any domain object subject to ownership/role/user-scoped read
// access. It is visible to its owner, to every holder of AssignedRole when
// set, and to AssignedUserID when set.
type Record struct {
	ID             string    `json:"id"`
	Kind           Kind      `json:"kind"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	OwnerID        string    `json:"owner_id"`
	AssignedRole   string    `json:"assigned_role,omitempty"`
	AssignedUserID string    `json:"assigned_user_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

// Viewer is the authenticated identity a visibility decision is made for.
// It is always derived server-side from a validated token, never from
// request parameters.
type Viewer struct {
	ID   string
	Role string
}

// NewRecord contains information needed to create a new Record.
// Kind comes from the route, not the body.
type NewRecord struct {
	Title          string `json:"title" validate:"required"`
	Description    string `json:"description"`
	AssignedRole   string `json:"assigned_role" validate:"omitempty,role"`
	AssignedUserID string `json:"assigned_user_id"`
}

func (nr *NewRecord) Validate() error {
	nr.Title = core.CleanString(nr.Title)
	nr.Description = core.CleanString(nr.Description)
	nr.AssignedRole = core.CleanString(nr.AssignedRole)
	nr.AssignedUserID = core.CleanString(nr.AssignedUserID)
	return core.Validate.Struct(nr)
}
