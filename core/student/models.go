package student

import (
	"time"

	"github.com/mzalendo/shule/core"
)

// Student is a pupil record linked to a parent identity by phone number at
// creation time.
type Student struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	ClassName   string    `json:"class_name,omitempty"`
	ParentPhone string    `json:"parent_phone"`
	// ParentID references the PARENT identity linked at creation; several
	// students (siblings) may reference the same identity.
	ParentID  string    `json:"parent_id"`
	CreatedAt time.Time `json:"created_at"` // UTC
	UpdatedAt time.Time `json:"updated_at"` // UTC
}

// NewStudent contains information needed to create a new Student.
// ParentPhone is matched by exact string equality against parent identities;
// callers must normalize (spacing, country code) before submitting.
type NewStudent struct {
	Name        string `json:"name" validate:"required"`
	ClassName   string `json:"class_name"`
	ParentPhone string `json:"parent_phone" validate:"required"`
	// ParentEmail, when supplied, becomes the delivery address of a newly
	// provisioned parent identity. Ignored when the parent already exists.
	ParentEmail string `json:"parent_email" validate:"omitempty,email"`
}

func (ns *NewStudent) Validate() error {
	ns.Name = core.CleanString(ns.Name)
	ns.ClassName = core.CleanString(ns.ClassName)
	ns.ParentPhone = core.CleanString(ns.ParentPhone)
	ns.ParentEmail = core.CleanString(ns.ParentEmail, true /* lower */)
	return core.Validate.Struct(ns)
}
