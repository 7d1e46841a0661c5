package user

import (
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mzalendo/shule/core"
)

// Roles
const (
	RoleStaff         = "STAFF"
	RolePrincipal     = "PRINCIPAL"
	RoleParent        = "PARENT"
	RoleStateAdmin    = "STATE_ADMIN"
	RoleDistrictAdmin = "DISTRICT_ADMIN"
)

var (
	// AllRoles enumerates every assignable role.
	AllRoles = []string{RoleStaff, RolePrincipal, RoleParent, RoleStateAdmin, RoleDistrictAdmin}

	// PrivilegedRoles may never be self-claimed; a claim must be backed by
	// the matching secret code. STAFF is the only self-registerable role and
	// PARENT identities are only ever provisioned by student creation.
	PrivilegedRoles = []string{RolePrincipal, RoleStateAdmin, RoleDistrictAdmin}

	AdminRoles = []string{RoleStateAdmin, RoleDistrictAdmin}
)

func IsValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func IsPrivilegedRole(role string) bool {
	for _, r := range PrivilegedRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Identity is an account that can authenticate against the system.
// Role is immutable after creation except through the admin service path;
// identities are deactivated, never hard-deleted, so historical records
// keep a valid owner reference.
type Identity struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	LoginID      string    `json:"login_id"`
	Email        string    `json:"email"`
	Phone        string    `json:"phone,omitempty"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (usr *Identity) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	usr.PasswordHash = hash
	return nil
}

func (usr *Identity) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(usr.PasswordHash, []byte(pwd))
}

func (usr *Identity) IsAdmin() bool {
	return usr.Role == RoleStateAdmin || usr.Role == RoleDistrictAdmin
}

func (usr *Identity) IsParent() bool { return usr.Role == RoleParent }

// NewIdentity contains information needed to create a new Identity.
// Role other than STAFF requires the matching SecretCode; see Service.Register.
type NewIdentity struct {
	Name            string `json:"name" validate:"required"`
	LoginID         string `json:"login_id" validate:"omitempty,min=6,alphanum_"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"omitempty"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            string `json:"role" validate:"omitempty,role"`
	SecretCode      string `json:"secret_code"`
}

func (nu *NewIdentity) Validate(svc *Service) error {
	nu.Name = core.CleanString(nu.Name)
	nu.LoginID = core.CleanString(nu.LoginID, true /* lower */)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Phone = core.CleanString(nu.Phone)

	if err := core.Validate.Struct(nu); err != nil {
		return err
	}
	return svc.checkUniqueness(nu.LoginID, nu.Email)
}

// UpdateIdentity defines what information may be provided to modify an
// existing Identity. Role changes are an explicit administrative action.
type UpdateIdentity struct {
	Name            string `json:"name"`
	LoginID         string `json:"login_id" validate:"omitempty,min=6,alphanum_"`
	Email           string `json:"email" validate:"omitempty,email"`
	Phone           string `json:"phone"`
	IsActive        *bool  `json:"is_active"`
	Role            string `json:"role" validate:"omitempty,role"`
	Password        string `json:"password" validate:"omitempty"`
	PasswordConfirm string `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
}

func (uu *UpdateIdentity) Validate(origUsr Identity, svc *Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if loginID := core.CleanString(uu.LoginID, true /* lower */); loginID != "" {
		uu.LoginID = loginID
	} else {
		uu.LoginID = origUsr.LoginID
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if err := core.Validate.Struct(uu); err != nil {
		return err
	}
	return svc.checkUniqueness(uu.LoginID, uu.Email, origUsr)
}

type ResetIdentityPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp ResetIdentityPassword) Validate() error { return core.Validate.Struct(rp) }

// GeneratedCredentials is the one-time disclosure of an auto-provisioned
// identity's login. It is returned exactly once at provisioning time and is
// not retrievable afterward; only the bcrypt hash is stored.
type GeneratedCredentials struct {
	LoginID  string `json:"login_id"`
	Password string `json:"password"`
}
