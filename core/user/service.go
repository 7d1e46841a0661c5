package user

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"time"

	"github.com/google/uuid"

	"github.com/mzalendo/shule/core"
)

var (
	// errors
	ErrNotFound      = errors.New("identity not found")
	ErrEmailExists   = errors.New("an identity with this email already exists")
	ErrLoginIDExists = errors.New("an identity with this login id already exists")

	// ErrInvalidCredentials covers both unknown identifier and wrong
	// password; callers must not be able to tell the two apart.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrRoleClaimRejected is returned when a claimed privileged role is not
	// corroborated by the stored role and the matching secret code.
	ErrRoleClaimRejected  = errors.New("role claim rejected")
	ErrAccountDeactivated = errors.New("account deactivated")

	ErrOTPNotFound          = errors.New("no pending code")
	ErrOTPExpired           = errors.New("code expired")
	ErrOTPMismatch          = errors.New("code mismatch")
	ErrOTPAttemptsExhausted = errors.New("code attempts exhausted")
)

type (
	Repository interface {
		CheckUniqueness(ctx context.Context, loginID, email string, excluded ...Identity) error
		CreateIdentity(ctx context.Context, usr Identity) (Identity, error)
		QueryAllIdentities(ctx context.Context) ([]Identity, error)
		GetIdentityByID(ctx context.Context, id string) (Identity, error)
		GetIdentityByEmail(ctx context.Context, email string) (Identity, error)
		GetIdentityByLoginIDOrEmail(ctx context.Context, identifier string) (Identity, error)
		// FindOrCreateParent atomically finds the PARENT identity with an
		// exact phone match or creates usr; a deactivated match is
		// reactivated, not duplicated. The bool reports creation.
		// Atomicity here is what keeps one-parent-per-phone true under
		// concurrent student creations.
		FindOrCreateParent(ctx context.Context, phone string, usr Identity) (Identity, bool, error)
		UpdateIdentity(ctx context.Context, usr Identity, isActive *bool) (Identity, error)
		SetLastLogin(ctx context.Context, usr Identity) (Identity, error)
	}

	Service struct {
		repo       Repository
		mailSvc    core.EmailService
		secrets    *SecretCodeRegistry
		challenges *ChallengeStore
		conf       *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, secrets *SecretCodeRegistry, challenges *ChallengeStore, conf *core.Config) *Service {
	initTokenGen(conf)
	return &Service{
		repo:       repo,
		mailSvc:    mailSvc,
		secrets:    secrets,
		challenges: challenges,
		conf:       conf,
	}
}

func (svc *Service) checkUniqueness(loginID, email string, exclUsers ...Identity) error {
	if err := svc.repo.CheckUniqueness(context.Background(), loginID, email, exclUsers...); err != nil {
		var field string
		switch err {
		case ErrLoginIDExists:
			field = "login_id"
		case ErrEmailExists:
			field = "email"
		default:
			return err
		}
		return core.NewValidationError(err, core.FieldError{Field: field, Error: err.Error()})
	}
	return nil
}

// Register creates a new Identity. The only role a caller can take without
// corroboration is STAFF; any other requested role must pass the secret-code
// check, and the stored role is always the one that survived that check.
func (svc *Service) Register(ctx context.Context, nu NewIdentity) (Identity, error) {
	role := nu.Role
	switch {
	case role == "" || role == RoleStaff:
		role = RoleStaff
	default:
		if !svc.secrets.Check(role, nu.SecretCode) {
			return Identity{}, ErrRoleClaimRejected
		}
	}

	now := time.Now().UTC()
	usr := Identity{
		ID:        uuid.New().String(),
		Name:      nu.Name,
		LoginID:   nu.LoginID,
		Email:     nu.Email,
		Phone:     nu.Phone,
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if usr.LoginID == "" {
		usr.LoginID = usr.Email
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return Identity{}, err
	}
	return svc.repo.CreateIdentity(ctx, usr)
}

// BeginLogin performs the first authentication factor: identifier + password,
// plus the secret-code corroboration when a privileged role is claimed.
// On success an OTP challenge is issued and delivered out of band; nothing
// about the identity is revealed to the caller yet.
func (svc *Service) BeginLogin(ctx context.Context, identifier, password, claimedRole, secretCode string) error {
	usr, err := svc.repo.GetIdentityByLoginIDOrEmail(ctx, core.CleanString(identifier, true /* lower */))
	if err != nil {
		if err == ErrNotFound {
			return ErrInvalidCredentials
		}
		return err
	}
	if err = usr.CheckPassword(password); err != nil {
		return ErrInvalidCredentials
	}
	if !usr.IsActive {
		return ErrAccountDeactivated
	}

	// A claimed role other than STAFF must match the stored role AND be
	// backed by the role's secret code. The claim alone grants nothing.
	if claimedRole != "" && claimedRole != RoleStaff {
		if claimedRole != usr.Role || !svc.secrets.Check(claimedRole, secretCode) {
			return ErrRoleClaimRejected
		}
	}

	code := svc.challenges.Issue(usr.ID)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Your sign-in code",
		Body: fmt.Sprintf("Your one-time sign-in code is %s. It expires in %s.",
			code, svc.conf.Auth.OTPExpirationDelta),
	})
	return nil
}

// CompleteLogin verifies the submitted OTP code and returns the authenticated
// Identity bearing its stored role; this is the only path from
// first-factor-verified to authenticated.
func (svc *Service) CompleteLogin(ctx context.Context, identifier, code string) (Identity, error) {
	usr, err := svc.repo.GetIdentityByLoginIDOrEmail(ctx, core.CleanString(identifier, true /* lower */))
	if err != nil {
		if err == ErrNotFound {
			// indistinguishable from a missing challenge
			return Identity{}, ErrOTPNotFound
		}
		return Identity{}, err
	}
	if err = svc.challenges.Verify(usr.ID, code); err != nil {
		return Identity{}, err
	}
	return svc.repo.SetLastLogin(ctx, usr)
}

// FindOrProvisionParent returns the PARENT identity with an exact phone
// match, creating one with generated credentials when none exists; a
// deactivated match is reactivated rather than duplicated.
// Generated credentials are returned exactly once, on creation. The optional
// email becomes the new identity's delivery address for credentials and
// sign-in codes.
// Phone normalization is the caller's responsibility: matching is plain
// string equality so the linking rule stays auditable.
func (svc *Service) FindOrProvisionParent(ctx context.Context, name, phone, email string) (Identity, *GeneratedCredentials, error) {
	now := time.Now().UTC()
	creds := &GeneratedCredentials{
		LoginID:  "parent" + core.RandomCode(8),
		Password: core.RandomString(12),
	}
	usr := Identity{
		ID:        uuid.New().String(),
		Name:      name,
		LoginID:   creds.LoginID,
		Email:     core.CleanString(email, true /* lower */),
		Phone:     phone,
		Role:      RoleParent,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(creds.Password); err != nil {
		return Identity{}, nil, err
	}

	usr, created, err := svc.repo.FindOrCreateParent(ctx, phone, usr)
	if err != nil {
		return Identity{}, nil, err
	}
	if !created {
		return usr, nil, nil
	}
	return usr, creds, nil
}

func (svc *Service) QueryAll(ctx context.Context) ([]Identity, error) {
	return svc.repo.QueryAllIdentities(ctx)
}

func (svc *Service) GetByID(ctx context.Context, id string) (Identity, error) {
	return svc.repo.GetIdentityByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Identity, error) {
	return svc.repo.GetIdentityByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) GetByLoginIDOrEmail(ctx context.Context, identifier string) (Identity, error) {
	return svc.repo.GetIdentityByLoginIDOrEmail(ctx, core.CleanString(identifier, true /* lower */))
}

func (svc *Service) Update(ctx context.Context, id string, uu UpdateIdentity) (Identity, error) {
	usr := Identity{
		ID:        id,
		Name:      uu.Name,
		LoginID:   uu.LoginID,
		Email:     uu.Email,
		Phone:     uu.Phone,
		Role:      uu.Role,
		UpdatedAt: time.Now().UTC(),
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return Identity{}, err
		}
	}
	return svc.repo.UpdateIdentity(ctx, usr, uu.IsActive)
}

// Deactivate soft-disables an identity; records owned by it stay addressable.
func (svc *Service) Deactivate(ctx context.Context, id string) error {
	isActive := false
	_, err := svc.repo.UpdateIdentity(ctx, Identity{ID: id, UpdatedAt: time.Now().UTC()}, &isActive)
	return err
}

// RequestPasswordReset emails a reset link; no-op error-wise on unknown email
// so the endpoint cannot be used for account enumeration.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	token := makeToken(usr)
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject: "Password reset",
		Body: fmt.Sprintf("Follow this link to reset your password: %s/password-reset/%s/%s",
			svc.conf.FrontendBaseURL, encodeUID(usr), token),
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetIdentityPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return errInvalidToken
	}
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		if err == ErrNotFound {
			return errInvalidToken
		}
		return err
	}
	if err = verifyToken(usr, rp.Token); err != nil {
		return err
	}
	if err = usr.SetPassword(rp.Password); err != nil {
		return err
	}
	usr.UpdatedAt = time.Now().UTC()
	_, err = svc.repo.UpdateIdentity(ctx, usr, nil)
	return err
}
