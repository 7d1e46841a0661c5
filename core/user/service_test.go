package user_test

import (
	"context"
	"net/mail"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mzalendo/shule/core"
	"github.com/mzalendo/shule/core/user"
	emailsvc "github.com/mzalendo/shule/services/email"
	inmemdb "github.com/mzalendo/shule/storage/database/inmem"
)

var codeRegex = regexp.MustCompile(`[0-9]{6}`)

func newTestConfig() *core.Config {
	conf := &core.Config{
		Env:              "TEST",
		TestMode:         true,
		AppName:          "Shule",
		SecretKey:        []byte("secret"),
		FrontendBaseURL:  "http://localhost:3000",
		DefaultFromEmail: mail.Address{Name: "Shule", Address: "noreply@localhost"},
	}
	conf.Auth.OTPLength = 6
	conf.Auth.OTPMaxAttempts = 5
	conf.Auth.OTPExpirationDelta = 10 * time.Minute
	conf.Auth.PasswordResetTimeoutDelta = 3 * 24 * time.Hour
	conf.Auth.RoleSecretCodes = map[string]string{
		user.RolePrincipal:  "principal-code",
		user.RoleStateAdmin: "state-code",
	}
	return conf
}

type testEnv struct {
	svc     *user.Service
	mailSvc interface {
		core.EmailService
		SentMessages() []core.EmailMessage
	}
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	conf := newTestConfig()
	db, err := inmemdb.Open()
	if err != nil {
		t.Fatalf("inmemdb.Open() error = %v", err)
	}
	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	svc := user.NewService(
		inmemdb.NewIdentityRepository(db),
		mailSvc,
		user.NewSecretCodeRegistry(conf),
		user.NewChallengeStore(conf),
		conf,
	)
	return &testEnv{svc: svc, mailSvc: mailSvc}
}

// lastCode extracts the OTP code from the most recent delivered message.
func (env *testEnv) lastCode(t *testing.T) string {
	t.Helper()
	sent := env.mailSvc.SentMessages()
	if len(sent) == 0 {
		t.Fatal("no messages sent")
	}
	code := codeRegex.FindString(sent[len(sent)-1].Body)
	if code == "" {
		t.Fatalf("no code found in message body %q", sent[len(sent)-1].Body)
	}
	return code
}

func TestServiceRegister_RoleGate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		nu       user.NewIdentity
		wantRole string
		wantErr  error
	}{
		{
			name:     "no role defaults to staff",
			nu:       user.NewIdentity{Name: "T1", Email: "t1@test.test", Password: "Kawasaki!400"},
			wantRole: user.RoleStaff,
		},
		{
			name:     "explicit staff",
			nu:       user.NewIdentity{Name: "T2", Email: "t2@test.test", Password: "Kawasaki!400", Role: user.RoleStaff},
			wantRole: user.RoleStaff,
		},
		{
			name:    "privileged role without code",
			nu:      user.NewIdentity{Name: "T3", Email: "t3@test.test", Password: "Kawasaki!400", Role: user.RolePrincipal},
			wantErr: user.ErrRoleClaimRejected,
		},
		{
			name:    "privileged role with wrong code",
			nu:      user.NewIdentity{Name: "T4", Email: "t4@test.test", Password: "Kawasaki!400", Role: user.RolePrincipal, SecretCode: "nope"},
			wantErr: user.ErrRoleClaimRejected,
		},
		{
			name:     "privileged role with right code",
			nu:       user.NewIdentity{Name: "T5", Email: "t5@test.test", Password: "Kawasaki!400", Role: user.RolePrincipal, SecretCode: "principal-code"},
			wantRole: user.RolePrincipal,
		},
		{
			name:    "role with no secret configured",
			nu:      user.NewIdentity{Name: "T6", Email: "t6@test.test", Password: "Kawasaki!400", Role: user.RoleDistrictAdmin, SecretCode: "anything"},
			wantErr: user.ErrRoleClaimRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			usr, err := env.svc.Register(ctx, tt.nu)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.wantRole, usr.Role)
			assert.True(t, usr.IsActive)
			assert.NoError(t, usr.CheckPassword(tt.nu.Password))
		})
	}
}

func TestServiceLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	staff, err := env.svc.Register(ctx, user.NewIdentity{
		Name: "Staff", Email: "staff@test.test", Password: "Kawasaki!400",
	})
	assert.NoError(t, err)
	principal, err := env.svc.Register(ctx, user.NewIdentity{
		Name: "Head", Email: "head@test.test", Password: "Kawasaki!400",
		Role: user.RolePrincipal, SecretCode: "principal-code",
	})
	assert.NoError(t, err)

	t.Run("unknown identifier", func(t *testing.T) {
		err := env.svc.BeginLogin(ctx, "ghost@test.test", "Kawasaki!400", "", "")
		assert.Equal(t, user.ErrInvalidCredentials, err)
	})

	t.Run("wrong password", func(t *testing.T) {
		err := env.svc.BeginLogin(ctx, staff.Email, "wrong", "", "")
		assert.Equal(t, user.ErrInvalidCredentials, err)
	})

	t.Run("role claim mismatching stored role", func(t *testing.T) {
		err := env.svc.BeginLogin(ctx, staff.Email, "Kawasaki!400", user.RolePrincipal, "principal-code")
		assert.Equal(t, user.ErrRoleClaimRejected, err)
	})

	t.Run("privileged claim without code", func(t *testing.T) {
		err := env.svc.BeginLogin(ctx, principal.Email, "Kawasaki!400", user.RolePrincipal, "")
		assert.Equal(t, user.ErrRoleClaimRejected, err)
	})

	t.Run("happy path issues and verifies otp", func(t *testing.T) {
		assert.NoError(t, env.svc.BeginLogin(ctx, principal.Email, "Kawasaki!400", user.RolePrincipal, "principal-code"))

		usr, err := env.svc.CompleteLogin(ctx, principal.Email, env.lastCode(t))
		assert.NoError(t, err)
		assert.Equal(t, principal.ID, usr.ID)
		assert.Equal(t, user.RolePrincipal, usr.Role)
		assert.False(t, usr.LastLogin.IsZero())
	})

	t.Run("otp not replayable", func(t *testing.T) {
		assert.NoError(t, env.svc.BeginLogin(ctx, staff.Email, "Kawasaki!400", "", ""))
		code := env.lastCode(t)

		_, err := env.svc.CompleteLogin(ctx, staff.Email, code)
		assert.NoError(t, err)
		_, err = env.svc.CompleteLogin(ctx, staff.Email, code)
		assert.Equal(t, user.ErrOTPNotFound, err)
	})

	t.Run("complete without pending challenge", func(t *testing.T) {
		_, err := env.svc.CompleteLogin(ctx, "ghost@test.test", "123456")
		assert.Equal(t, user.ErrOTPNotFound, err)
	})

	t.Run("deactivated account", func(t *testing.T) {
		assert.NoError(t, env.svc.Deactivate(ctx, staff.ID))
		err := env.svc.BeginLogin(ctx, staff.Email, "Kawasaki!400", "", "")
		assert.Equal(t, user.ErrAccountDeactivated, err)
	})
}

func TestServiceFindOrProvisionParent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent, creds, err := env.svc.FindOrProvisionParent(ctx, "Parent of Amina", "+254700000001", "")
	assert.NoError(t, err)
	assert.NotNil(t, creds)
	assert.Equal(t, user.RoleParent, parent.Role)
	assert.Equal(t, "+254700000001", parent.Phone)
	assert.True(t, parent.IsActive)
	assert.NoError(t, parent.CheckPassword(creds.Password))

	// same phone resolves to the same identity and credentials are never
	// disclosed again
	again, creds2, err := env.svc.FindOrProvisionParent(ctx, "Parent of Brian", "+254700000001", "")
	assert.NoError(t, err)
	assert.Nil(t, creds2)
	assert.Equal(t, parent.ID, again.ID)

	// a different phone provisions a distinct parent
	other, creds3, err := env.svc.FindOrProvisionParent(ctx, "Parent of Cyrus", "+254700000002", "")
	assert.NoError(t, err)
	assert.NotNil(t, creds3)
	assert.NotEqual(t, parent.ID, other.ID)

	// a supplied email becomes the identity's delivery address
	mailed, creds4, err := env.svc.FindOrProvisionParent(ctx, "Parent of Dalia", "+254700000003", "Dalia.Senior@test.test")
	assert.NoError(t, err)
	assert.NotNil(t, creds4)
	assert.Equal(t, "dalia.senior@test.test", mailed.Email)

	// parents authenticate with their generated credentials
	assert.NoError(t, env.svc.BeginLogin(ctx, creds.LoginID, creds.Password, "", ""))
	usr, err := env.svc.CompleteLogin(ctx, creds.LoginID, env.lastCode(t))
	assert.NoError(t, err)
	assert.Equal(t, parent.ID, usr.ID)
}

func TestServiceFindOrProvisionParent_ReactivatesDeactivated(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	parent, creds, err := env.svc.FindOrProvisionParent(ctx, "Parent of Amina", "+254700000001", "")
	assert.NoError(t, err)
	assert.NotNil(t, creds)
	assert.NoError(t, env.svc.Deactivate(ctx, parent.ID))

	// the phone still resolves to the one existing identity, reactivated,
	// with no second set of credentials
	again, creds2, err := env.svc.FindOrProvisionParent(ctx, "Parent of Brian", "+254700000001", "")
	assert.NoError(t, err)
	assert.Nil(t, creds2)
	assert.Equal(t, parent.ID, again.ID)
	assert.True(t, again.IsActive)

	assert.NoError(t, env.svc.BeginLogin(ctx, creds.LoginID, creds.Password, "", ""))
}

func TestServiceCompleteLogin_ChallengesDoNotCross(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// two auto-provisioned parents, neither with an email address
	_, credsA, err := env.svc.FindOrProvisionParent(ctx, "Parent of Amina", "+254700000001", "")
	assert.NoError(t, err)
	parentB, credsB, err := env.svc.FindOrProvisionParent(ctx, "Parent of Brian", "+254700000002", "")
	assert.NoError(t, err)

	assert.NoError(t, env.svc.BeginLogin(ctx, credsA.LoginID, credsA.Password, "", ""))
	codeA := env.lastCode(t)
	assert.NoError(t, env.svc.BeginLogin(ctx, credsB.LoginID, credsB.Password, "", ""))
	codeB := env.lastCode(t)

	// one parent's code must never complete another parent's login, and a
	// later login must not clobber an earlier parent's pending challenge
	if codeA != codeB {
		_, err = env.svc.CompleteLogin(ctx, credsA.LoginID, codeB)
		assert.Equal(t, user.ErrOTPMismatch, err)
	}
	usrB, err := env.svc.CompleteLogin(ctx, credsB.LoginID, codeB)
	assert.NoError(t, err)
	assert.Equal(t, parentB.ID, usrB.ID)
	_, err = env.svc.CompleteLogin(ctx, credsA.LoginID, codeA)
	assert.NoError(t, err)
}

func TestServicePasswordReset(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	usr, err := env.svc.Register(ctx, user.NewIdentity{
		Name: "Staff", Email: "staff@test.test", Password: "Kawasaki!400",
	})
	assert.NoError(t, err)

	assert.NoError(t, env.svc.RequestPasswordReset(ctx, usr.Email))

	sent := env.mailSvc.SentMessages()
	assert.NotEmpty(t, sent)
	linkRegex := regexp.MustCompile(`/password-reset/([^/\s]+)/([^/\s]+)`)
	match := linkRegex.FindStringSubmatch(sent[len(sent)-1].Body)
	if len(match) != 3 {
		t.Fatalf("no reset link in message body %q", sent[len(sent)-1].Body)
	}

	rp := user.ResetIdentityPassword{
		UID:             match[1],
		Token:           match[2],
		Password:        "Yamaha*500x",
		PasswordConfirm: "Yamaha*500x",
	}
	assert.NoError(t, env.svc.ResetPassword(ctx, rp))

	// old password no longer works, new one does
	assert.Equal(t, user.ErrInvalidCredentials, env.svc.BeginLogin(ctx, usr.Email, "Kawasaki!400", "", ""))
	assert.NoError(t, env.svc.BeginLogin(ctx, usr.Email, "Yamaha*500x", "", ""))

	// a consumed token is invalid
	assert.Error(t, env.svc.ResetPassword(ctx, rp))
}
