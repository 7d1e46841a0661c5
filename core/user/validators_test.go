package user

import (
	"testing"

	"github.com/go-playground/validator/v10"

	"github.com/mzalendo/shule/core"
)

func TestPasswordPolicy(t *testing.T) {
	tests := []struct {
		name    string
		nu      NewIdentity
		wantTag string
	}{
		{
			name:    "too short",
			nu:      NewIdentity{Name: "T", Email: "t@test.test", Password: "short1!", PasswordConfirm: "short1!"},
			wantTag: pwdMinLenTag,
		},
		{
			name:    "whitespace",
			nu:      NewIdentity{Name: "T", Email: "t@test.test", Password: "has a space1", PasswordConfirm: "has a space1"},
			wantTag: pwdNoSpaceTag,
		},
		{
			name:    "all numeric",
			nu:      NewIdentity{Name: "T", Email: "t@test.test", Password: "1234567890", PasswordConfirm: "1234567890"},
			wantTag: pwdNotAllNumTag,
		},
		{
			name:    "similar to email",
			nu:      NewIdentity{Name: "T", Email: "kawasaki@test.test", Password: "kawasaki@test", PasswordConfirm: "kawasaki@test"},
			wantTag: pwdAttrSimTag,
		},
		{
			name: "acceptable",
			nu:   NewIdentity{Name: "T", Email: "t@test.test", Password: "Kawasaki!400", PasswordConfirm: "Kawasaki!400"},
		},
		{
			name:    "invalid role",
			nu:      NewIdentity{Name: "T", Email: "t@test.test", Password: "Kawasaki!400", PasswordConfirm: "Kawasaki!400", Role: "OVERLORD"},
			wantTag: roleTag,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := core.Validate.Struct(tt.nu)
			if tt.wantTag == "" {
				if err != nil {
					t.Errorf("Validate.Struct() error = %v; want nil", err)
				}
				return
			}
			errs, ok := err.(validator.ValidationErrors)
			if !ok {
				t.Fatalf("Validate.Struct() error = %v; want ValidationErrors", err)
			}
			found := false
			for _, fe := range errs {
				if fe.Tag() == tt.wantTag {
					found = true
				}
			}
			if !found {
				t.Errorf("Validate.Struct() errors = %v; want tag %q", errs, tt.wantTag)
			}
		})
	}
}
