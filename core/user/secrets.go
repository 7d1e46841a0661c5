package user

import (
	"crypto/subtle"

	"github.com/mzalendo/shule/core"
)

// SecretCodeRegistry holds the per-role shared secrets gating registration
// or login claims of privileged roles. It is read-only after construction.
type SecretCodeRegistry struct {
	codes map[string]string
}

func NewSecretCodeRegistry(conf *core.Config) *SecretCodeRegistry {
	codes := make(map[string]string, len(conf.Auth.RoleSecretCodes))
	for role, code := range conf.Auth.RoleSecretCodes {
		codes[role] = code
	}
	return &SecretCodeRegistry{codes: codes}
}

// Check reports whether code is the expected secret for role.
// A role with no registered secret always fails: privileged roles are
// unclaimable until a secret is configured for them.
func (reg *SecretCodeRegistry) Check(role, code string) bool {
	expected, ok := reg.codes[role]
	if !ok || code == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(code)) == 1
}
