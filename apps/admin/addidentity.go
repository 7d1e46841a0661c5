package main

import (
	"context"

	"github.com/mzalendo/shule/core/user"
)

// addIdentity creates a new identity. Even here the privileged-role gate
// holds: the operator must supply the role's secret code.
func (cli *commandLine) addIdentity(name, email, role, secretCode, pwd string) error {
	nu := user.NewIdentity{
		Name:            name,
		Email:           email,
		Password:        pwd,
		PasswordConfirm: pwd,
		Role:            role,
		SecretCode:      secretCode,
	}
	if err := nu.Validate(cli.usrSvc); err != nil {
		return err
	}
	_, err := cli.usrSvc.Register(context.Background(), nu)
	return err
}
