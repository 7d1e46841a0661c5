package main

import (
	"context"

	"github.com/mzalendo/shule/core/user"
)

func (cli *commandLine) resetPassword(identifier, pwd string) error {
	ctx := context.Background()
	usr, err := cli.usrSvc.GetByLoginIDOrEmail(ctx, identifier)
	if err != nil {
		return err
	}
	_, err = cli.usrSvc.Update(ctx, usr.ID, user.UpdateIdentity{
		Password:        pwd,
		PasswordConfirm: pwd,
	})
	return err
}
