package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/mzalendo/shule/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	usrSvc *user.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  addidentity -name NAME -email EMAIL [-role ROLE] [-secret-code CODE] - create an identity; password prompted")
	fmt.Println("  resetpassword -identifier LOGINID|EMAIL - reset an identity's password; password prompted")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addIdentityCmd := flag.NewFlagSet("addidentity", flag.ExitOnError)
	addName := addIdentityCmd.String("name", "", "The identity's display name.")
	addEmail := addIdentityCmd.String("email", "", "The identity's email.")
	addRole := addIdentityCmd.String("role", user.RoleStaff, "The identity's role. Privileged roles need -secret-code.")
	addSecretCode := addIdentityCmd.String("secret-code", "", "The role's secret code; required for privileged roles.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ExitOnError)
	resetIdentifier := resetPasswordCmd.String("identifier", "", "The identity's login id or email. The password will be prompted next.")

	switch args[1] {
	case "addidentity":
		if err := addIdentityCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addName == "" || *addEmail == "" {
			addIdentityCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.addIdentity(*addName, *addEmail, *addRole, *addSecretCode, pwd)
	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetIdentifier == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword()
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetIdentifier, pwd)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		return "", errHelp
	}
	return string(pwd), nil
}
