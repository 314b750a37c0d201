package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/rkabuya/evaldesk/core/user"
)

// addAdmin creates the account, or resets its password if the username
// is already taken.
func (cli *commandLine) addAdmin(uname, pwd string) error {
	ctx := context.Background()

	_, err := cli.usrSvc.GetByUsername(ctx, uname)
	switch errors.Cause(err) {
	case nil:
		if err = cli.usrSvc.ResetPassword(ctx, uname, pwd); err != nil {
			return err
		}
		fmt.Printf("admin %q already exists, password updated\n", uname)
		return nil
	case user.ErrNotFound:
		usr, err := cli.usrSvc.Create(ctx, user.NewUser{Username: uname, Password: pwd})
		if err != nil {
			return err
		}
		fmt.Printf("admin %q created\n", usr.Username)
		return nil
	default:
		return err
	}
}
