package cli

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/homeroom/internal/model"
	"github.com/roach88/homeroom/internal/remote"
	"github.com/roach88/homeroom/internal/session"
)

type userView struct {
	model.User
}

func (u userView) String() string {
	return fmt.Sprintf("%s (%s, %s)", u.FullName, u.Username, u.Role)
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Sign in and sync",
		Long: `Sign in against the backend. Without --password the password is read
from the first line of standard input.

Example:
  homeroom login colan --password secret
  echo secret | homeroom login colan`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, out, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if !cmd.Flags().Changed("password") {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return out.Fail(ExitCommandError, CodeAuth, "read password", err)
				}
				password = strings.TrimRight(line, "\r\n")
			}

			u, err := app.Session.Login(cmd.Context(), args[0], password)
			switch {
			case errors.Is(err, session.ErrInvalidCredentials):
				return out.Fail(ExitFailure, CodeAuth, "invalid username or password", nil)
			case remote.IsRemoteError(err):
				return out.Fail(ExitFailure, CodeRemote, "login", err)
			case err != nil:
				return out.Fail(ExitCommandError, CodeAuth, "login", err)
			}

			app.Syncer.Sync(cmd.Context())
			return out.Success(userView{u})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "password (read from stdin when omitted)")
	return cmd
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the signed-in user",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, out, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Session.Logout(cmd.Context()); err != nil {
				return out.Fail(ExitCommandError, CodeStore, "logout", err)
			}
			return out.Success("signed out")
		},
	}
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, out, err := rootOpts.open(cmd)
			if err != nil {
				return err
			}
			defer app.Close()

			u, ok := app.Session.Current()
			if !ok {
				return out.Fail(ExitFailure, CodeAuth, "nobody signed in", nil)
			}
			return out.Success(userView{u})
		},
	}
}
