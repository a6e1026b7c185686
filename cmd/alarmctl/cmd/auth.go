package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/panoraguard/alarm-console/internal/app"
	"github.com/panoraguard/alarm-console/internal/domain/user"
)

// passwordEnv supplies the password for non-interactive logins.
const passwordEnv = "ALARMCTL_PASSWORD"

var errPasswordRequired = errors.New("password is required")

var (
	// password for the login command; empty reads ALARMCTL_PASSWORD or stdin.
	password string

	loginCmd = &cobra.Command{
		Use:   "login <username>",
		Short: "Log in and keep the session.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret, err := readPassword(cmd)
			if err != nil {
				return err
			}

			return withApp(cmd, func(ctx context.Context, a *app.App) error {
				outcome, err := a.Console.Login(ctx, args[0], secret)
				if err != nil {
					return err
				}

				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s), home %s\n",
					outcome.Principal.UserID, outcome.Principal.Role, outcome.Destination)

				return nil
			})
		},
	}

	logoutCmd = &cobra.Command{
		Use:   "logout",
		Short: "Forget the saved session.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app.App) error {
				a.Console.Logout()
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Logged out")

				return nil
			})
		},
	}

	whoamiCmd = &cobra.Command{
		Use:   "whoami",
		Short: "Show the current session.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(_ context.Context, a *app.App) error {
				principal, err := a.Console.Authorize(user.Any)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				_, _ = fmt.Fprintf(out, "User:    %s\n", principal.UserID)
				_, _ = fmt.Fprintf(out, "Role:    %s\n", principal.Role)

				if snapshot, ok := a.Sessions.Snapshot(); ok {
					_, _ = fmt.Fprintf(out, "Expires: %s\n", formatTime(snapshot.ExpiresAt))
				}

				return nil
			})
		},
	}
)

// readPassword takes the password from the flag, the environment or the first line of stdin.
func readPassword(cmd *cobra.Command) (string, error) {
	if password != "" {
		return password, nil
	}

	if env := os.Getenv(passwordEnv); env != "" {
		return env, nil
	}

	_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	line = strings.TrimRight(line, "\r\n")

	if line == "" {
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}

		return "", errPasswordRequired
	}

	return line, nil
}

// confirm asks a yes/no question on stderr and reads the answer from stdin.
func confirm(cmd *cobra.Command, question string) bool {
	_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s [y/N]: ", question)

	answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

//nolint:gochecknoinits // Required by Cobra CLI framework architecture.
func init() {
	loginCmd.Flags().StringVarP(&password, "password", "p", "", "password (default: $"+passwordEnv+" or stdin)")

	rootCmd.AddCommand(loginCmd, logoutCmd, whoamiCmd)
}
