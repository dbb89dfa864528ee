package cmd

import (
	"context"
	"fmt"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/kanriapp/kanri/internal/backend"
	"github.com/kanriapp/kanri/internal/output"
	"github.com/kanriapp/kanri/internal/store"
)

var (
	authEmail    string
	authPassword string
	authName     string
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the backend session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return authWhoamiRun()
	},
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	RunE: func(cmd *cobra.Command, args []string) error {
		return authLoginRun()
	},
}

var authSignupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	RunE: func(cmd *cobra.Command, args []string) error {
		return authSignupRun()
	},
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out and clear the cached session",
	RunE: func(cmd *cobra.Command, args []string) error {
		return authLogoutRun()
	},
}

var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in identity",
	RunE: func(cmd *cobra.Command, args []string) error {
		return authWhoamiRun()
	},
}

func init() {
	authLoginCmd.Flags().StringVar(&authEmail, "email", "", "Account email (required)")
	authLoginCmd.Flags().StringVar(&authPassword, "password", "", "Password (prompted when omitted)")
	_ = authLoginCmd.MarkFlagRequired("email")

	authSignupCmd.Flags().StringVar(&authEmail, "email", "", "Account email (required)")
	authSignupCmd.Flags().StringVar(&authPassword, "password", "", "Password (prompted when omitted)")
	authSignupCmd.Flags().StringVar(&authName, "name", "", "Full name")
	_ = authSignupCmd.MarkFlagRequired("email")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authSignupCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authWhoamiCmd)
	rootCmd.AddCommand(authCmd)
}

// promptPassword reads a password without echo when not passed by flag.
func promptPassword() (string, error) {
	if authPassword != "" {
		return authPassword, nil
	}
	fmt.Fprint(ui.Out, "Password: ")
	pw, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(ui.Out)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	return string(pw), nil
}

func authLoginRun() error {
	pw, err := promptPassword()
	if err != nil {
		return err
	}

	ctx := context.Background()
	session, err := client.SignIn(ctx, authEmail, pw)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}

	if err := backend.SaveSessionFile(sessionPath(), session); err != nil {
		ui.Warning("Signed in, but saving the session failed: %v", err)
	}

	ui.Success("Signed in as %s", session.User.DisplayName())
	return nil
}

func authSignupRun() error {
	pw, err := promptPassword()
	if err != nil {
		return err
	}

	ctx := context.Background()
	sessions := store.NewSessionStore(ctx, client)
	defer sessions.Close()

	if err := sessions.SignUp(ctx, authEmail, pw, authName); err != nil {
		return fmt.Errorf("sign up: %w", err)
	}

	if s := client.CurrentSession(); s != nil {
		if err := backend.SaveSessionFile(sessionPath(), s); err != nil {
			ui.Warning("Signed up, but saving the session failed: %v", err)
		}
	}

	ui.Success("Account created for %s", authEmail)
	return nil
}

func authLogoutRun() error {
	err := client.SignOut(context.Background())
	if clearErr := backend.ClearSessionFile(sessionPath()); clearErr != nil {
		ui.Warning("Clearing the session cache failed: %v", clearErr)
	}
	if err != nil {
		ui.Warning("Remote sign-out failed (%v); local session cleared anyway", err)
		return nil
	}
	ui.Success("Signed out")
	return nil
}

func authWhoamiRun() error {
	user, err := currentIdentity()
	if err != nil {
		return err
	}

	fmt.Fprintf(ui.Out, "%s  %s\n", output.Cyan(shortID(user.ID)), user.DisplayName())
	fmt.Fprintf(ui.Out, "  Email:   %s\n", user.Email)
	if user.FullName != "" {
		fmt.Fprintf(ui.Out, "  Name:    %s\n", user.FullName)
	}
	fmt.Fprintf(ui.Out, "  Full ID: %s\n", user.ID)
	return nil
}
