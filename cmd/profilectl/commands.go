package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hitoshi/profilegate/client"
)

func newDashboardCmd() *cobra.Command {
	var email, password, name string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Sign in, show the dashboard and sign out",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			out := cmd.OutOrStdout()

			s, err := newActions(cmd)
			if err != nil {
				return err
			}
			if err := report(out, s.dispatcher.SignIn(ctx, email, password)); err != nil {
				return err
			}
			s.provider.StartAutoRefresh(ctx)

			m := s.watcher.Mount(ctx, nil)
			defer m.Unmount()
			if err := waitChecked(ctx, m); err != nil {
				return err
			}
			if m.State() != client.StateReady {
				return errors.New("session is not available")
			}

			fullName, err := s.provider.GetProfile(m.Context())
			if err != nil {
				return err
			}
			current := s.provider.CurrentSession()
			greeting := fullName
			if greeting == "" && current != nil {
				greeting = current.User.Email
			}
			m.Apply(func() {
				fmt.Fprintf(out, "Voce esta autenticado como %s.\n", greeting)
			})

			if cmd.Flags().Changed("name") {
				if err := report(out, s.dispatcher.UpdateProfile(m.Context(), name)); err != nil {
					return err
				}
			}

			return report(out, s.dispatcher.SignOut(ctx))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&name, "name", "", "new display name")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

func newSignUpCmd() *cobra.Command {
	var in client.SignUpInput

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newActions(cmd)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), s.dispatcher.SignUp(cmd.Context(), in))
		},
	}

	cmd.Flags().StringVar(&in.FullName, "name", "", "full name")
	cmd.Flags().StringVar(&in.Email, "email", "", "account email")
	cmd.Flags().StringVar(&in.Password, "password", "", "password")
	cmd.Flags().StringVar(&in.ConfirmPassword, "confirm-password", "", "password confirmation")
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("confirm-password")
	return cmd
}

func newRecoverCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "recover",
		Short: "Request a password reset email",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newActions(cmd)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), s.dispatcher.RequestPasswordReset(cmd.Context(), email))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func newResetPasswordCmd() *cobra.Command {
	var token, password, confirm string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with a reset token",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newActions(cmd)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), s.dispatcher.CompletePasswordReset(cmd.Context(), token, password, confirm))
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "reset token from the email link")
	cmd.Flags().StringVar(&password, "password", "", "new password")
	cmd.Flags().StringVar(&confirm, "confirm-password", "", "new password confirmation")
	cmd.MarkFlagRequired("token")
	cmd.MarkFlagRequired("password")
	cmd.MarkFlagRequired("confirm-password")
	return cmd
}

func newOAuthURLCmd() *cobra.Command {
	var provider string

	cmd := &cobra.Command{
		Use:   "oauth-url",
		Short: "Print the OAuth authorization URL",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newActions(cmd)
			if err != nil {
				return err
			}
			return report(cmd.OutOrStdout(), s.dispatcher.StartOAuth(cmd.Context(), provider))
		},
	}

	cmd.Flags().StringVar(&provider, "provider", "google", "OAuth provider")
	return cmd
}
