package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatline/internal/control"
)

func init() {
	rootCmd.AddCommand(statusCmd, loginCmd, signupCmd, logoutCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show session status",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, c *control.Client, _ []string) error {
		resp, err := c.Status(ctx)
		if err != nil {
			return err
		}
		return output(resp, func() {
			fmt.Printf("Profile: %s\n", resp.Profile)
			fmt.Printf("Session: %s\n", resp.State)
			fmt.Printf("Screen:  %s\n", orDash(resp.Route))
			fmt.Printf("Socket:  %s\n", orDash(resp.Socket))
			if resp.User != nil {
				fmt.Printf("User:    %s <%s>\n", resp.User.FullName, resp.User.Email)
			}
			if resp.Active != nil {
				fmt.Printf("Open:    %s\n", resp.Active)
			}
			fmt.Printf("Uptime:  %s\n", (time.Duration(resp.UptimeMs) * time.Millisecond).Round(time.Second))
		})
	}),
}

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in (password from CHATLINE_PASSWORD or stdin)",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		password, err := readPassword(os.Stdin)
		if err != nil {
			return err
		}
		user, err := c.Login(ctx, args[0], password)
		if err != nil {
			return err
		}
		return output(user, func() { fmt.Printf("Signed in as %s\n", user.FullName) })
	}),
}

var signupCmd = &cobra.Command{
	Use:   "signup <full name> <email>",
	Short: "Create an account and sign in",
	Args:  cobra.ExactArgs(2),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		password, err := readPassword(os.Stdin)
		if err != nil {
			return err
		}
		user, err := c.Signup(ctx, args[0], args[1], password)
		if err != nil {
			return err
		}
		return output(user, func() { fmt.Printf("Account created for %s\n", user.FullName) })
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Sign out",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, c *control.Client, _ []string) error {
		if err := c.Logout(ctx); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	}),
}
