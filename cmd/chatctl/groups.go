package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/control"
)

var (
	groupDescription string
	groupImage       string
)

func init() {
	groupCreateCmd.Flags().StringVar(&groupDescription, "description", "", "group description")
	groupCreateCmd.Flags().StringVar(&groupImage, "image", "", "group image URL or data URI")
	groupCmd.AddCommand(groupCreateCmd, groupRenameCmd, groupAddCmd, groupRemoveCmd, groupPromoteCmd, groupLeaveCmd)
	rootCmd.AddCommand(groupCmd)
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create <name> [user-id...]",
	Short: "Create a group",
	Args:  cobra.MinimumNArgs(1),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		g, err := c.CreateGroup(ctx, api.GroupInput{
			Name:        args[0],
			Description: groupDescription,
			Image:       groupImage,
			MemberIDs:   args[1:],
		})
		if err != nil {
			return err
		}
		return output(g, func() { fmt.Printf("Created %s (%s)\n", g.Name, g.ID) })
	}),
}

var groupRenameCmd = &cobra.Command{
	Use:   "rename <group-id> <name...>",
	Short: "Rename a group",
	Args:  cobra.MinimumNArgs(2),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		g, err := c.UpdateGroup(ctx, args[0], api.GroupInput{Name: strings.Join(args[1:], " ")})
		if err != nil {
			return err
		}
		return output(g, func() { fmt.Printf("Renamed to %s\n", g.Name) })
	}),
}

var groupAddCmd = &cobra.Command{
	Use:   "add <group-id> <user-id...>",
	Short: "Add members",
	Args:  cobra.MinimumNArgs(2),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		g, err := c.AddMembers(ctx, args[0], args[1:])
		if err != nil {
			return err
		}
		return output(g, func() { fmt.Printf("%s now has %d members\n", g.Name, len(g.Members)) })
	}),
}

var groupRemoveCmd = &cobra.Command{
	Use:   "remove <group-id> <user-id>",
	Short: "Remove a member",
	Args:  cobra.ExactArgs(2),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		if err := c.RemoveMember(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("Removed.")
		return nil
	}),
}

var groupPromoteCmd = &cobra.Command{
	Use:   "promote <group-id> <user-id>",
	Short: "Make a member an admin",
	Args:  cobra.ExactArgs(2),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		if err := c.PromoteAdmin(ctx, args[0], args[1]); err != nil {
			return err
		}
		fmt.Println("Promoted.")
		return nil
	}),
}

var groupLeaveCmd = &cobra.Command{
	Use:   "leave <group-id>",
	Short: "Leave a group",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		if err := c.LeaveGroup(ctx, args[0]); err != nil {
			return err
		}
		fmt.Println("Left the group.")
		return nil
	}),
}
