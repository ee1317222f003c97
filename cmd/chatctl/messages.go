package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatline/internal/control"
	"github.com/matheus3301/chatline/internal/model"
)

var (
	sendReplyTo    string
	sendImage      string
	deleteEveryone bool
)

func init() {
	sendCmd.Flags().StringVar(&sendReplyTo, "reply-to", "", "id of the message to quote")
	sendCmd.Flags().StringVar(&sendImage, "image", "", "image URL or data URI to attach")
	deleteCmd.Flags().BoolVar(&deleteEveryone, "everyone", false, "delete for every participant")
	rootCmd.AddCommand(sendCmd, editCmd, deleteCmd, starCmd, pinCmd, forwardCmd)
}

var sendCmd = &cobra.Command{
	Use:   "send <peer> [text...]",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(1),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		ref, err := model.ParsePeerRef(args[0])
		if err != nil {
			return err
		}
		msg, err := c.Send(ctx, &control.SendRequest{
			Peer:    ref,
			Text:    strings.Join(args[1:], " "),
			Image:   sendImage,
			ReplyTo: sendReplyTo,
		})
		if err != nil {
			return err
		}
		return output(msg, func() { fmt.Printf("Sent %s\n", msg.ID) })
	}),
}

var editCmd = &cobra.Command{
	Use:   "edit <peer> <message-id> <text...>",
	Short: "Replace the text of one of your messages",
	Args:  cobra.MinimumNArgs(3),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		ref, err := model.ParsePeerRef(args[0])
		if err != nil {
			return err
		}
		msg, err := c.Edit(ctx, ref, args[1], strings.Join(args[2:], " "))
		if err != nil {
			return err
		}
		return output(msg, func() { fmt.Printf("Edited %s\n", msg.ID) })
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete <peer> <message-id>",
	Short: "Delete a message for you, or for everyone with --everyone",
	Args:  cobra.ExactArgs(2),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		ref, err := model.ParsePeerRef(args[0])
		if err != nil {
			return err
		}
		scope := model.ScopeMe
		if deleteEveryone {
			scope = model.ScopeEveryone
		}
		if err := c.Delete(ctx, ref, args[1], scope); err != nil {
			return err
		}
		fmt.Println("Deleted.")
		return nil
	}),
}

var starCmd = &cobra.Command{
	Use:   "star <peer> <message-id>",
	Short: "Toggle the star on a message",
	Args:  cobra.ExactArgs(2),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		return toggle(ctx, args, "starred", c.Star)
	}),
}

var pinCmd = &cobra.Command{
	Use:   "pin <peer> <message-id>",
	Short: "Toggle the pin on a message",
	Args:  cobra.ExactArgs(2),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		return toggle(ctx, args, "pinned", c.Pin)
	}),
}

func toggle(ctx context.Context, args []string, label string, call func(context.Context, model.PeerRef, string) (bool, error)) error {
	ref, err := model.ParsePeerRef(args[0])
	if err != nil {
		return err
	}
	on, err := call(ctx, ref, args[1])
	if err != nil {
		return err
	}
	return output(map[string]bool{label: on}, func() { fmt.Printf("%s: %v\n", label, on) })
}

var forwardCmd = &cobra.Command{
	Use:   "forward <message-id,...> <peer> [peer...]",
	Short: "Forward messages to one or more conversations",
	Long:  "Forward messages to one or more conversations. An empty id list forwards the current selection.",
	Args:  cobra.MinimumNArgs(2),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		recipients, err := parsePeers(args[1:])
		if err != nil {
			return err
		}
		var ids []string
		for _, id := range strings.Split(args[0], ",") {
			if id = strings.TrimSpace(id); id != "" {
				ids = append(ids, id)
			}
		}
		resp, err := c.Forward(ctx, ids, recipients)
		if err != nil {
			return err
		}
		return output(resp, func() { fmt.Printf("Forwarded %d, failed %d\n", resp.Done, resp.Failed) })
	}),
}
