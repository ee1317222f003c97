package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatline/internal/control"
	"github.com/matheus3301/chatline/internal/model"
)

var refreshList bool

func init() {
	for _, cmd := range []*cobra.Command{chatsCmd, groupsCmd, contactsCmd} {
		cmd.Flags().BoolVar(&refreshList, "refresh", false, "reload from the server first")
	}
	rootCmd.AddCommand(chatsCmd, groupsCmd, contactsCmd, openCmd, messagesCmd)
}

var chatsCmd = &cobra.Command{
	Use:   "chats",
	Short: "List private conversations",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, c *control.Client, _ []string) error {
		chats, err := c.Chats(ctx, refreshList)
		if err != nil {
			return err
		}
		return output(chats, func() {
			if len(chats) == 0 {
				fmt.Println("No chats.")
			}
			for _, ch := range chats {
				preview := ""
				if ch.LastMessage != nil {
					preview = ch.LastMessage.Preview()
				}
				fmt.Printf("%-24s %-28s %3d  %s\n", ch.Counterpart.Ref(), ch.Counterpart.DisplayName(), ch.UnreadCount, preview)
			}
		})
	}),
}

var groupsCmd = &cobra.Command{
	Use:   "groups",
	Short: "List groups",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, c *control.Client, _ []string) error {
		groups, err := c.Groups(ctx, refreshList)
		if err != nil {
			return err
		}
		return output(groups, func() {
			if len(groups) == 0 {
				fmt.Println("No groups.")
			}
			for _, g := range groups {
				fmt.Printf("%-24s %-28s %d members\n", g.Ref(), g.Name, len(g.Members))
			}
		})
	}),
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "List people you can message",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, c *control.Client, _ []string) error {
		contacts, err := c.Contacts(ctx, refreshList)
		if err != nil {
			return err
		}
		return output(contacts, func() {
			for _, ct := range contacts {
				presence := "offline"
				if ct.Online {
					presence = "online"
				}
				fmt.Printf("%-24s %-28s %s\n", ct.Ref(), ct.DisplayName(), presence)
			}
		})
	}),
}

var openCmd = &cobra.Command{
	Use:   "open <user:id|group:id|link>",
	Short: "Open a conversation by reference or deep link",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		var (
			resp *control.OpenResponse
			err  error
		)
		if strings.Contains(args[0], "://") {
			resp, err = c.OpenLink(ctx, args[0])
		} else {
			var ref model.PeerRef
			if ref, err = model.ParsePeerRef(args[0]); err != nil {
				return err
			}
			resp, err = c.Open(ctx, ref)
		}
		if err != nil {
			return err
		}
		return output(resp, func() { fmt.Printf("Opened %s (%s)\n", resp.Name, resp.Peer) })
	}),
}

var messagesCmd = &cobra.Command{
	Use:   "messages [user:id|group:id]",
	Short: "Show the open conversation, opening another first if given",
	Args:  cobra.MaximumNArgs(1),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		var ref *model.PeerRef
		if len(args) == 1 {
			r, err := model.ParsePeerRef(args[0])
			if err != nil {
				return err
			}
			ref = &r
		}
		resp, err := c.Messages(ctx, ref)
		if err != nil {
			return err
		}
		return output(resp, func() { printTimeline(resp) })
	}),
}

func printTimeline(resp *control.MessagesResponse) {
	if resp.Peer == nil {
		fmt.Println("No conversation open.")
		return
	}
	fmt.Printf("== %s (%s)\n", resp.Name, resp.Peer)
	for _, it := range resp.Items {
		switch {
		case it.Event != nil:
			fmt.Printf("   -- %s %s\n", it.Event.Type, it.Event.Text)
		case it.Message != nil && !it.Message.HiddenForMe:
			m := it.Message
			fmt.Printf("%s %s %s: %s%s\n", m.CreatedAt.Local().Format("15:04"), m.ID, m.SenderID, m.Preview(), marks(*m))
		}
	}
}

func marks(m model.Message) string {
	var out []string
	if m.Starred {
		out = append(out, "starred")
	}
	if m.Pinned {
		out = append(out, "pinned")
	}
	if m.Edited && !m.DeletedForEveryone {
		out = append(out, "edited")
	}
	if m.Pending {
		out = append(out, "sending")
	}
	if len(out) == 0 {
		return ""
	}
	return " (" + strings.Join(out, ", ") + ")"
}
