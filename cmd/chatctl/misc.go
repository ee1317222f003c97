package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatline/internal/config"
	"github.com/matheus3301/chatline/internal/control"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/notify"
	"github.com/matheus3301/chatline/internal/profile"
)

var (
	diagClear bool
	linkQR    bool
	linkPNG   string
)

func init() {
	diagCmd.Flags().BoolVar(&diagClear, "clear", false, "dismiss every entry")
	linkCmd.Flags().BoolVar(&linkQR, "qr", false, "print the link as a terminal QR code")
	linkCmd.Flags().StringVar(&linkPNG, "png", "", "write the link as a QR code PNG to this file")
	toastsCmd.AddCommand(toastsDismissCmd)
	profilesCmd.AddCommand(profilesUseCmd)
	rootCmd.AddCommand(toastsCmd, diagCmd, watchCmd, linkCmd, profilesCmd)
}

var toastsCmd = &cobra.Command{
	Use:   "toasts",
	Short: "Show pending notices",
	Args:  cobra.NoArgs,
	RunE: run(func(ctx context.Context, c *control.Client, _ []string) error {
		resp, err := c.Toasts(ctx)
		if err != nil {
			return err
		}
		return output(resp, func() {
			if len(resp.Toasts) == 0 {
				fmt.Println("No notices.")
			}
			for _, t := range resp.Toasts {
				fmt.Printf("%s  %-7s %s\n", t.ID, t.Severity, t.Message)
			}
		})
	}),
}

var toastsDismissCmd = &cobra.Command{
	Use:   "dismiss <id>",
	Short: "Dismiss a notice",
	Args:  cobra.ExactArgs(1),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		return c.DismissToast(ctx, args[0])
	}),
}

var diagCmd = &cobra.Command{
	Use:   "diag [dismiss-id]",
	Short: "List captured failures, optionally dismissing one",
	Args:  cobra.MaximumNArgs(1),
	RunE: run(func(ctx context.Context, c *control.Client, args []string) error {
		req := &control.DiagnosticsRequest{DismissAll: diagClear}
		if len(args) == 1 {
			req.Dismiss = args[0]
		}
		resp, err := c.Diagnostics(ctx, req)
		if err != nil {
			return err
		}
		return output(resp, func() {
			if len(resp.Entries) == 0 {
				fmt.Println("Nothing captured.")
			}
			for _, e := range resp.Entries {
				kind := "error"
				if e.Panic {
					kind = "panic"
				}
				fmt.Printf("%s  %s  %-5s %s\n", e.ID, e.Captured.Local().Format(time.DateTime), kind, e.Message)
			}
		})
	}),
}

var watchCmd = &cobra.Command{
	Use:   "watch [prefix]",
	Short: "Stream daemon events until interrupted",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		name, err := profileName()
		if err != nil {
			return err
		}
		c, err := control.Dial(profile.SocketPath(name))
		if err != nil {
			return fmt.Errorf("cannot connect to daemon for profile %q: %w", name, err)
		}
		defer func() { _ = c.Close() }()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		prefix := ""
		if len(args) == 1 {
			prefix = args[0]
		}
		err = c.Watch(ctx, prefix, func(ev control.WatchEvent) {
			if jsonOutput {
				_ = output(ev, nil)
				return
			}
			fmt.Printf("%s %-28s %s\n", ev.At.Local().Format("15:04:05.000"), ev.Kind, ev.Payload)
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

var linkCmd = &cobra.Command{
	Use:   "link <user:id|group:id>",
	Short: "Print the deep link that opens a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		ref, err := model.ParsePeerRef(args[0])
		if err != nil {
			return err
		}
		cfg, err := config.LoadOrDefault(profile.ConfigPath())
		if err != nil {
			return err
		}
		link, err := notify.Link(cfg.Client.AppURL, notify.Target{Kind: ref.Kind, ID: ref.ID})
		if err != nil {
			return err
		}
		if linkPNG != "" {
			png, err := notify.PNG(link, 256)
			if err != nil {
				return err
			}
			if err := os.WriteFile(linkPNG, png, 0o644); err != nil {
				return fmt.Errorf("write %s: %w", linkPNG, err)
			}
		}
		if err := output(map[string]string{"link": link}, func() { fmt.Println(link) }); err != nil {
			return err
		}
		if linkQR && !jsonOutput {
			qr, err := notify.QR(link)
			if err != nil {
				return err
			}
			fmt.Print(qr)
		}
		return nil
	},
}

type profileInfo struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	State   string `json:"state,omitempty"`
}

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List profiles and whether their daemon is running",
	Args:  cobra.NoArgs,
	RunE: func(_ *cobra.Command, _ []string) error {
		names, err := profile.List()
		if err != nil {
			return err
		}
		infos := make([]profileInfo, 0, len(names))
		for _, name := range names {
			infos = append(infos, probe(name))
		}
		return output(infos, func() {
			if len(infos) == 0 {
				fmt.Println("No profiles.")
			}
			for _, p := range infos {
				state := "stopped"
				if p.Running {
					state = p.State
				}
				fmt.Printf("%-16s %s\n", p.Name, state)
			}
		})
	},
}

var profilesUseCmd = &cobra.Command{
	Use:   "use <name>",
	Short: "Make a profile the default",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		if err := profile.ValidateName(args[0]); err != nil {
			return err
		}
		// Load, not LoadOrDefault: env overrides must not end up in the file.
		path := profile.ConfigPath()
		cfg, err := config.Load(path)
		if errors.Is(err, fs.ErrNotExist) {
			cfg, err = config.Default(), nil
		}
		if err != nil {
			return err
		}
		cfg.DefaultProfile = args[0]
		if err := config.Save(path, cfg); err != nil {
			return err
		}
		fmt.Printf("Default profile is now %s\n", args[0])
		return nil
	},
}

func probe(name string) profileInfo {
	info := profileInfo{Name: name}
	c, err := control.Dial(profile.SocketPath(name))
	if err != nil {
		return info
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if resp, err := c.Status(ctx); err == nil {
		info.Running = true
		info.State = resp.State
	}
	return info
}
