package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matheus3301/chatline/internal/control"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/profile"
)

const callTimeout = 15 * time.Second

// profileName resolves and validates the --profile flag.
func profileName() (string, error) {
	name := profile.Resolve(profileFlag)
	if err := profile.ValidateName(name); err != nil {
		return "", err
	}
	return name, nil
}

// withClient dials the profile's daemon and runs fn with a bounded context.
func withClient(fn func(ctx context.Context, c *control.Client) error) error {
	name, err := profileName()
	if err != nil {
		return err
	}
	c, err := control.Dial(profile.SocketPath(name))
	if err != nil {
		return fmt.Errorf("cannot connect to daemon for profile %q: %w", name, err)
	}
	defer func() { _ = c.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	return fn(ctx, c)
}

// run adapts withClient to a cobra RunE.
func run(fn func(ctx context.Context, c *control.Client, args []string) error) func(*cobra.Command, []string) error {
	return func(_ *cobra.Command, args []string) error {
		return withClient(func(ctx context.Context, c *control.Client) error {
			return fn(ctx, c, args)
		})
	}
}

func parsePeers(args []string) ([]model.PeerRef, error) {
	refs := make([]model.PeerRef, 0, len(args))
	for _, a := range args {
		ref, err := model.ParsePeerRef(a)
		if err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// readPassword takes CHATLINE_PASSWORD when set, else one line from in.
func readPassword(in io.Reader) (string, error) {
	if p := os.Getenv("CHATLINE_PASSWORD"); p != "" {
		return p, nil
	}
	fmt.Fprint(os.Stderr, "Password: ")
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// output prints v as indented JSON with --json, else runs text.
func output(v any, text func()) error {
	if !jsonOutput {
		text()
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "error: %s\n", control.ErrorMessage(err))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
