package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/chatline/internal/model"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"status"}, {"login"}, {"signup"}, {"logout"},
		{"chats"}, {"groups"}, {"contacts"}, {"open"}, {"messages"},
		{"send"}, {"edit"}, {"delete"}, {"star"}, {"pin"}, {"forward"},
		{"group", "create"}, {"group", "rename"}, {"group", "add"},
		{"group", "remove"}, {"group", "promote"}, {"group", "leave"},
		{"toasts"}, {"toasts", "dismiss"}, {"diag"}, {"watch"}, {"link"}, {"profiles"}, {"profiles", "use"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}

func TestPersistentFlags(t *testing.T) {
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("profile"))
	assert.NotNil(t, rootCmd.PersistentFlags().Lookup("json"))
	assert.NotNil(t, deleteCmd.Flags().Lookup("everyone"))
	assert.NotNil(t, chatsCmd.Flags().Lookup("refresh"))
}

func TestParsePeers(t *testing.T) {
	refs, err := parsePeers([]string{"user:u1", "group:g1"})
	require.NoError(t, err)
	assert.Equal(t, []model.PeerRef{{Kind: model.KindUser, ID: "u1"}, {Kind: model.KindGroup, ID: "g1"}}, refs)

	_, err = parsePeers([]string{"u1"})
	assert.Error(t, err)
}

func TestReadPassword(t *testing.T) {
	t.Setenv("CHATLINE_PASSWORD", "")
	p, err := readPassword(strings.NewReader("hunter2\n"))
	require.NoError(t, err)
	assert.Equal(t, "hunter2", p)

	t.Setenv("CHATLINE_PASSWORD", "fromenv")
	p, err = readPassword(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, "fromenv", p)
}

func TestMarks(t *testing.T) {
	assert.Empty(t, marks(model.Message{}))
	assert.Equal(t, " (starred, edited)", marks(model.Message{Starred: true, Edited: true}))
	assert.Equal(t, " (pinned)", marks(model.Message{Pinned: true, Edited: true, DeletedForEveryone: true}))
}
