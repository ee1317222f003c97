package control

import (
	"encoding/json"
	"time"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/diag"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/state"
)

// Empty is used by calls without arguments or results.
type Empty struct{}

type StatusResponse struct {
	Profile  string         `json:"profile"`
	State    string         `json:"state"`
	Route    string         `json:"route"`
	Socket   string         `json:"socket"`
	User     *model.User    `json:"user,omitempty"`
	Active   *model.PeerRef `json:"active,omitempty"`
	UptimeMs int64          `json:"uptimeMs"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SignupRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type UserResponse struct {
	User model.User `json:"user"`
}

// ListRequest asks for a list; Refresh reloads it from the server first.
type ListRequest struct {
	Refresh bool `json:"refresh,omitempty"`
}

type ChatsResponse struct {
	Chats []model.Chat `json:"chats"`
}

type GroupsResponse struct {
	Groups []model.Group `json:"groups"`
}

type ContactsResponse struct {
	Contacts []model.Contact `json:"contacts"`
}

type OpenRequest struct {
	Peer model.PeerRef `json:"peer"`
}

// OpenLinkRequest carries either a deep link or a raw push payload.
type OpenLinkRequest struct {
	Link    string          `json:"link,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type OpenResponse struct {
	Peer model.PeerRef `json:"peer"`
	Name string        `json:"name"`
}

// MessagesRequest reads the open conversation. A non-empty Peer opens that
// conversation first.
type MessagesRequest struct {
	Peer *model.PeerRef `json:"peer,omitempty"`
}

type MessagesResponse struct {
	Peer     *model.PeerRef       `json:"peer,omitempty"`
	Name     string               `json:"name,omitempty"`
	Items    []model.TimelineItem `json:"items"`
	Pinned   []string             `json:"pinned,omitempty"`
	Selected []string             `json:"selected,omitempty"`
	Bulk     bool                 `json:"bulk,omitempty"`
	Draft    string               `json:"draft,omitempty"`
}

type SendRequest struct {
	Peer    model.PeerRef `json:"peer"`
	Text    string        `json:"text,omitempty"`
	Image   string        `json:"image,omitempty"`
	ReplyTo string        `json:"replyTo,omitempty"`
}

type MessageResponse struct {
	Message model.Message `json:"message"`
}

type EditRequest struct {
	Peer model.PeerRef `json:"peer"`
	ID   string        `json:"id"`
	Text string        `json:"text"`
}

type DeleteRequest struct {
	Peer  model.PeerRef     `json:"peer"`
	ID    string            `json:"id"`
	Scope model.DeleteScope `json:"scope"`
}

// ToggleRequest addresses one message for star or pin.
type ToggleRequest struct {
	Peer model.PeerRef `json:"peer"`
	ID   string        `json:"id"`
}

type ToggleResponse struct {
	On bool `json:"on"`
}

type ForwardRequest struct {
	IDs        []string        `json:"ids,omitempty"`
	Recipients []model.PeerRef `json:"recipients"`
}

// SelectRequest changes the bulk selection. Clear runs first, then Bulk,
// then each id in Toggle.
type SelectRequest struct {
	Clear  bool     `json:"clear,omitempty"`
	Bulk   *bool    `json:"bulk,omitempty"`
	Toggle []string `json:"toggle,omitempty"`
}

type SelectResponse struct {
	Selected []string `json:"selected"`
	Bulk     bool     `json:"bulk"`
}

// BulkRequest addresses a set of messages; empty IDs means the selection.
type BulkRequest struct {
	IDs   []string          `json:"ids,omitempty"`
	Scope model.DeleteScope `json:"scope,omitempty"`
}

type BulkResponse struct {
	Done   int `json:"done"`
	Failed int `json:"failed"`
}

type CopyResponse struct {
	Text string `json:"text"`
}

type GroupRequest struct {
	ID    string         `json:"id,omitempty"`
	Input api.GroupInput `json:"input"`
}

type GroupResponse struct {
	Group model.Group `json:"group"`
}

type MembersRequest struct {
	GroupID   string   `json:"groupId"`
	MemberIDs []string `json:"memberIds"`
}

type MemberRequest struct {
	GroupID  string `json:"groupId"`
	MemberID string `json:"memberId"`
}

type LeaveRequest struct {
	GroupID string `json:"groupId"`
}

type ToastsResponse struct {
	Toasts []state.Toast `json:"toasts"`
}

type DismissRequest struct {
	ID string `json:"id"`
}

// DiagnosticsRequest lists captured failures. Dismiss drops one entry
// first; DismissAll drops them all.
type DiagnosticsRequest struct {
	Dismiss    string `json:"dismiss,omitempty"`
	DismissAll bool   `json:"dismissAll,omitempty"`
}

type DiagnosticsResponse struct {
	Entries []diag.Entry `json:"entries"`
}

// WatchRequest subscribes to bus events whose kind starts with Prefix.
type WatchRequest struct {
	Prefix string `json:"prefix,omitempty"`
}

// WatchEvent is one bus event relayed to a watcher.
type WatchEvent struct {
	Kind    string          `json:"kind"`
	At      time.Time       `json:"at"`
	Payload json.RawMessage `json:"payload,omitempty"`
}
