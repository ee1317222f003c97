// Package model holds the client-side copies of server entities. The server
// is authoritative for every field except the ones marked local.
package model

import (
	"slices"
	"time"
)

// User is the signed-in identity.
type User struct {
	ID         string `json:"_id"`
	FullName   string `json:"fullName"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic,omitempty"`
}

// Contact is a user the signed-in user can start a conversation with. Only
// presence and profile fields change, and only by server push.
type Contact struct {
	User
	Online bool `json:"online,omitempty"`
}

// Chat is a private conversation, keyed by the counterpart's id.
type Chat struct {
	Counterpart Contact  `json:"user"`
	LastMessage *Message `json:"lastMessage,omitempty"`
	UnreadCount int      `json:"unreadCount"`
	Starred     bool     `json:"isStarred,omitempty"`
}

// LastActivity is the time used to order the chat list.
func (c Chat) LastActivity() time.Time {
	if c.LastMessage == nil {
		return time.Time{}
	}
	return c.LastMessage.CreatedAt
}

// Group is a multi-member conversation. Every admin is also a member; the
// server enforces that and the client trusts it.
type Group struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Image       string    `json:"image,omitempty"`
	Members     []string  `json:"members"`
	Admins      []string  `json:"admins"`
	CreatedBy   string    `json:"createdBy,omitempty"`
	LastMessage *Message  `json:"lastMessage,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Revision orders concurrent copies of the same group.
func (g Group) Revision() int64 {
	return g.UpdatedAt.UnixNano()
}

// HasMember reports whether id is a member.
func (g Group) HasMember(id string) bool {
	return slices.Contains(g.Members, id)
}

// IsAdmin reports whether id is an admin.
func (g Group) IsAdmin(id string) bool {
	return slices.Contains(g.Admins, id)
}

// Clone returns a copy that shares no slices with g.
func (g Group) Clone() Group {
	g.Members = slices.Clone(g.Members)
	g.Admins = slices.Clone(g.Admins)
	if g.LastMessage != nil {
		m := g.LastMessage.Clone()
		g.LastMessage = &m
	}
	return g
}

// GroupEventType names a membership or profile change.
type GroupEventType string

const (
	GroupCreated  GroupEventType = "group_created"
	GroupRenamed  GroupEventType = "group_updated"
	MemberJoined  GroupEventType = "member_joined"
	MemberLeft    GroupEventType = "member_left"
	MemberKicked  GroupEventType = "member_removed"
	AdminPromoted GroupEventType = "admin_promoted"
)

// GroupEvent is a timeline entry authored by the server. The client never
// creates one for a membership change.
type GroupEvent struct {
	ID        string         `json:"_id"`
	GroupID   string         `json:"groupId"`
	Type      GroupEventType `json:"type"`
	ActorID   string         `json:"actorId,omitempty"`
	TargetIDs []string       `json:"targetIds,omitempty"`
	Text      string         `json:"text,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// TimelineItem is either a message or a group event.
type TimelineItem struct {
	Message *Message    `json:"message,omitempty"`
	Event   *GroupEvent `json:"event,omitempty"`
}

// ID returns the id of whichever entry the item holds.
func (it TimelineItem) ID() string {
	if it.Message != nil {
		return it.Message.ID
	}
	if it.Event != nil {
		return it.Event.ID
	}
	return ""
}

// At returns the creation time used to order the timeline.
func (it TimelineItem) At() time.Time {
	if it.Message != nil {
		return it.Message.CreatedAt
	}
	if it.Event != nil {
		return it.Event.CreatedAt
	}
	return time.Time{}
}
