package model

import (
	"strings"
	"time"
)

// DeliveryStatus is the delivery state reported by the server. Sending and
// Failed are local.
type DeliveryStatus string

const (
	StatusSending   DeliveryStatus = "sending"
	StatusSent      DeliveryStatus = "sent"
	StatusDelivered DeliveryStatus = "delivered"
	StatusSeen      DeliveryStatus = "seen"
)

// Lifecycle is the display state of a message.
type Lifecycle string

const (
	LocalPending       Lifecycle = "local-pending"
	Confirmed          Lifecycle = "confirmed"
	HiddenForMe        Lifecycle = "hidden-for-me"
	DeletedForEveryone Lifecycle = "deleted-for-everyone"
)

// DeletedPlaceholder replaces the content of a message deleted for everyone.
const DeletedPlaceholder = "This message was deleted"

// ReplyRef is the quoted part of the message being replied to.
type ReplyRef struct {
	ID       string `json:"_id"`
	SenderID string `json:"senderId"`
	Text     string `json:"text,omitempty"`
	Image    string `json:"image,omitempty"`
}

// Message is a private or group message.
type Message struct {
	ID                 string         `json:"_id"`
	ClientID           string         `json:"clientId,omitempty"`
	SenderID           string         `json:"senderId"`
	ReceiverID         string         `json:"receiverId,omitempty"`
	GroupID            string         `json:"groupId,omitempty"`
	Text               string         `json:"text,omitempty"`
	Image              string         `json:"image,omitempty"`
	ReplyTo            *ReplyRef      `json:"replyTo,omitempty"`
	Status             DeliveryStatus `json:"status,omitempty"`
	Edited             bool           `json:"isEdited,omitempty"`
	DeletedForEveryone bool           `json:"deletedForEveryone,omitempty"`
	HiddenForMe        bool           `json:"hiddenForMe,omitempty"`
	Starred            bool           `json:"isStarred,omitempty"`
	Pinned             bool           `json:"isPinned,omitempty"`
	CreatedAt          time.Time      `json:"createdAt"`
	UpdatedAt          time.Time      `json:"updatedAt"`

	// Pending is local: the message has not been confirmed by the server.
	Pending bool `json:"pending,omitempty"`
}

// Revision orders concurrent copies of the same message. Server records carry
// updatedAt; an optimistic copy has none and loses to any server copy.
func (m Message) Revision() int64 {
	if !m.UpdatedAt.IsZero() {
		return m.UpdatedAt.UnixNano()
	}
	if m.Pending {
		return 0
	}
	return m.CreatedAt.UnixNano()
}

// Lifecycle returns the display state.
func (m Message) Lifecycle() Lifecycle {
	switch {
	case m.DeletedForEveryone:
		return DeletedForEveryone
	case m.HiddenForMe:
		return HiddenForMe
	case m.Pending:
		return LocalPending
	default:
		return Confirmed
	}
}

// IsGroup reports whether the message belongs to a group timeline.
func (m Message) IsGroup() bool {
	return m.GroupID != ""
}

// Conversation returns the conversation the message belongs to, seen from selfID.
func (m Message) Conversation(selfID string) PeerRef {
	if m.GroupID != "" {
		return PeerRef{Kind: KindGroup, ID: m.GroupID}
	}
	if m.SenderID == selfID {
		return PeerRef{Kind: KindUser, ID: m.ReceiverID}
	}
	return PeerRef{Kind: KindUser, ID: m.SenderID}
}

// Tombstone replaces the renderable content with the deleted marker while
// keeping the entry's position in the timeline.
func (m *Message) Tombstone() {
	m.DeletedForEveryone = true
	m.Text = ""
	m.Image = ""
	m.ReplyTo = nil
	m.Starred = false
	m.Pinned = false
}

// Preview is the one-line summary shown in conversation lists.
func (m Message) Preview() string {
	switch {
	case m.DeletedForEveryone:
		return DeletedPlaceholder
	case m.Text != "":
		line, _, _ := strings.Cut(m.Text, "\n")
		return line
	case m.Image != "":
		return "Photo"
	default:
		return ""
	}
}

// Clone returns a deep copy.
func (m Message) Clone() Message {
	if m.ReplyTo != nil {
		r := *m.ReplyTo
		m.ReplyTo = &r
	}
	return m
}

// Quote builds the reply reference for m.
func (m Message) Quote() *ReplyRef {
	return &ReplyRef{ID: m.ID, SenderID: m.SenderID, Text: m.Text, Image: m.Image}
}
