package model

import (
	"encoding/json"
	"fmt"
)

// Wire names of the real-time events.
const (
	EvMemberAdded     = "memberAdded"
	EvMemberRemoved   = "memberRemoved"
	EvMemberPromoted  = "memberPromoted"
	EvGroupUpdated    = "groupUpdated"
	EvNewMessage      = "newMessage"
	EvNewGroupMessage = "newGroupMessage"
	EvMessageUpdated  = "messageUpdated"
	EvMessageDeleted  = "messageDeleted"
	EvGroupEvent      = "groupEvent"
	EvPresence        = "presence"
)

// EventNames lists every event the client subscribes to.
var EventNames = []string{
	EvMemberAdded, EvMemberRemoved, EvMemberPromoted, EvGroupUpdated,
	EvNewMessage, EvNewGroupMessage, EvMessageUpdated, EvMessageDeleted,
	EvGroupEvent, EvPresence,
}

// Event is a server-pushed change. The concrete types below are the only
// implementations.
type Event interface {
	EventName() string
	isEvent()
}

// MemberAdded reports new members of a group.
type MemberAdded struct {
	GroupID   string   `json:"groupId"`
	MemberIDs []string `json:"memberIds"`
	Group     *Group   `json:"group,omitempty"`
}

// MemberRemoved reports a member leaving or being removed.
type MemberRemoved struct {
	GroupID  string `json:"groupId"`
	MemberID string `json:"memberId"`
}

// MemberPromoted reports a member becoming admin.
type MemberPromoted struct {
	GroupID  string `json:"groupId"`
	MemberID string `json:"memberId"`
}

// GroupUpdated carries the new group metadata.
type GroupUpdated struct {
	Group Group `json:"group"`
}

// MessageNew is a new private or group message.
type MessageNew struct {
	Message Message `json:"message"`
}

// MessageUpdated carries an edited, starred or pinned message.
type MessageUpdated struct {
	Message Message `json:"message"`
}

// DeleteScope says who a deletion applies to.
type DeleteScope string

const (
	ScopeMe       DeleteScope = "me"
	ScopeEveryone DeleteScope = "everyone"
)

// MessageDeleted reports a deletion.
type MessageDeleted struct {
	MessageID  string      `json:"messageId"`
	GroupID    string      `json:"groupId,omitempty"`
	SenderID   string      `json:"senderId,omitempty"`
	ReceiverID string      `json:"receiverId,omitempty"`
	Scope      DeleteScope `json:"scope"`
	Revision   int64       `json:"revision,omitempty"`
}

// Conversation returns the conversation the deleted message belongs to, seen
// from selfID. ok is false when the event names no participants.
func (e MessageDeleted) Conversation(selfID string) (ref PeerRef, ok bool) {
	if e.GroupID == "" && e.SenderID == "" {
		return PeerRef{}, false
	}
	m := Message{GroupID: e.GroupID, SenderID: e.SenderID, ReceiverID: e.ReceiverID}
	return m.Conversation(selfID), true
}

// GroupEventNew is a server-authored timeline entry.
type GroupEventNew struct {
	Event GroupEvent `json:"event"`
}

// PresenceChanged lists the users currently online.
type PresenceChanged struct {
	OnlineUserIDs []string `json:"onlineUserIds"`
}

func (MemberAdded) EventName() string     { return EvMemberAdded }
func (MemberRemoved) EventName() string   { return EvMemberRemoved }
func (MemberPromoted) EventName() string  { return EvMemberPromoted }
func (GroupUpdated) EventName() string    { return EvGroupUpdated }
func (MessageUpdated) EventName() string  { return EvMessageUpdated }
func (MessageDeleted) EventName() string  { return EvMessageDeleted }
func (GroupEventNew) EventName() string   { return EvGroupEvent }
func (PresenceChanged) EventName() string { return EvPresence }

func (e MessageNew) EventName() string {
	if e.Message.IsGroup() {
		return EvNewGroupMessage
	}
	return EvNewMessage
}

func (MemberAdded) isEvent()     {}
func (MemberRemoved) isEvent()   {}
func (MemberPromoted) isEvent()  {}
func (GroupUpdated) isEvent()    {}
func (MessageNew) isEvent()      {}
func (MessageUpdated) isEvent()  {}
func (MessageDeleted) isEvent()  {}
func (GroupEventNew) isEvent()   {}
func (PresenceChanged) isEvent() {}

// DecodeEvent turns a named payload into its typed event. Message-carrying
// events accept the bare message object as well as {"message": ...}.
func DecodeEvent(name string, data json.RawMessage) (Event, error) {
	var (
		ev  Event
		err error
	)
	switch name {
	case EvMemberAdded:
		var e MemberAdded
		err = json.Unmarshal(data, &e)
		ev = e
	case EvMemberRemoved:
		var e MemberRemoved
		err = json.Unmarshal(data, &e)
		ev = e
	case EvMemberPromoted:
		var e MemberPromoted
		err = json.Unmarshal(data, &e)
		ev = e
	case EvGroupUpdated:
		var e GroupUpdated
		e.Group, err = decodeWrapped[Group](data, "group")
		ev = e
	case EvNewMessage, EvNewGroupMessage:
		var e MessageNew
		e.Message, err = decodeWrapped[Message](data, "message")
		ev = e
	case EvMessageUpdated:
		var e MessageUpdated
		e.Message, err = decodeWrapped[Message](data, "message")
		ev = e
	case EvMessageDeleted:
		var e MessageDeleted
		err = json.Unmarshal(data, &e)
		if e.Scope == "" {
			e.Scope = ScopeEveryone
		}
		ev = e
	case EvGroupEvent:
		var e GroupEventNew
		e.Event, err = decodeWrapped[GroupEvent](data, "event")
		ev = e
	case EvPresence:
		var e PresenceChanged
		if err = json.Unmarshal(data, &e); err != nil {
			var ids []string
			if json.Unmarshal(data, &ids) == nil {
				e.OnlineUserIDs, err = ids, nil
			}
		}
		ev = e
	default:
		return nil, fmt.Errorf("unknown event %q", name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return ev, nil
}

// EncodeEvent returns the wire name and payload of ev.
func EncodeEvent(ev Event) (string, json.RawMessage, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return "", nil, fmt.Errorf("encode %s: %w", ev.EventName(), err)
	}
	return ev.EventName(), data, nil
}

func decodeWrapped[T any](data json.RawMessage, field string) (T, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		var zero T
		return zero, err
	}
	if inner, ok := probe[field]; ok && len(probe) == 1 {
		data = inner
	}
	var v T
	err := json.Unmarshal(data, &v)
	return v, err
}
