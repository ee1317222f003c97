package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestMessageLifecycle(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want Lifecycle
	}{
		{"pending", Message{Pending: true}, LocalPending},
		{"confirmed", Message{ID: "m1"}, Confirmed},
		{"hidden", Message{ID: "m1", HiddenForMe: true}, HiddenForMe},
		{"deleted wins over hidden", Message{ID: "m1", HiddenForMe: true, DeletedForEveryone: true}, DeletedForEveryone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.Lifecycle(); got != tt.want {
				t.Errorf("Lifecycle() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMessageRevision(t *testing.T) {
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	pending := Message{Pending: true, CreatedAt: created}
	if pending.Revision() != 0 {
		t.Errorf("pending revision = %d, want 0", pending.Revision())
	}
	server := Message{ID: "m1", CreatedAt: created}
	if server.Revision() != created.UnixNano() {
		t.Errorf("server revision should fall back to createdAt")
	}
	edited := Message{ID: "m1", CreatedAt: created, UpdatedAt: created.Add(time.Minute)}
	if edited.Revision() <= server.Revision() {
		t.Errorf("edited revision should exceed original")
	}
}

func TestTombstone(t *testing.T) {
	m := Message{ID: "m1", Text: "hi", Image: "x.png", ReplyTo: &ReplyRef{ID: "m0"}, Starred: true, Pinned: true}
	m.Tombstone()
	if m.Text != "" || m.Image != "" || m.ReplyTo != nil || m.Starred || m.Pinned {
		t.Errorf("tombstone kept content: %+v", m)
	}
	if m.Preview() != DeletedPlaceholder {
		t.Errorf("Preview() = %q", m.Preview())
	}
}

func TestConversation(t *testing.T) {
	out := Message{SenderID: "me", ReceiverID: "u1"}
	in := Message{SenderID: "u1", ReceiverID: "me"}
	grp := Message{SenderID: "u1", GroupID: "g1"}

	if got := out.Conversation("me"); got != (PeerRef{KindUser, "u1"}) {
		t.Errorf("outgoing = %v", got)
	}
	if got := in.Conversation("me"); got != (PeerRef{KindUser, "u1"}) {
		t.Errorf("incoming = %v", got)
	}
	if got := grp.Conversation("me"); got != (PeerRef{KindGroup, "g1"}) {
		t.Errorf("group = %v", got)
	}
}

func TestParsePeerRef(t *testing.T) {
	tests := []struct {
		in      string
		want    PeerRef
		wantErr bool
	}{
		{in: "user:u1", want: PeerRef{KindUser, "u1"}},
		{in: "group:g:1", want: PeerRef{KindGroup, "g:1"}},
		{in: "user:", wantErr: true},
		{in: "channel:c1", wantErr: true},
		{in: "u1", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParsePeerRef(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePeerRef(%q) err = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePeerRef(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPeerVariants(t *testing.T) {
	peers := []Peer{
		Contact{User: User{ID: "u1", FullName: "Ana"}},
		Group{ID: "g1", Name: "Team"},
	}
	for _, p := range peers {
		switch v := p.(type) {
		case Contact:
			if v.Ref().Kind != KindUser || v.DisplayName() != "Ana" {
				t.Errorf("contact peer = %v %q", v.Ref(), v.DisplayName())
			}
		case Group:
			if v.Ref().Kind != KindGroup || v.DisplayName() != "Team" {
				t.Errorf("group peer = %v %q", v.Ref(), v.DisplayName())
			}
		}
	}
}

func TestDecodeEvent(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Event
	}{
		{EvMemberRemoved, `{"groupId":"g1","memberId":"u2"}`, MemberRemoved{GroupID: "g1", MemberID: "u2"}},
		{EvMemberPromoted, `{"groupId":"g1","memberId":"u2"}`, MemberPromoted{GroupID: "g1", MemberID: "u2"}},
		{EvMessageDeleted, `{"messageId":"m1"}`, MessageDeleted{MessageID: "m1", Scope: ScopeEveryone}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeEvent(tt.name, json.RawMessage(tt.data))
			if err != nil {
				t.Fatalf("DecodeEvent: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestDecodeEventWrappedAndBare(t *testing.T) {
	bare, err := DecodeEvent(EvNewGroupMessage, json.RawMessage(`{"_id":"m1","senderId":"u1","groupId":"g1","text":"hi"}`))
	if err != nil {
		t.Fatalf("bare: %v", err)
	}
	wrapped, err := DecodeEvent(EvNewGroupMessage, json.RawMessage(`{"message":{"_id":"m1","senderId":"u1","groupId":"g1","text":"hi"}}`))
	if err != nil {
		t.Fatalf("wrapped: %v", err)
	}
	b := bare.(MessageNew)
	w := wrapped.(MessageNew)
	if b.Message.ID != "m1" || w.Message.ID != "m1" {
		t.Fatalf("ids = %q %q", b.Message.ID, w.Message.ID)
	}
	if b.EventName() != EvNewGroupMessage {
		t.Errorf("EventName() = %q", b.EventName())
	}
}

func TestDecodeUnknownEvent(t *testing.T) {
	if _, err := DecodeEvent("typing", json.RawMessage(`{}`)); err == nil {
		t.Fatal("expected error for unknown event")
	}
}

func TestEncodeRoundTripName(t *testing.T) {
	name, data, err := EncodeEvent(MemberAdded{GroupID: "g1", MemberIDs: []string{"u2"}})
	if err != nil {
		t.Fatal(err)
	}
	ev, err := DecodeEvent(name, data)
	if err != nil {
		t.Fatal(err)
	}
	added, ok := ev.(MemberAdded)
	if !ok || added.GroupID != "g1" || len(added.MemberIDs) != 1 {
		t.Errorf("decoded %#v", ev)
	}
}
