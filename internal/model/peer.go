package model

import (
	"fmt"
	"strings"
)

// PeerKind distinguishes the two conversation types.
type PeerKind string

const (
	KindUser  PeerKind = "user"
	KindGroup PeerKind = "group"
)

// ParsePeerKind accepts the wire spelling of a conversation type.
func ParsePeerKind(s string) (PeerKind, error) {
	switch PeerKind(s) {
	case KindUser, KindGroup:
		return PeerKind(s), nil
	}
	return "", fmt.Errorf("unknown conversation type %q", s)
}

// PeerRef identifies a conversation and is usable as a map key.
type PeerRef struct {
	Kind PeerKind `json:"kind"`
	ID   string   `json:"id"`
}

func (r PeerRef) String() string {
	return string(r.Kind) + ":" + r.ID
}

// ParsePeerRef parses the form produced by PeerRef.String.
func ParsePeerRef(s string) (PeerRef, error) {
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return PeerRef{}, fmt.Errorf("malformed conversation reference %q", s)
	}
	k, err := ParsePeerKind(kind)
	if err != nil {
		return PeerRef{}, err
	}
	return PeerRef{Kind: k, ID: id}, nil
}

// Peer is a conversation target: a Contact or a Group.
type Peer interface {
	Ref() PeerRef
	DisplayName() string
	isPeer()
}

// Ref implements Peer.
func (c Contact) Ref() PeerRef { return PeerRef{Kind: KindUser, ID: c.ID} }

// DisplayName implements Peer.
func (c Contact) DisplayName() string {
	if c.FullName != "" {
		return c.FullName
	}
	return c.Email
}

func (Contact) isPeer() {}

// Ref implements Peer.
func (g Group) Ref() PeerRef { return PeerRef{Kind: KindGroup, ID: g.ID} }

// DisplayName implements Peer.
func (g Group) DisplayName() string { return g.Name }

func (Group) isPeer() {}
