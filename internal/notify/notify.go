// Package notify turns push payloads and deep links into "open this
// conversation" requests and registers the device for push delivery.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/logging"
	"github.com/matheus3301/chatline/internal/model"
)

// Push payload types.
const (
	TypeNewMessage      = "new_message"
	TypeNewGroupMessage = "new_group_message"
)

// Platform is reported with every registered push token.
const Platform = "terminal"

// ErrNoTarget is returned for payloads and links that name no conversation.
var ErrNoTarget = errors.New("notify: no conversation target")

// Target is a conversation a notification points at.
type Target struct {
	Kind model.PeerKind
	ID   string
}

// Ref returns the target as a conversation reference.
func (t Target) Ref() model.PeerRef { return model.PeerRef{Kind: t.Kind, ID: t.ID} }

// Payload is the data carried by a push notification.
type Payload struct {
	Type     string `json:"type"`
	SenderID string `json:"senderId,omitempty"`
	GroupID  string `json:"groupId,omitempty"`
}

// Target resolves the conversation the payload refers to.
func (p Payload) Target() (Target, error) {
	switch p.Type {
	case TypeNewMessage:
		if p.SenderID == "" {
			return Target{}, ErrNoTarget
		}
		return Target{Kind: model.KindUser, ID: p.SenderID}, nil
	case TypeNewGroupMessage:
		if p.GroupID == "" {
			return Target{}, ErrNoTarget
		}
		return Target{Kind: model.KindGroup, ID: p.GroupID}, nil
	default:
		return Target{}, fmt.Errorf("notify: unknown payload type %q", p.Type)
	}
}

// DecodePayload parses a JSON push payload.
func DecodePayload(data []byte) (Target, error) {
	var p Payload
	if err := json.Unmarshal(data, &p); err != nil {
		return Target{}, fmt.Errorf("notify: decode payload: %w", err)
	}
	return p.Target()
}

// ParseLink reads the ?chat=<id>&type=user|group convention from a full URL
// or a bare query string. A missing type means a direct chat.
func ParseLink(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	var q url.Values
	if strings.HasPrefix(raw, "?") || (!strings.Contains(raw, "?") && strings.Contains(raw, "=")) {
		v, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
		if err != nil {
			return Target{}, fmt.Errorf("notify: parse link: %w", err)
		}
		q = v
	} else {
		u, err := url.Parse(raw)
		if err != nil {
			return Target{}, fmt.Errorf("notify: parse link: %w", err)
		}
		q = u.Query()
	}

	id := q.Get("chat")
	if id == "" {
		return Target{}, ErrNoTarget
	}
	kind := model.KindUser
	if t := q.Get("type"); t != "" {
		k, err := model.ParsePeerKind(t)
		if err != nil {
			return Target{}, fmt.Errorf("notify: %w", err)
		}
		kind = k
	}
	return Target{Kind: kind, ID: id}, nil
}

// Link renders the deep link for t on top of base.
func Link(base string, t Target) (string, error) {
	if t.ID == "" {
		return "", ErrNoTarget
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("notify: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("chat", t.ID)
	q.Set("type", string(t.Kind))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Registrar posts device tokens to the backend.
type Registrar interface {
	RegisterPushToken(ctx context.Context, pt api.PushToken) error
}

// Opener selects a conversation and loads its timeline.
type Opener interface {
	OpenChatByID(ctx context.Context, kind model.PeerKind, id string) (model.Peer, error)
	LoadMessages(ctx context.Context, ref model.PeerRef) error
}

// Service routes notifications to the open-chat operation.
type Service struct {
	reg    Registrar
	opener Opener
	base   string
	logger *zap.Logger
}

// New creates a Service. base is the app URL deep links are built on.
func New(reg Registrar, opener Opener, base string, logger *zap.Logger) *Service {
	return &Service{
		reg:    reg,
		opener: opener,
		base:   base,
		logger: logging.OrNop(logger),
	}
}

// Register posts the device token. An empty token is a no-op. Failures are
// logged and returned; callers are expected to carry on.
func (s *Service) Register(ctx context.Context, pushToken string) error {
	if pushToken == "" {
		return nil
	}
	if err := s.reg.RegisterPushToken(ctx, api.PushToken{Token: pushToken, Platform: Platform}); err != nil {
		s.logger.Warn("push token registration failed", zap.Error(err))
		return err
	}
	s.logger.Debug("push token registered")
	return nil
}

// Open selects the target conversation and loads it.
func (s *Service) Open(ctx context.Context, t Target) (model.Peer, error) {
	p, err := s.opener.OpenChatByID(ctx, t.Kind, t.ID)
	if err != nil {
		return nil, err
	}
	if err := s.opener.LoadMessages(ctx, p.Ref()); err != nil {
		return p, err
	}
	s.logger.Info("opened from notification",
		zap.String("kind", string(t.Kind)),
		zap.String("id", t.ID),
	)
	return p, nil
}

// OpenPayload decodes a push payload and opens its conversation.
func (s *Service) OpenPayload(ctx context.Context, data []byte) (model.Peer, error) {
	t, err := DecodePayload(data)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, t)
}

// OpenLink parses a deep link and opens its conversation.
func (s *Service) OpenLink(ctx context.Context, raw string) (model.Peer, error) {
	t, err := ParseLink(raw)
	if err != nil {
		return nil, err
	}
	return s.Open(ctx, t)
}

// Link renders the deep link for t on the configured app URL.
func (s *Service) Link(t Target) (string, error) {
	return Link(s.base, t)
}
