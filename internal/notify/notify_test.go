package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/model"
)

type registrarMock struct{ mock.Mock }

func (r *registrarMock) RegisterPushToken(ctx context.Context, pt api.PushToken) error {
	return r.Called(ctx, pt).Error(0)
}

type openerMock struct{ mock.Mock }

func (o *openerMock) OpenChatByID(ctx context.Context, kind model.PeerKind, id string) (model.Peer, error) {
	args := o.Called(ctx, kind, id)
	p, _ := args.Get(0).(model.Peer)
	return p, args.Error(1)
}

func (o *openerMock) LoadMessages(ctx context.Context, ref model.PeerRef) error {
	return o.Called(ctx, ref).Error(0)
}

func TestPayloadTarget(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    Target
		wantErr bool
	}{
		{"direct", `{"type":"new_message","senderId":"u1"}`, Target{Kind: model.KindUser, ID: "u1"}, false},
		{"group", `{"type":"new_group_message","groupId":"g1","senderId":"u1"}`, Target{Kind: model.KindGroup, ID: "g1"}, false},
		{"missing sender", `{"type":"new_message"}`, Target{}, true},
		{"missing group", `{"type":"new_group_message","senderId":"u1"}`, Target{}, true},
		{"unknown type", `{"type":"call","senderId":"u1"}`, Target{}, true},
		{"not json", `new_message`, Target{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodePayload([]byte(tt.payload))
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseLink(t *testing.T) {
	tests := []struct {
		name    string
		link    string
		want    Target
		wantErr error
	}{
		{"full url", "https://chat.example.com/?chat=g1&type=group", Target{Kind: model.KindGroup, ID: "g1"}, nil},
		{"bare query", "?chat=u1&type=user", Target{Kind: model.KindUser, ID: "u1"}, nil},
		{"query without mark", "chat=u1", Target{Kind: model.KindUser, ID: "u1"}, nil},
		{"type defaults to user", "https://chat.example.com/?chat=u9", Target{Kind: model.KindUser, ID: "u9"}, nil},
		{"no chat", "https://chat.example.com/?type=group", Target{}, ErrNoTarget},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLink(tt.link)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLink("?chat=x&type=channel")
	assert.Error(t, err)
}

func TestLinkRoundTrip(t *testing.T) {
	target := Target{Kind: model.KindGroup, ID: "g 1"}
	link, err := Link("http://localhost:5173/app?theme=dark", target)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(link, "http://localhost:5173/app?"))
	assert.Contains(t, link, "theme=dark")

	got, err := ParseLink(link)
	require.NoError(t, err)
	assert.Equal(t, target, got)

	_, err = Link("http://localhost/", Target{Kind: model.KindUser})
	assert.ErrorIs(t, err, ErrNoTarget)
}

func TestRegister(t *testing.T) {
	reg := &registrarMock{}
	reg.On("RegisterPushToken", mock.Anything, api.PushToken{Token: "tok", Platform: Platform}).Return(nil).Once()
	s := New(reg, &openerMock{}, "http://localhost/", nil)

	require.NoError(t, s.Register(context.Background(), "tok"))
	require.NoError(t, s.Register(context.Background(), ""))
	reg.AssertExpectations(t)
}

func TestRegisterFailureIsReturned(t *testing.T) {
	boom := errors.New("push unavailable")
	reg := &registrarMock{}
	reg.On("RegisterPushToken", mock.Anything, mock.Anything).Return(boom)
	s := New(reg, &openerMock{}, "http://localhost/", nil)

	assert.ErrorIs(t, s.Register(context.Background(), "tok"), boom)
}

func TestOpenPayloadOpensConversation(t *testing.T) {
	ana := model.Contact{User: model.User{ID: "u1", FullName: "Ana"}}
	op := &openerMock{}
	op.On("OpenChatByID", mock.Anything, model.KindUser, "u1").Return(ana, nil).Once()
	op.On("LoadMessages", mock.Anything, ana.Ref()).Return(nil).Once()
	s := New(&registrarMock{}, op, "http://localhost/", nil)

	p, err := s.OpenPayload(context.Background(), []byte(`{"type":"new_message","senderId":"u1"}`))
	require.NoError(t, err)
	assert.Equal(t, ana.Ref(), p.Ref())
	op.AssertExpectations(t)
}

func TestOpenLinkStopsWhenLookupFails(t *testing.T) {
	boom := errors.New("not found")
	op := &openerMock{}
	op.On("OpenChatByID", mock.Anything, model.KindGroup, "g1").Return(nil, boom)
	s := New(&registrarMock{}, op, "http://localhost/", nil)

	_, err := s.OpenLink(context.Background(), "?chat=g1&type=group")
	require.ErrorIs(t, err, boom)
	op.AssertNotCalled(t, "LoadMessages", mock.Anything, mock.Anything)
}

func TestQR(t *testing.T) {
	out, err := QR("http://localhost:5173/?chat=u1&type=user")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	require.NotEmpty(t, lines)
	assert.True(t, strings.ContainsAny(out, "█▀▄"))
	width := len([]rune(lines[0]))
	for _, l := range lines {
		assert.Equal(t, width, len([]rune(l)))
	}
}

func TestPNG(t *testing.T) {
	b, err := PNG("hello", 64)
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(b[:4]))
}
