package control

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/model"
)

// Client calls a running daemon.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to the daemon listening on socketPath. The connection is
// established lazily on the first call.
func Dial(socketPath string) (*Client, error) {
	conn, err := grpc.NewClient(
		"unix://"+socketPath,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(codecName)),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ErrorMessage returns the user-facing text of a control error.
func ErrorMessage(err error) string {
	if st, ok := grpcstatus.FromError(err); ok {
		return st.Message()
	}
	return err.Error()
}

// IsUnavailable reports whether err means the daemon could not be reached.
func IsUnavailable(err error) bool {
	return grpcstatus.Code(err) == codes.Unavailable
}

func invoke[Resp any](ctx context.Context, c *Client, method string, req any) (*Resp, error) {
	resp := new(Resp)
	if err := c.conn.Invoke(ctx, fullMethod(method), req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	return invoke[StatusResponse](ctx, c, "Status", &Empty{})
}

func (c *Client) Login(ctx context.Context, email, password string) (model.User, error) {
	resp, err := invoke[UserResponse](ctx, c, "Login", &LoginRequest{Email: email, Password: password})
	if err != nil {
		return model.User{}, err
	}
	return resp.User, nil
}

func (c *Client) Signup(ctx context.Context, fullName, email, password string) (model.User, error) {
	resp, err := invoke[UserResponse](ctx, c, "Signup", &SignupRequest{FullName: fullName, Email: email, Password: password})
	if err != nil {
		return model.User{}, err
	}
	return resp.User, nil
}

func (c *Client) Logout(ctx context.Context) error {
	_, err := invoke[Empty](ctx, c, "Logout", &Empty{})
	return err
}

func (c *Client) Chats(ctx context.Context, refresh bool) ([]model.Chat, error) {
	resp, err := invoke[ChatsResponse](ctx, c, "Chats", &ListRequest{Refresh: refresh})
	if err != nil {
		return nil, err
	}
	return resp.Chats, nil
}

func (c *Client) Groups(ctx context.Context, refresh bool) ([]model.Group, error) {
	resp, err := invoke[GroupsResponse](ctx, c, "Groups", &ListRequest{Refresh: refresh})
	if err != nil {
		return nil, err
	}
	return resp.Groups, nil
}

func (c *Client) Contacts(ctx context.Context, refresh bool) ([]model.Contact, error) {
	resp, err := invoke[ContactsResponse](ctx, c, "Contacts", &ListRequest{Refresh: refresh})
	if err != nil {
		return nil, err
	}
	return resp.Contacts, nil
}

func (c *Client) Open(ctx context.Context, ref model.PeerRef) (*OpenResponse, error) {
	return invoke[OpenResponse](ctx, c, "Open", &OpenRequest{Peer: ref})
}

// OpenLink opens the conversation a deep link points at.
func (c *Client) OpenLink(ctx context.Context, link string) (*OpenResponse, error) {
	return invoke[OpenResponse](ctx, c, "OpenLink", &OpenLinkRequest{Link: link})
}

// OpenPayload opens the conversation a push payload points at.
func (c *Client) OpenPayload(ctx context.Context, payload []byte) (*OpenResponse, error) {
	return invoke[OpenResponse](ctx, c, "OpenLink", &OpenLinkRequest{Payload: payload})
}

// Messages returns the open conversation. A non-nil ref opens it first.
func (c *Client) Messages(ctx context.Context, ref *model.PeerRef) (*MessagesResponse, error) {
	return invoke[MessagesResponse](ctx, c, "Messages", &MessagesRequest{Peer: ref})
}

func (c *Client) Send(ctx context.Context, req *SendRequest) (model.Message, error) {
	resp, err := invoke[MessageResponse](ctx, c, "Send", req)
	if err != nil {
		return model.Message{}, err
	}
	return resp.Message, nil
}

func (c *Client) Edit(ctx context.Context, ref model.PeerRef, id, text string) (model.Message, error) {
	resp, err := invoke[MessageResponse](ctx, c, "Edit", &EditRequest{Peer: ref, ID: id, Text: text})
	if err != nil {
		return model.Message{}, err
	}
	return resp.Message, nil
}

func (c *Client) Delete(ctx context.Context, ref model.PeerRef, id string, scope model.DeleteScope) error {
	_, err := invoke[Empty](ctx, c, "Delete", &DeleteRequest{Peer: ref, ID: id, Scope: scope})
	return err
}

func (c *Client) Star(ctx context.Context, ref model.PeerRef, id string) (bool, error) {
	resp, err := invoke[ToggleResponse](ctx, c, "Star", &ToggleRequest{Peer: ref, ID: id})
	if err != nil {
		return false, err
	}
	return resp.On, nil
}

func (c *Client) Pin(ctx context.Context, ref model.PeerRef, id string) (bool, error) {
	resp, err := invoke[ToggleResponse](ctx, c, "Pin", &ToggleRequest{Peer: ref, ID: id})
	if err != nil {
		return false, err
	}
	return resp.On, nil
}

func (c *Client) Forward(ctx context.Context, ids []string, recipients []model.PeerRef) (*BulkResponse, error) {
	return invoke[BulkResponse](ctx, c, "Forward", &ForwardRequest{IDs: ids, Recipients: recipients})
}

func (c *Client) Select(ctx context.Context, req *SelectRequest) (*SelectResponse, error) {
	return invoke[SelectResponse](ctx, c, "Select", req)
}

func (c *Client) BulkStar(ctx context.Context, ids []string) (*BulkResponse, error) {
	return invoke[BulkResponse](ctx, c, "BulkStar", &BulkRequest{IDs: ids})
}

func (c *Client) BulkDelete(ctx context.Context, ids []string, scope model.DeleteScope) (*BulkResponse, error) {
	return invoke[BulkResponse](ctx, c, "BulkDelete", &BulkRequest{IDs: ids, Scope: scope})
}

func (c *Client) BulkCopy(ctx context.Context, ids []string) (string, error) {
	resp, err := invoke[CopyResponse](ctx, c, "BulkCopy", &BulkRequest{IDs: ids})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (c *Client) CreateGroup(ctx context.Context, in api.GroupInput) (model.Group, error) {
	resp, err := invoke[GroupResponse](ctx, c, "CreateGroup", &GroupRequest{Input: in})
	if err != nil {
		return model.Group{}, err
	}
	return resp.Group, nil
}

func (c *Client) UpdateGroup(ctx context.Context, id string, in api.GroupInput) (model.Group, error) {
	resp, err := invoke[GroupResponse](ctx, c, "UpdateGroup", &GroupRequest{ID: id, Input: in})
	if err != nil {
		return model.Group{}, err
	}
	return resp.Group, nil
}

func (c *Client) AddMembers(ctx context.Context, groupID string, memberIDs []string) (model.Group, error) {
	resp, err := invoke[GroupResponse](ctx, c, "AddMembers", &MembersRequest{GroupID: groupID, MemberIDs: memberIDs})
	if err != nil {
		return model.Group{}, err
	}
	return resp.Group, nil
}

func (c *Client) RemoveMember(ctx context.Context, groupID, memberID string) error {
	_, err := invoke[Empty](ctx, c, "RemoveMember", &MemberRequest{GroupID: groupID, MemberID: memberID})
	return err
}

func (c *Client) PromoteAdmin(ctx context.Context, groupID, memberID string) error {
	_, err := invoke[Empty](ctx, c, "PromoteAdmin", &MemberRequest{GroupID: groupID, MemberID: memberID})
	return err
}

func (c *Client) LeaveGroup(ctx context.Context, groupID string) error {
	_, err := invoke[Empty](ctx, c, "LeaveGroup", &LeaveRequest{GroupID: groupID})
	return err
}

func (c *Client) Toasts(ctx context.Context) (*ToastsResponse, error) {
	return invoke[ToastsResponse](ctx, c, "Toasts", &Empty{})
}

func (c *Client) DismissToast(ctx context.Context, id string) error {
	_, err := invoke[Empty](ctx, c, "DismissToast", &DismissRequest{ID: id})
	return err
}

func (c *Client) Diagnostics(ctx context.Context, req *DiagnosticsRequest) (*DiagnosticsResponse, error) {
	return invoke[DiagnosticsResponse](ctx, c, "Diagnostics", req)
}

// Watch streams daemon events whose kind starts with prefix until ctx ends
// or the daemon goes away. fn runs on the calling goroutine.
func (c *Client) Watch(ctx context.Context, prefix string, fn func(WatchEvent)) error {
	stream, err := c.conn.NewStream(ctx, &serviceDesc.Streams[0], fullMethod("Watch"))
	if err != nil {
		return err
	}
	if err := stream.SendMsg(&WatchRequest{Prefix: prefix}); err != nil {
		return err
	}
	if err := stream.CloseSend(); err != nil {
		return err
	}
	for {
		var evt WatchEvent
		if err := stream.RecvMsg(&evt); err != nil {
			if errors.Is(err, io.EOF) || grpcstatus.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}
		fn(evt)
	}
}
