// Package control is the daemon's local API: gRPC over the profile's Unix
// socket, carrying JSON messages. Service implements it on top of the
// actions and view state; Client is the typed caller used by chatctl and
// the TUI.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	grpcstatus "google.golang.org/grpc/status"

	"github.com/matheus3301/chatline/internal/actions"
	"github.com/matheus3301/chatline/internal/api"
	"github.com/matheus3301/chatline/internal/bus"
	"github.com/matheus3301/chatline/internal/diag"
	"github.com/matheus3301/chatline/internal/logging"
	"github.com/matheus3301/chatline/internal/model"
	"github.com/matheus3301/chatline/internal/nav"
	"github.com/matheus3301/chatline/internal/notify"
	"github.com/matheus3301/chatline/internal/state"
	"github.com/matheus3301/chatline/internal/status"
	"github.com/matheus3301/chatline/internal/token"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chatline.v1.Control"

// SocketState reports the real-time connection state.
type SocketState interface {
	State() string
}

// SocketStateFunc adapts a function to SocketState.
type SocketStateFunc func() string

// State implements SocketState.
func (f SocketStateFunc) State() string { return f() }

// Deps are the collaborators of Service. Socket, Notify and Panel may be nil.
type Deps struct {
	Profile string
	Actions *actions.Actions
	Stores  *state.Stores
	Machine *status.Machine
	Router  *nav.Router
	Socket  SocketState
	Notify  *notify.Service
	Panel   *diag.Panel
	Bus     *bus.Bus
	Logger  *zap.Logger
}

// Service implements the control API.
type Service struct {
	d         Deps
	logger    *zap.Logger
	startedAt time.Time
	done      chan struct{}
	closeOnce sync.Once
}

// NewService creates the control service.
func NewService(d Deps) *Service {
	return &Service{
		d:         d,
		logger:    logging.OrNop(d.Logger).Named("control"),
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

// Close ends every open Watch stream so the server can stop gracefully.
func (s *Service) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

func (s *Service) isControlService() {}

// Register attaches svc to a gRPC server.
func Register(srv *grpc.Server, svc *Service) {
	srv.RegisterService(&serviceDesc, svc)
}

// controlServer is only satisfied by *Service.
type controlServer interface {
	isControlService()
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*controlServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Status", (*Service).status),
		unary("Login", (*Service).login),
		unary("Signup", (*Service).signup),
		unary("Logout", (*Service).logout),
		unary("Chats", (*Service).chats),
		unary("Groups", (*Service).groups),
		unary("Contacts", (*Service).contacts),
		unary("Open", (*Service).open),
		unary("OpenLink", (*Service).openLink),
		unary("Messages", (*Service).messages),
		unary("Send", (*Service).send),
		unary("Edit", (*Service).edit),
		unary("Delete", (*Service).deleteMessage),
		unary("Star", (*Service).star),
		unary("Pin", (*Service).pin),
		unary("Forward", (*Service).forward),
		unary("Select", (*Service).selectMessages),
		unary("BulkStar", (*Service).bulkStar),
		unary("BulkDelete", (*Service).bulkDelete),
		unary("BulkCopy", (*Service).bulkCopy),
		unary("CreateGroup", (*Service).createGroup),
		unary("UpdateGroup", (*Service).updateGroup),
		unary("AddMembers", (*Service).addMembers),
		unary("RemoveMember", (*Service).removeMember),
		unary("PromoteAdmin", (*Service).promoteAdmin),
		unary("LeaveGroup", (*Service).leaveGroup),
		unary("Toasts", (*Service).toasts),
		unary("DismissToast", (*Service).dismissToast),
		unary("Diagnostics", (*Service).diagnostics),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "Watch",
			Handler:       watchHandler,
			ServerStreams: true,
		},
	},
	Metadata: "chatline/v1/control",
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

// unary builds a method descriptor around a typed handler. Handler errors
// are converted to gRPC status errors.
func unary[Req, Resp any](name string, call func(*Service, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	invoke := func(srv any, ctx context.Context, req any) (any, error) {
		resp, err := call(srv.(*Service), ctx, req.(*Req))
		if err != nil {
			return nil, toStatus(err)
		}
		return resp, nil
	}
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			req := new(Req)
			if err := dec(req); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return invoke(srv, ctx, req)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, req, info, func(ctx context.Context, req any) (any, error) {
				return invoke(srv, ctx, req)
			})
		},
	}
}

// toStatus maps domain errors onto gRPC codes. The message is what a user
// should see.
func toStatus(err error) error {
	if _, ok := grpcstatus.FromError(err); ok {
		return err
	}
	var (
		verr   *actions.ValidationError
		apiErr *api.Error
	)
	switch {
	case errors.As(err, &verr):
		return grpcstatus.Error(codes.InvalidArgument, verr.Message)
	case errors.Is(err, api.ErrUnauthorized), errors.Is(err, token.ErrNoToken):
		return grpcstatus.Error(codes.Unauthenticated, "not signed in")
	case errors.Is(err, actions.ErrSignedIn):
		return grpcstatus.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, actions.ErrBusy):
		return grpcstatus.Error(codes.Aborted, err.Error())
	case errors.Is(err, actions.ErrNotFound), errors.Is(err, notify.ErrNoTarget), errors.Is(err, diag.ErrUnknownEntry):
		return grpcstatus.Error(codes.NotFound, err.Error())
	case errors.Is(err, actions.ErrNoConversation):
		return grpcstatus.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, context.Canceled):
		return grpcstatus.Error(codes.Canceled, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		return grpcstatus.Error(codes.DeadlineExceeded, err.Error())
	case errors.As(err, &apiErr):
		return grpcstatus.Error(httpCode(apiErr.Status), apiErr.Message)
	default:
		return grpcstatus.Error(codes.Unavailable, err.Error())
	}
}

func httpCode(status int) codes.Code {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return codes.InvalidArgument
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	}
	if status >= 500 {
		return codes.Unavailable
	}
	return codes.Unknown
}

func (s *Service) status(_ context.Context, _ *Empty) (*StatusResponse, error) {
	resp := &StatusResponse{
		Profile:  s.d.Profile,
		State:    string(s.d.Machine.Current()),
		Route:    string(s.d.Router.Current()),
		UptimeMs: time.Since(s.startedAt).Milliseconds(),
	}
	if s.d.Socket != nil {
		resp.Socket = s.d.Socket.State()
	}
	if u, ok := s.d.Stores.Auth.User(); ok {
		resp.User = &u
	}
	if ref, ok := s.d.Stores.Selection.ActiveRef(); ok {
		resp.Active = &ref
	}
	return resp, nil
}

func (s *Service) login(ctx context.Context, req *LoginRequest) (*UserResponse, error) {
	u, err := s.d.Actions.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return &UserResponse{User: u}, nil
}

func (s *Service) signup(ctx context.Context, req *SignupRequest) (*UserResponse, error) {
	u, err := s.d.Actions.Signup(ctx, req.FullName, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	return &UserResponse{User: u}, nil
}

func (s *Service) logout(ctx context.Context, _ *Empty) (*Empty, error) {
	return &Empty{}, s.d.Actions.Logout(ctx)
}

func (s *Service) chats(ctx context.Context, req *ListRequest) (*ChatsResponse, error) {
	if req.Refresh {
		if err := s.d.Actions.LoadChats(ctx); err != nil {
			return nil, err
		}
	}
	return &ChatsResponse{Chats: s.d.Stores.Chats.Chats()}, nil
}

func (s *Service) groups(ctx context.Context, req *ListRequest) (*GroupsResponse, error) {
	if req.Refresh {
		if err := s.d.Actions.LoadGroups(ctx); err != nil {
			return nil, err
		}
	}
	return &GroupsResponse{Groups: s.d.Stores.Groups.Groups()}, nil
}

func (s *Service) contacts(ctx context.Context, req *ListRequest) (*ContactsResponse, error) {
	if req.Refresh {
		if err := s.d.Actions.LoadContacts(ctx); err != nil {
			return nil, err
		}
	}
	return &ContactsResponse{Contacts: s.d.Stores.Chats.Contacts()}, nil
}

func (s *Service) open(ctx context.Context, req *OpenRequest) (*OpenResponse, error) {
	p, err := s.d.Actions.OpenChatByID(ctx, req.Peer.Kind, req.Peer.ID)
	if err != nil {
		return nil, err
	}
	if err := s.d.Actions.LoadMessages(ctx, p.Ref()); err != nil {
		return nil, err
	}
	return &OpenResponse{Peer: p.Ref(), Name: p.DisplayName()}, nil
}

func (s *Service) openLink(ctx context.Context, req *OpenLinkRequest) (*OpenResponse, error) {
	if s.d.Notify == nil {
		return nil, grpcstatus.Error(codes.Unimplemented, "notifications are not configured")
	}
	var (
		p   model.Peer
		err error
	)
	if len(req.Payload) > 0 {
		p, err = s.d.Notify.OpenPayload(ctx, req.Payload)
	} else {
		p, err = s.d.Notify.OpenLink(ctx, req.Link)
	}
	if err != nil {
		return nil, err
	}
	return &OpenResponse{Peer: p.Ref(), Name: p.DisplayName()}, nil
}

func (s *Service) messages(ctx context.Context, req *MessagesRequest) (*MessagesResponse, error) {
	sel := s.d.Stores.Selection
	if req.Peer != nil {
		if cur, ok := sel.ActiveRef(); !ok || cur != *req.Peer {
			if _, err := s.open(ctx, &OpenRequest{Peer: *req.Peer}); err != nil {
				return nil, err
			}
		}
	}
	p, ok := sel.Active()
	if !ok {
		return &MessagesResponse{}, nil
	}
	ref := p.Ref()

	var items []model.TimelineItem
	switch ref.Kind {
	case model.KindUser:
		if s.d.Stores.Chats.OpenID() != ref.ID {
			if err := s.d.Actions.LoadMessages(ctx, ref); err != nil {
				return nil, err
			}
		}
		items = s.d.Stores.Chats.Timeline()
	case model.KindGroup:
		if s.d.Stores.Groups.OpenID() != ref.ID {
			if err := s.d.Actions.LoadMessages(ctx, ref); err != nil {
				return nil, err
			}
		}
		items = s.d.Stores.Groups.Timeline()
	}

	draft, err := s.d.Actions.Draft(ref)
	if err != nil {
		s.logger.Warn("read draft", zap.String("peer", ref.String()), zap.Error(err))
	}
	return &MessagesResponse{
		Peer:     &ref,
		Name:     p.DisplayName(),
		Items:    items,
		Pinned:   s.d.Stores.Pins.Pinned(ref),
		Selected: sel.Selected(),
		Bulk:     sel.Bulk(),
		Draft:    draft,
	}, nil
}

func (s *Service) send(ctx context.Context, req *SendRequest) (*MessageResponse, error) {
	m, err := s.d.Actions.Send(ctx, req.Peer, actions.Compose{Text: req.Text, Image: req.Image, ReplyTo: req.ReplyTo})
	if err != nil {
		return nil, err
	}
	return &MessageResponse{Message: m}, nil
}

func (s *Service) edit(ctx context.Context, req *EditRequest) (*MessageResponse, error) {
	m, err := s.d.Actions.Edit(ctx, req.Peer, req.ID, req.Text)
	if err != nil {
		return nil, err
	}
	return &MessageResponse{Message: m}, nil
}

func (s *Service) deleteMessage(ctx context.Context, req *DeleteRequest) (*Empty, error) {
	scope := req.Scope
	if scope == "" {
		scope = model.ScopeMe
	}
	return &Empty{}, s.d.Actions.Delete(ctx, req.Peer, req.ID, scope)
}

func (s *Service) star(ctx context.Context, req *ToggleRequest) (*ToggleResponse, error) {
	on, err := s.d.Actions.ToggleStar(ctx, req.Peer, req.ID)
	if err != nil {
		return nil, err
	}
	return &ToggleResponse{On: on}, nil
}

func (s *Service) pin(ctx context.Context, req *ToggleRequest) (*ToggleResponse, error) {
	on, err := s.d.Actions.TogglePin(ctx, req.Peer, req.ID)
	if err != nil {
		return nil, err
	}
	return &ToggleResponse{On: on}, nil
}

func (s *Service) forward(ctx context.Context, req *ForwardRequest) (*BulkResponse, error) {
	res, err := s.d.Actions.Forward(ctx, req.IDs, req.Recipients)
	if err != nil {
		return nil, err
	}
	return &BulkResponse{Done: res.Done, Failed: res.Failed}, nil
}

func (s *Service) selectMessages(_ context.Context, req *SelectRequest) (*SelectResponse, error) {
	sel := s.d.Stores.Selection
	if req.Clear {
		sel.Clear()
	}
	if req.Bulk != nil {
		sel.SetBulk(*req.Bulk)
	}
	for _, id := range req.Toggle {
		sel.Toggle(id)
	}
	return &SelectResponse{Selected: sel.Selected(), Bulk: sel.Bulk()}, nil
}

func (s *Service) bulkStar(ctx context.Context, req *BulkRequest) (*BulkResponse, error) {
	res, err := s.d.Actions.BulkStar(ctx, req.IDs)
	if err != nil {
		return nil, err
	}
	return &BulkResponse{Done: res.Done, Failed: res.Failed}, nil
}

func (s *Service) bulkDelete(ctx context.Context, req *BulkRequest) (*BulkResponse, error) {
	scope := req.Scope
	if scope == "" {
		scope = model.ScopeMe
	}
	res, err := s.d.Actions.BulkDelete(ctx, req.IDs, scope)
	if err != nil {
		return nil, err
	}
	return &BulkResponse{Done: res.Done, Failed: res.Failed}, nil
}

func (s *Service) bulkCopy(_ context.Context, req *BulkRequest) (*CopyResponse, error) {
	text, err := s.d.Actions.BulkCopy(req.IDs)
	if err != nil {
		return nil, err
	}
	return &CopyResponse{Text: text}, nil
}

func (s *Service) createGroup(ctx context.Context, req *GroupRequest) (*GroupResponse, error) {
	g, err := s.d.Actions.CreateGroup(ctx, req.Input)
	if err != nil {
		return nil, err
	}
	return &GroupResponse{Group: g}, nil
}

func (s *Service) updateGroup(ctx context.Context, req *GroupRequest) (*GroupResponse, error) {
	g, err := s.d.Actions.UpdateGroup(ctx, req.ID, req.Input)
	if err != nil {
		return nil, err
	}
	return &GroupResponse{Group: g}, nil
}

func (s *Service) addMembers(ctx context.Context, req *MembersRequest) (*GroupResponse, error) {
	g, err := s.d.Actions.AddMembers(ctx, req.GroupID, req.MemberIDs)
	if err != nil {
		return nil, err
	}
	return &GroupResponse{Group: g}, nil
}

func (s *Service) removeMember(ctx context.Context, req *MemberRequest) (*Empty, error) {
	return &Empty{}, s.d.Actions.RemoveMember(ctx, req.GroupID, req.MemberID)
}

func (s *Service) promoteAdmin(ctx context.Context, req *MemberRequest) (*Empty, error) {
	return &Empty{}, s.d.Actions.PromoteAdmin(ctx, req.GroupID, req.MemberID)
}

func (s *Service) leaveGroup(ctx context.Context, req *LeaveRequest) (*Empty, error) {
	return &Empty{}, s.d.Actions.LeaveGroup(ctx, req.GroupID)
}

func (s *Service) toasts(_ context.Context, _ *Empty) (*ToastsResponse, error) {
	return &ToastsResponse{Toasts: s.d.Stores.Toasts.Active()}, nil
}

func (s *Service) dismissToast(_ context.Context, req *DismissRequest) (*Empty, error) {
	if !s.d.Stores.Toasts.Dismiss(req.ID) {
		return nil, grpcstatus.Errorf(codes.NotFound, "no toast %q", req.ID)
	}
	return &Empty{}, nil
}

func (s *Service) diagnostics(_ context.Context, req *DiagnosticsRequest) (*DiagnosticsResponse, error) {
	if s.d.Panel == nil {
		return &DiagnosticsResponse{}, nil
	}
	switch {
	case req.DismissAll:
		_ = s.d.Panel.Dismiss("")
	case req.Dismiss != "":
		if err := s.d.Panel.Dismiss(req.Dismiss); err != nil {
			return nil, err
		}
	}
	return &DiagnosticsResponse{Entries: s.d.Panel.Entries()}, nil
}

func watchHandler(srv any, stream grpc.ServerStream) error {
	req := new(WatchRequest)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(*Service).watch(req, stream)
}

func (s *Service) watch(req *WatchRequest, stream grpc.ServerStream) error {
	ch, unsub := s.d.Bus.Subscribe(req.Prefix, 256)
	defer unsub()

	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			payload, err := json.Marshal(evt.Payload)
			if err != nil {
				s.logger.Debug("skip unencodable event", zap.String("kind", evt.Kind), zap.Error(err))
				payload = nil
			}
			if err := stream.SendMsg(&WatchEvent{Kind: evt.Kind, At: evt.Timestamp, Payload: payload}); err != nil {
				return err
			}
		case <-stream.Context().Done():
			return nil
		case <-s.done:
			return nil
		}
	}
}
