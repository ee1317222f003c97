// Package backendtest runs an in-memory chat backend for tests: the REST
// API under /api and the event socket under /ws. Tests seed it, inject
// failures per route, and inspect what the client sent.
package backendtest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"nhooyr.io/websocket"

	"github.com/matheus3301/chatline/internal/model"
)

const secret = "backendtest-secret"

// Envelope is the socket frame in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type failure struct {
	status  int
	message string
}

type socket struct {
	userID string
	conn   *websocket.Conn
}

// Server is the fake backend.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	users     map[string]model.Contact
	passwords map[string]string
	revoked   map[string]bool
	messages  map[string]*model.Message
	order     []string
	hidden    map[string]map[string]bool
	starred   map[string]map[string]bool
	groups    map[string]*model.Group
	events    map[string][]model.GroupEvent
	push      map[string]string
	requests  map[string]int
	failures  map[string]failure
	holds     map[string]chan struct{}
	sockets   map[*socket]struct{}
	received  []Envelope
	seq       int
	base      time.Time
}

// New starts a backend and stops it when the test ends.
func New(t testing.TB) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	s := &Server{
		users:     make(map[string]model.Contact),
		passwords: make(map[string]string),
		revoked:   make(map[string]bool),
		messages:  make(map[string]*model.Message),
		hidden:    make(map[string]map[string]bool),
		starred:   make(map[string]map[string]bool),
		groups:    make(map[string]*model.Group),
		events:    make(map[string][]model.GroupEvent),
		push:      make(map[string]string),
		requests:  make(map[string]int),
		failures:  make(map[string]failure),
		holds:     make(map[string]chan struct{}),
		sockets:   make(map[*socket]struct{}),
		base:      time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
	}
	s.Server = httptest.NewServer(s.router())
	t.Cleanup(s.Close)
	return s
}

// APIURL is the REST root.
func (s *Server) APIURL() string {
	return s.URL + "/api"
}

// SocketURL is the event socket address.
func (s *Server) SocketURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + "/ws"
}

// AddUser registers an account and returns it.
func (s *Server) AddUser(id, fullName, email, password string) model.Contact {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := model.Contact{User: model.User{ID: id, FullName: fullName, Email: email}}
	s.users[id] = c
	s.passwords[email] = password
	return c
}

// Token issues a signed token for userID.
func (s *Server) Token(userID string) string {
	return sign(userID, time.Now().Add(time.Hour))
}

// ExpiredToken issues a token whose exp has passed.
func (s *Server) ExpiredToken(userID string) string {
	return sign(userID, time.Now().Add(-time.Hour))
}

// Revoke makes tok fail authorization from now on.
func (s *Server) Revoke(tok string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revoked[tok] = true
}

// AddMessage stores a message, assigning id and times when missing.
func (s *Server) AddMessage(m model.Message) model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeMessageLocked(m)
}

// AddGroup stores a group.
func (s *Server) AddGroup(g model.Group) model.Group {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g.ID == "" {
		g.ID = s.nextIDLocked("g")
	}
	if g.UpdatedAt.IsZero() {
		g.UpdatedAt = s.tickLocked()
	}
	cp := g.Clone()
	s.groups[g.ID] = &cp
	return g
}

// GroupState returns the stored group.
func (s *Server) GroupState(id string) (model.Group, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[id]
	if !ok {
		return model.Group{}, false
	}
	return g.Clone(), true
}

// MessageState returns the stored message.
func (s *Server) MessageState(id string) (model.Message, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.messages[id]
	if !ok {
		return model.Message{}, false
	}
	return m.Clone(), true
}

// PushToken returns the device token registered by userID.
func (s *Server) PushToken(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.push[userID]
}

// Fail makes route answer status with message. route is the method and
// pattern, e.g. "POST /api/messages/send/:id". status 0 clears it.
func (s *Server) Fail(route string, status int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if status == 0 {
		delete(s.failures, route)
		return
	}
	s.failures[route] = failure{status: status, message: message}
}

// Hold blocks requests to route until the returned function is called.
func (s *Server) Hold(route string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.holds[route] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.holds, route)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Requests returns how many requests route has received.
func (s *Server) Requests(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[route]
}

// Received returns the envelopes clients sent over the socket.
func (s *Server) Received() []Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Envelope, len(s.received))
	copy(out, s.received)
	return out
}

// Connected returns how many sockets userID has open.
func (s *Server) Connected(userID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for sk := range s.sockets {
		if sk.userID == userID {
			n++
		}
	}
	return n
}

// Push sends an event to every socket of userID.
func (s *Server) Push(userID, event string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	var targets []*socket
	for sk := range s.sockets {
		if sk.userID == userID {
			targets = append(targets, sk)
		}
	}
	s.mu.Unlock()
	return s.write(targets, Envelope{Event: event, Data: raw})
}

func (s *Server) write(targets []*socket, env Envelope) error {
	frame, err := json.Marshal(env)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var firstErr error
	for _, sk := range targets {
		if err := sk.conn.Write(ctx, websocket.MessageText, frame); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Server) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/ws", s.handleSocket)

	api := r.Group("/api", s.intercept)
	api.POST("/auth/login", s.login)
	api.POST("/auth/signup", s.signup)

	authed := api.Group("", s.authenticate)
	authed.POST("/auth/logout", s.logout)
	authed.GET("/auth/check", s.check)
	authed.GET("/messages/users", s.contacts)
	authed.GET("/messages/chats", s.chats)
	authed.GET("/messages/starred", s.starredList)
	authed.GET("/messages/:id", s.conversation)
	authed.POST("/messages/send/:id", s.sendPrivate)
	authed.PUT("/messages/:id", s.editMessage)
	authed.DELETE("/messages/:id", s.deleteMessage)
	authed.POST("/messages/:id/star", s.toggleStar)
	authed.POST("/messages/:id/pin", s.togglePin)
	authed.GET("/users/:id", s.user)
	authed.GET("/groups", s.listGroups)
	authed.POST("/groups", s.createGroup)
	authed.GET("/groups/:id", s.getGroup)
	authed.PUT("/groups/:id", s.updateGroup)
	authed.GET("/groups/:id/messages", s.groupMessages)
	authed.POST("/groups/:id/messages", s.sendGroup)
	authed.POST("/groups/:id/members", s.addMembers)
	authed.DELETE("/groups/:id/members/:userId", s.removeMember)
	authed.POST("/groups/:id/admins", s.promote)
	authed.POST("/groups/:id/leave", s.leave)
	authed.POST("/notifications/token", s.registerPush)
	return r
}

// intercept counts the request and applies injected failures and holds.
func (s *Server) intercept(c *gin.Context) {
	route := c.Request.Method + " " + c.FullPath()
	s.mu.Lock()
	s.requests[route]++
	f, failing := s.failures[route]
	hold := s.holds[route]
	s.mu.Unlock()

	if hold != nil {
		select {
		case <-hold:
		case <-c.Request.Context().Done():
			c.Abort()
			return
		}
	}
	if failing {
		c.AbortWithStatusJSON(f.status, gin.H{"message": f.message})
		return
	}
	c.Next()
}

func (s *Server) authenticate(c *gin.Context) {
	userID, ok := s.bearer(c.GetHeader("Authorization"))
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - invalid token"})
		return
	}
	c.Set("userID", userID)
	c.Next()
}

func (s *Server) bearer(header string) (string, bool) {
	tok, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tok == "" {
		return "", false
	}
	s.mu.Lock()
	revoked := s.revoked[tok]
	s.mu.Unlock()
	if revoked {
		return "", false
	}
	parsed, err := jwt.Parse(tok, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !parsed.Valid {
		return "", false
	}
	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", false
	}
	s.mu.Lock()
	_, exists := s.users[sub]
	s.mu.Unlock()
	return sub, exists
}

func sign(userID string, exp time.Time) string {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": userID,
		"exp": exp.Unix(),
	})
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return signed
}

func (s *Server) handleSocket(c *gin.Context) {
	userID, ok := s.bearer(c.GetHeader("Authorization"))
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"message": "Unauthorized - invalid token"})
		return
	}
	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		return
	}
	sk := &socket{userID: userID, conn: conn}
	s.mu.Lock()
	s.sockets[sk] = struct{}{}
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.sockets, sk)
		s.mu.Unlock()
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}()

	ctx := c.Request.Context()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		var env Envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		s.relay(sk, env)
	}
}

// relay records a client frame and forwards group-scoped events to the
// other members' sockets.
func (s *Server) relay(from *socket, env Envelope) {
	var scope struct {
		GroupID string `json:"groupId"`
	}
	_ = json.Unmarshal(env.Data, &scope)

	s.mu.Lock()
	s.received = append(s.received, env)
	var targets []*socket
	if g, ok := s.groups[scope.GroupID]; ok {
		for sk := range s.sockets {
			if sk != from && g.HasMember(sk.userID) {
				targets = append(targets, sk)
			}
		}
	}
	s.mu.Unlock()
	_ = s.write(targets, env)
}

func (s *Server) broadcast(userIDs []string, except, event string, data any) {
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	s.mu.Lock()
	var targets []*socket
	for sk := range s.sockets {
		if sk.userID == except {
			continue
		}
		for _, id := range userIDs {
			if sk.userID == id {
				targets = append(targets, sk)
				break
			}
		}
	}
	s.mu.Unlock()
	_ = s.write(targets, Envelope{Event: event, Data: raw})
}

func (s *Server) tickLocked() time.Time {
	s.seq++
	return s.base.Add(time.Duration(s.seq) * time.Millisecond)
}

func (s *Server) nextIDLocked(prefix string) string {
	s.seq++
	return fmt.Sprintf("%s%d", prefix, s.seq)
}

func (s *Server) storeMessageLocked(m model.Message) model.Message {
	if m.ID == "" {
		m.ID = s.nextIDLocked("m")
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.tickLocked()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	if m.Status == "" {
		m.Status = model.StatusSent
	}
	m.Pending = false
	cp := m.Clone()
	if _, exists := s.messages[m.ID]; !exists {
		s.order = append(s.order, m.ID)
	}
	s.messages[m.ID] = &cp
	return m
}

func userID(c *gin.Context) string {
	return c.GetString("userID")
}
