package backendtest

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/matheus3301/chatline/internal/model"
)

type authResponse struct {
	model.User
	Token string `json:"token"`
}

func (s *Server) login(c *gin.Context) {
	var body struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	s.mu.Lock()
	pw, ok := s.passwords[body.Email]
	var user model.User
	for _, u := range s.users {
		if u.Email == body.Email {
			user = u.User
		}
	}
	s.mu.Unlock()
	if !ok || pw != body.Password {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, authResponse{User: user, Token: s.Token(user.ID)})
}

func (s *Server) signup(c *gin.Context) {
	var body struct {
		FullName string `json:"fullName"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	s.mu.Lock()
	if _, taken := s.passwords[body.Email]; taken {
		s.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"message": "Email already exists"})
		return
	}
	id := s.nextIDLocked("u")
	user := model.User{ID: id, FullName: body.FullName, Email: body.Email}
	s.users[id] = model.Contact{User: user}
	s.passwords[body.Email] = body.Password
	s.mu.Unlock()
	c.JSON(http.StatusCreated, authResponse{User: user, Token: s.Token(id)})
}

func (s *Server) logout(c *gin.Context) {
	if tok, ok := bearerToken(c); ok {
		s.Revoke(tok)
	}
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

func (s *Server) check(c *gin.Context) {
	s.mu.Lock()
	u := s.users[userID(c)]
	s.mu.Unlock()
	c.JSON(http.StatusOK, u.User)
}

func (s *Server) contacts(c *gin.Context) {
	me := userID(c)
	s.mu.Lock()
	out := make([]model.Contact, 0, len(s.users))
	for id, u := range s.users {
		if id != me {
			out = append(out, u)
		}
	}
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b model.Contact) int { return strings.Compare(a.ID, b.ID) })
	c.JSON(http.StatusOK, out)
}

func (s *Server) chats(c *gin.Context) {
	me := userID(c)
	s.mu.Lock()
	last := make(map[string]model.Message)
	for _, id := range s.order {
		m := s.messages[id]
		if m.GroupID != "" || s.hidden[me][m.ID] {
			continue
		}
		var other string
		switch me {
		case m.SenderID:
			other = m.ReceiverID
		case m.ReceiverID:
			other = m.SenderID
		default:
			continue
		}
		last[other] = s.viewLocked(me, m)
	}
	out := make([]model.Chat, 0, len(last))
	for other, m := range last {
		lm := m
		out = append(out, model.Chat{Counterpart: s.users[other], LastMessage: &lm})
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) user(c *gin.Context) {
	s.mu.Lock()
	u, ok := s.users[c.Param("id")]
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	c.JSON(http.StatusOK, u)
}

func (s *Server) conversation(c *gin.Context) {
	me, other := userID(c), c.Param("id")
	s.mu.Lock()
	out := []model.Message{}
	for _, id := range s.order {
		m := s.messages[id]
		if m.GroupID != "" || s.hidden[me][m.ID] {
			continue
		}
		if (m.SenderID == me && m.ReceiverID == other) || (m.SenderID == other && m.ReceiverID == me) {
			out = append(out, s.viewLocked(me, m))
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

type outgoing struct {
	Text     string `json:"text"`
	Image    string `json:"image"`
	ReplyTo  string `json:"replyTo"`
	ClientID string `json:"clientId"`
}

func (s *Server) sendPrivate(c *gin.Context) {
	me, other := userID(c), c.Param("id")
	var body outgoing
	if err := c.ShouldBindJSON(&body); err != nil || (body.Text == "" && body.Image == "") {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Text or image is required"})
		return
	}
	s.mu.Lock()
	if _, ok := s.users[other]; !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"message": "User not found"})
		return
	}
	m := s.storeMessageLocked(model.Message{
		SenderID:   me,
		ReceiverID: other,
		Text:       body.Text,
		Image:      body.Image,
		ClientID:   body.ClientID,
		ReplyTo:    s.quoteLocked(body.ReplyTo),
	})
	s.mu.Unlock()
	s.broadcast([]string{other}, "", model.EvNewMessage, m)
	c.JSON(http.StatusCreated, m)
}

func (s *Server) editMessage(c *gin.Context) {
	me := userID(c)
	var body struct {
		Text string `json:"text"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Text == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Text is required"})
		return
	}
	s.mu.Lock()
	m, ok := s.messages[c.Param("id")]
	if !ok || m.SenderID != me {
		s.mu.Unlock()
		c.JSON(http.StatusForbidden, gin.H{"message": "You can only edit your own messages"})
		return
	}
	if m.DeletedForEveryone {
		s.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"message": "Message was deleted"})
		return
	}
	m.Text = body.Text
	m.Edited = true
	m.UpdatedAt = s.tickLocked()
	view := s.viewLocked(me, m)
	audience := s.audienceLocked(m)
	s.mu.Unlock()
	s.broadcast(audience, me, model.EvMessageUpdated, view)
	c.JSON(http.StatusOK, view)
}

func (s *Server) deleteMessage(c *gin.Context) {
	me := userID(c)
	scope := model.DeleteScope(c.DefaultQuery("scope", string(model.ScopeMe)))
	s.mu.Lock()
	m, ok := s.messages[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"message": "Message not found"})
		return
	}
	switch scope {
	case model.ScopeEveryone:
		if m.SenderID != me {
			s.mu.Unlock()
			c.JSON(http.StatusForbidden, gin.H{"message": "You can only delete your own messages for everyone"})
			return
		}
		m.Tombstone()
		m.UpdatedAt = s.tickLocked()
	case model.ScopeMe:
		if s.hidden[me] == nil {
			s.hidden[me] = make(map[string]bool)
		}
		s.hidden[me][m.ID] = true
	default:
		s.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid scope"})
		return
	}
	view := s.viewLocked(me, m)
	audience := s.audienceLocked(m)
	s.mu.Unlock()
	if scope == model.ScopeEveryone {
		s.broadcast(audience, me, model.EvMessageDeleted, model.MessageDeleted{
			MessageID:  view.ID,
			GroupID:    view.GroupID,
			SenderID:   view.SenderID,
			ReceiverID: view.ReceiverID,
			Scope:      model.ScopeEveryone,
			Revision:   view.Revision(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"message": view})
}

func (s *Server) toggleStar(c *gin.Context) {
	me := userID(c)
	s.mu.Lock()
	m, ok := s.messages[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"message": "Message not found"})
		return
	}
	if s.starred[me] == nil {
		s.starred[me] = make(map[string]bool)
	}
	if s.starred[me][m.ID] {
		delete(s.starred[me], m.ID)
	} else {
		s.starred[me][m.ID] = true
	}
	view := s.viewLocked(me, m)
	s.mu.Unlock()
	c.JSON(http.StatusOK, view)
}

func (s *Server) togglePin(c *gin.Context) {
	me := userID(c)
	s.mu.Lock()
	m, ok := s.messages[c.Param("id")]
	if !ok {
		s.mu.Unlock()
		c.JSON(http.StatusNotFound, gin.H{"message": "Message not found"})
		return
	}
	m.Pinned = !m.Pinned
	m.UpdatedAt = s.tickLocked()
	view := s.viewLocked(me, m)
	audience := s.audienceLocked(m)
	s.mu.Unlock()
	s.broadcast(audience, me, model.EvMessageUpdated, view)
	c.JSON(http.StatusOK, view)
}

func (s *Server) starredList(c *gin.Context) {
	me := userID(c)
	s.mu.Lock()
	out := []model.Message{}
	for _, id := range s.order {
		if s.starred[me][id] {
			out = append(out, s.viewLocked(me, s.messages[id]))
		}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, out)
}

func (s *Server) registerPush(c *gin.Context) {
	var body struct {
		Token    string `json:"token"`
		Platform string `json:"platform"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Token == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Token is required"})
		return
	}
	s.mu.Lock()
	s.push[userID(c)] = body.Token
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"success": true, "token": body.Token})
}

// viewLocked returns m as seen by userID.
func (s *Server) viewLocked(userID string, m *model.Message) model.Message {
	v := m.Clone()
	v.Starred = s.starred[userID][m.ID]
	v.HiddenForMe = s.hidden[userID][m.ID]
	return v
}

func (s *Server) audienceLocked(m *model.Message) []string {
	if m.GroupID != "" {
		if g, ok := s.groups[m.GroupID]; ok {
			return slices.Clone(g.Members)
		}
		return nil
	}
	return []string{m.SenderID, m.ReceiverID}
}

func (s *Server) quoteLocked(id string) *model.ReplyRef {
	if id == "" {
		return nil
	}
	if m, ok := s.messages[id]; ok {
		return m.Quote()
	}
	return nil
}

func bearerToken(c *gin.Context) (string, bool) {
	return strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
}
