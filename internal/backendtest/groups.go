package backendtest

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/matheus3301/chatline/internal/model"
)

func (s *Server) listGroups(c *gin.Context) {
	me := userID(c)
	s.mu.Lock()
	out := []model.Group{}
	for _, g := range s.groups {
		if g.HasMember(me) {
			out = append(out, g.Clone())
		}
	}
	s.mu.Unlock()
	slices.SortFunc(out, func(a, b model.Group) int { return b.UpdatedAt.Compare(a.UpdatedAt) })
	c.JSON(http.StatusOK, out)
}

func (s *Server) createGroup(c *gin.Context) {
	me := userID(c)
	var body struct {
		Name        string   `json:"name"`
		Description string   `json:"description"`
		Image       string   `json:"image"`
		Members     []string `json:"members"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Group name is required"})
		return
	}
	s.mu.Lock()
	members := []string{me}
	for _, id := range body.Members {
		if _, ok := s.users[id]; ok && !slices.Contains(members, id) {
			members = append(members, id)
		}
	}
	g := &model.Group{
		ID:          s.nextIDLocked("g"),
		Name:        body.Name,
		Description: body.Description,
		Image:       body.Image,
		Members:     members,
		Admins:      []string{me},
		CreatedBy:   me,
		UpdatedAt:   s.tickLocked(),
	}
	s.groups[g.ID] = g
	ev := s.eventLocked(g.ID, model.GroupCreated, me, nil)
	out := g.Clone()
	s.mu.Unlock()
	s.broadcast(out.Members, me, model.EvGroupEvent, ev)
	c.JSON(http.StatusCreated, out)
}

// memberGroup loads the group and checks membership, writing the error
// response itself when it fails.
func (s *Server) memberGroup(c *gin.Context, admin bool) (*model.Group, bool) {
	me := userID(c)
	g, ok := s.groups[c.Param("id")]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"message": "Group not found"})
		return nil, false
	}
	if !g.HasMember(me) {
		c.JSON(http.StatusForbidden, gin.H{"message": "You are not a member of this group"})
		return nil, false
	}
	if admin && !g.IsAdmin(me) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Only admins can do that"})
		return nil, false
	}
	return g, true
}

func (s *Server) getGroup(c *gin.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.memberGroup(c, false)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, g.Clone())
}

func (s *Server) updateGroup(c *gin.Context) {
	me := userID(c)
	var body struct {
		Name        *string `json:"name"`
		Description *string `json:"description"`
		Image       *string `json:"image"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Invalid request body"})
		return
	}
	s.mu.Lock()
	g, ok := s.memberGroup(c, true)
	if !ok {
		s.mu.Unlock()
		return
	}
	if body.Name != nil && *body.Name != "" {
		g.Name = *body.Name
	}
	if body.Description != nil {
		g.Description = *body.Description
	}
	if body.Image != nil && *body.Image != "" {
		g.Image = *body.Image
	}
	g.UpdatedAt = s.tickLocked()
	ev := s.eventLocked(g.ID, model.GroupRenamed, me, nil)
	out := g.Clone()
	s.mu.Unlock()
	s.broadcast(out.Members, me, model.EvGroupUpdated, model.GroupUpdated{Group: out})
	s.broadcast(out.Members, "", model.EvGroupEvent, ev)
	c.JSON(http.StatusOK, out)
}

func (s *Server) groupMessages(c *gin.Context) {
	me := userID(c)
	s.mu.Lock()
	g, ok := s.memberGroup(c, false)
	if !ok {
		s.mu.Unlock()
		return
	}
	msgs := []model.Message{}
	for _, id := range s.order {
		m := s.messages[id]
		if m.GroupID == g.ID && !s.hidden[me][m.ID] {
			msgs = append(msgs, s.viewLocked(me, m))
		}
	}
	events := slices.Clone(s.events[g.ID])
	if events == nil {
		events = []model.GroupEvent{}
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"messages": msgs, "events": events})
}

func (s *Server) sendGroup(c *gin.Context) {
	me := userID(c)
	var body outgoing
	if err := c.ShouldBindJSON(&body); err != nil || (body.Text == "" && body.Image == "") {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Text or image is required"})
		return
	}
	s.mu.Lock()
	g, ok := s.memberGroup(c, false)
	if !ok {
		s.mu.Unlock()
		return
	}
	m := s.storeMessageLocked(model.Message{
		SenderID: me,
		GroupID:  g.ID,
		Text:     body.Text,
		Image:    body.Image,
		ClientID: body.ClientID,
		ReplyTo:  s.quoteLocked(body.ReplyTo),
	})
	members := slices.Clone(g.Members)
	s.mu.Unlock()
	s.broadcast(members, me, model.EvNewGroupMessage, m)
	c.JSON(http.StatusCreated, m)
}

func (s *Server) addMembers(c *gin.Context) {
	me := userID(c)
	var body struct {
		MemberIDs []string `json:"memberIds"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.MemberIDs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"message": "Select at least one member"})
		return
	}
	s.mu.Lock()
	g, ok := s.memberGroup(c, true)
	if !ok {
		s.mu.Unlock()
		return
	}
	var added []string
	for _, id := range body.MemberIDs {
		if _, known := s.users[id]; known && !g.HasMember(id) {
			g.Members = append(g.Members, id)
			added = append(added, id)
		}
	}
	g.UpdatedAt = s.tickLocked()
	ev := s.eventLocked(g.ID, model.MemberJoined, me, added)
	out := g.Clone()
	s.mu.Unlock()
	s.broadcast(out.Members, "", model.EvGroupEvent, ev)
	c.JSON(http.StatusOK, out)
}

func (s *Server) removeMember(c *gin.Context) {
	me, target := userID(c), c.Param("userId")
	s.mu.Lock()
	g, ok := s.memberGroup(c, true)
	if !ok {
		s.mu.Unlock()
		return
	}
	if !g.HasMember(target) {
		s.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"message": "User is not a member"})
		return
	}
	audience := slices.Clone(g.Members)
	dropMember(g, target)
	g.UpdatedAt = s.tickLocked()
	ev := s.eventLocked(g.ID, model.MemberKicked, me, []string{target})
	out := g.Clone()
	s.mu.Unlock()
	s.broadcast(audience, "", model.EvGroupEvent, ev)
	c.JSON(http.StatusOK, out)
}

func (s *Server) promote(c *gin.Context) {
	me := userID(c)
	var body struct {
		UserID string `json:"userId"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"message": "userId is required"})
		return
	}
	s.mu.Lock()
	g, ok := s.memberGroup(c, true)
	if !ok {
		s.mu.Unlock()
		return
	}
	if !g.HasMember(body.UserID) {
		s.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"message": "User is not a member"})
		return
	}
	if g.IsAdmin(body.UserID) {
		s.mu.Unlock()
		c.JSON(http.StatusBadRequest, gin.H{"message": "User is already an admin"})
		return
	}
	g.Admins = append(g.Admins, body.UserID)
	g.UpdatedAt = s.tickLocked()
	ev := s.eventLocked(g.ID, model.AdminPromoted, me, []string{body.UserID})
	out := g.Clone()
	s.mu.Unlock()
	s.broadcast(out.Members, "", model.EvGroupEvent, ev)
	c.JSON(http.StatusOK, out)
}

func (s *Server) leave(c *gin.Context) {
	me := userID(c)
	s.mu.Lock()
	g, ok := s.memberGroup(c, false)
	if !ok {
		s.mu.Unlock()
		return
	}
	dropMember(g, me)
	if len(g.Admins) == 0 && len(g.Members) > 0 {
		g.Admins = []string{g.Members[0]}
	}
	g.UpdatedAt = s.tickLocked()
	ev := s.eventLocked(g.ID, model.MemberLeft, me, []string{me})
	members := slices.Clone(g.Members)
	s.mu.Unlock()
	s.broadcast(members, "", model.EvGroupEvent, ev)
	c.JSON(http.StatusOK, gin.H{"message": "Left group"})
}

func (s *Server) eventLocked(groupID string, typ model.GroupEventType, actor string, targets []string) model.GroupEvent {
	ev := model.GroupEvent{
		ID:        s.nextIDLocked("e"),
		GroupID:   groupID,
		Type:      typ,
		ActorID:   actor,
		TargetIDs: targets,
		CreatedAt: s.tickLocked(),
	}
	s.events[groupID] = append(s.events[groupID], ev)
	return ev
}

func dropMember(g *model.Group, id string) {
	g.Members = slices.DeleteFunc(g.Members, func(m string) bool { return m == id })
	g.Admins = slices.DeleteFunc(g.Admins, func(m string) bool { return m == id })
}
