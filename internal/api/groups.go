package api

import (
	"context"
	"net/http"

	"github.com/matheus3301/chatline/internal/model"
)

// GroupInput is the body of group creation and update.
type GroupInput struct {
	Name        string   `json:"name,omitempty"`
	Description string   `json:"description,omitempty"`
	Image       string   `json:"image,omitempty"`
	MemberIDs   []string `json:"members,omitempty"`
}

// GroupTimeline is a group's messages and server-authored events.
type GroupTimeline struct {
	Messages []model.Message    `json:"messages"`
	Events   []model.GroupEvent `json:"events"`
}

// Groups lists the groups the user belongs to.
func (c *Client) Groups(ctx context.Context) ([]model.Group, error) {
	return get[[]model.Group](ctx, c, "/groups", nil)
}

// Group fetches one group.
func (c *Client) Group(ctx context.Context, id string) (model.Group, error) {
	return get[model.Group](ctx, c, "/groups/"+seg(id), nil)
}

// CreateGroup creates a group with the user as admin.
func (c *Client) CreateGroup(ctx context.Context, in GroupInput) (model.Group, error) {
	return send[model.Group](ctx, c, http.MethodPost, "/groups", in)
}

// UpdateGroup changes a group's name, description or image.
func (c *Client) UpdateGroup(ctx context.Context, id string, in GroupInput) (model.Group, error) {
	return send[model.Group](ctx, c, http.MethodPut, "/groups/"+seg(id), in)
}

// GroupMessages lists a group's timeline.
func (c *Client) GroupMessages(ctx context.Context, id string) (GroupTimeline, error) {
	return get[GroupTimeline](ctx, c, "/groups/"+seg(id)+"/messages", nil)
}

// SendGroupMessage posts to a group.
func (c *Client) SendGroupMessage(ctx context.Context, id string, out Outgoing) (model.Message, error) {
	return send[model.Message](ctx, c, http.MethodPost, "/groups/"+seg(id)+"/messages", out)
}

// AddMembers adds users to a group and returns the updated group.
func (c *Client) AddMembers(ctx context.Context, id string, userIDs []string) (model.Group, error) {
	return send[model.Group](ctx, c, http.MethodPost, "/groups/"+seg(id)+"/members", map[string][]string{"memberIds": userIDs})
}

// RemoveMember removes a user from a group.
func (c *Client) RemoveMember(ctx context.Context, id, userID string) (model.Group, error) {
	return send[model.Group](ctx, c, http.MethodDelete, "/groups/"+seg(id)+"/members/"+seg(userID), nil)
}

// PromoteAdmin makes a member an admin.
func (c *Client) PromoteAdmin(ctx context.Context, id, userID string) (model.Group, error) {
	return send[model.Group](ctx, c, http.MethodPost, "/groups/"+seg(id)+"/admins", map[string]string{"userId": userID})
}

// LeaveGroup removes the user from a group.
func (c *Client) LeaveGroup(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodPost, path: "/groups/" + seg(id) + "/leave"}, nil)
}
