package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/matheus3301/chatline/internal/model"
)

// Outgoing is the body of a new message.
type Outgoing struct {
	Text     string `json:"text,omitempty"`
	Image    string `json:"image,omitempty"`
	ReplyTo  string `json:"replyTo,omitempty"`
	ClientID string `json:"clientId,omitempty"`
}

// Contacts lists the users available to chat with.
func (c *Client) Contacts(ctx context.Context) ([]model.Contact, error) {
	return get[[]model.Contact](ctx, c, "/messages/users", nil)
}

// Chats lists the private conversations.
func (c *Client) Chats(ctx context.Context) ([]model.Chat, error) {
	return get[[]model.Chat](ctx, c, "/messages/chats", nil)
}

// User fetches one user.
func (c *Client) User(ctx context.Context, id string) (model.Contact, error) {
	return get[model.Contact](ctx, c, "/users/"+seg(id), nil)
}

// Messages lists the private messages exchanged with a user.
func (c *Client) Messages(ctx context.Context, userID string) ([]model.Message, error) {
	return get[[]model.Message](ctx, c, "/messages/"+seg(userID), nil)
}

// SendMessage sends a private message.
func (c *Client) SendMessage(ctx context.Context, userID string, out Outgoing) (model.Message, error) {
	return send[model.Message](ctx, c, http.MethodPost, "/messages/send/"+seg(userID), out)
}

// EditMessage replaces a message's text.
func (c *Client) EditMessage(ctx context.Context, id, text string) (model.Message, error) {
	return send[model.Message](ctx, c, http.MethodPut, "/messages/"+seg(id), map[string]string{"text": text})
}

// DeleteMessage deletes a message for the user or for everyone. The server
// may answer with the tombstoned record or with nothing.
func (c *Client) DeleteMessage(ctx context.Context, id string, scope model.DeleteScope) (*model.Message, error) {
	var out struct {
		Message *model.Message `json:"message"`
	}
	err := c.do(ctx, request{
		method: http.MethodDelete,
		path:   "/messages/" + seg(id),
		query:  url.Values{"scope": {string(scope)}},
	}, &out)
	return out.Message, err
}

// ToggleStar flips the starred flag and returns the updated message.
func (c *Client) ToggleStar(ctx context.Context, id string) (model.Message, error) {
	return send[model.Message](ctx, c, http.MethodPost, "/messages/"+seg(id)+"/star", nil)
}

// TogglePin flips the pinned flag and returns the updated message.
func (c *Client) TogglePin(ctx context.Context, id string) (model.Message, error) {
	return send[model.Message](ctx, c, http.MethodPost, "/messages/"+seg(id)+"/pin", nil)
}

// Starred lists the user's starred messages.
func (c *Client) Starred(ctx context.Context) ([]model.Message, error) {
	return get[[]model.Message](ctx, c, "/messages/starred", nil)
}
