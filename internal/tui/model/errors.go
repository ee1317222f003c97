package model

import "errors"

var (
	errNoConversation = errors.New("no conversation is open")
	errNotGroup       = errors.New("the open conversation is not a group")
)
