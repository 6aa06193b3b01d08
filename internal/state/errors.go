package state

import "errors"

var (
	ErrConnectionExists   = errors.New("connection already registered")
	ErrConnectionNotFound = errors.New("connection not found")
	ErrChannelNotFound    = errors.New("channel not found")
	ErrIdentityNotSet     = errors.New("identity not set")
)
