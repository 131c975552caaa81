/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package jeopardy

import "errors"

var (
	ErrUnknownEvent = errors.New("unknown event")
	ErrBadPayload   = errors.New("malformed event payload")
)

// ValidationError rejects a player's input. The replica is unchanged when
// one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}
