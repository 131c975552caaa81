/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package rooms

import "errors"

var (
	ErrInvalidCode    = errors.New("invalid room code")
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrGameInProgress = errors.New("game already in progress")
	ErrCodeTaken      = errors.New("room code already in use")
	ErrInvalidStatus  = errors.New("invalid room status")
)
