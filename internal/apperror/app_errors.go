package apperror

import "errors"

var (
	ErrTransport         = errors.New("transport failure")
	ErrProtocolViolation = errors.New("protocol violation")
	ErrStrategy          = errors.New("strategy failure")
	ErrGameNotFound      = errors.New("game not found")
	ErrStateNotFound     = errors.New("game state not found")
	ErrSessionPanic      = errors.New("session panicked")
)
