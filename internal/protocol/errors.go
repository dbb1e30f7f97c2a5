package protocol

import "errors"

var (
	ErrReadFailed    = errors.New("protocol: read failed")
	ErrWriteFailed   = errors.New("protocol: write failed")
	ErrInvalidBuffer = errors.New("protocol: read buffer size must be positive")
)
