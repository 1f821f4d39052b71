package xplorer

import "errors"

// Sentinel errors shared across transports.
var (
	// ErrFrameTooLarge is returned when a P2P frame's declared length is
	// zero or exceeds maxFrameSize.
	ErrFrameTooLarge = errors.New("xplorer: frame exceeds maximum size")

	// ErrMalformedFrame covers any P2P frame that fails to parse as the
	// expected JSON envelope after successful framing.
	ErrMalformedFrame = errors.New("xplorer: malformed frame")
)
