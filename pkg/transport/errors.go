package transport

import "errors"

var (
	// ErrUnknownKind is returned for a transport name outside the closed set.
	ErrUnknownKind = errors.New("unknown transport kind")

	// ErrInvalidStream is returned when a connector yields no usable stream.
	// It is a configuration error for that server only.
	ErrInvalidStream = errors.New("transport produced no stream")

	// ErrConnectTimeout is returned when a stream does not come up within
	// the server's connection timeout.
	ErrConnectTimeout = errors.New("connection timed out")

	// ErrInvalidConfig is returned by ServerConfig.Validate.
	ErrInvalidConfig = errors.New("invalid server config")
)
