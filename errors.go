package ssache

import "errors"

// Wire-level and command errors. These map directly onto the
// "-ERROR ..." replies described by the protocol.
var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrNotANumber     = errors.New("the value is not a valid number")
	ErrMalformedFrame = errors.New("malformed frame")
	ErrWrongArity     = errors.New("wrong number of arguments")
	ErrClosed         = errors.New("connection closed")
)

// Errors returned by the push client used by the replicator and by
// operators/tests driving the wire protocol directly.
var ErrUnexpectedReply = errors.New("unexpected reply type")
