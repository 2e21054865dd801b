package core

import "errors"

var (
	// ErrInvalidArgument is returned for a negative or out-of-range delay or
	// period, or an unparsable cron spec. Nothing has been armed when it is
	// returned.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrLoopClosed is returned by EventLoop.WaitIdle once the loop is shut down.
	ErrLoopClosed = errors.New("event loop is closed")
)
