package engine

import "errors"

// Protocol violations surfaced to the beacon/result endpoints. Everything
// else the engine absorbs locally and exposes through status only.
var (
	ErrUnknownOperation = errors.New("engine: unknown operation")
	ErrUnknownAgent     = errors.New("engine: unknown agent")
	ErrUnknownLink      = errors.New("engine: unknown link")
	ErrWrongAgent       = errors.New("engine: link not owned by reporting agent")
	ErrLinkNotSent      = errors.New("engine: result for a link that was never dispatched")
	ErrNotRunning       = errors.New("engine: operation is not running")
)
