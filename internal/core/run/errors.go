package run

import "errors"

// Run errors
var (
	ErrRunNotFound      = errors.New("run not found")
	ErrRunNotTerminal   = errors.New("run has not reached a terminal status")
	ErrAlreadyTerminal  = errors.New("run already reached a terminal status")
	ErrCancelled        = errors.New("run cancelled")
	ErrSuspended        = errors.New("run suspended")
	ErrUnknownBinding   = errors.New("binding not found in scope")
	ErrSourceNotList    = errors.New("foreach source binding is not a list")
	ErrEngineFault      = errors.New("engine fault: internal invariant violated")
	ErrQuorumImpossible = errors.New("quorum can no longer be reached")
)
