package types

import "github.com/m-mizutani/goerr/v2"

// Sentinel error kinds for dependency failures. Both are connection-class
// conditions: callers match them with errors.Is to decide whether to degrade
// rather than fail.
var (
	// ErrStoreUnavailable indicates the vector store is unreachable or
	// timed out. MemoryManager catches it, retries once, and then switches
	// to the fallback store for the remainder of the process.
	ErrStoreUnavailable = goerr.New("vector store unavailable")

	// ErrModelUnavailable indicates the model service is unreachable or
	// timed out. The model client converts it to canned content when
	// fallback mode is enabled; otherwise it surfaces to the orchestrator.
	ErrModelUnavailable = goerr.New("model service unavailable")
)
