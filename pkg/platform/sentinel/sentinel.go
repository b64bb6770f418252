package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Session backends and transport
// helpers return these (optionally wrapped) so callers can branch with errors.Is
// without depending on a concrete driver.
//
//   - ErrNotFound: nothing persisted under the requested key
//   - ErrExpired: a token's expiry has passed
//   - ErrUnavailable: backend or remote service temporarily unavailable
//   - ErrCorrupt: persisted data could not be decoded or unsealed
var (
	ErrNotFound    = errors.New("not found")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
	ErrCorrupt     = errors.New("corrupt")
	ErrInvalid     = errors.New("invalid")
)
