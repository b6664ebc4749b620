package resilience

import apperrors "github.com/go-i2p/connpool/lib/errors"

// ErrCircuitOpen is returned when a call is rejected because the breaker is open.
// It aliases the central definition in lib/errors.
var ErrCircuitOpen = apperrors.ErrCircuitOpen
