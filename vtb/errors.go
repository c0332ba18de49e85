package vtb

import "errors"

// ErrLoginTimeout is returned when the login flow did not reach the
// transaction list within its wall-clock budget. Recoverable by retry.
var ErrLoginTimeout = errors.New("vtb: login did not complete within budget")

// ErrSessionFailure is returned when the portal's fatal session banner
// appears mid-collection. The page has been renavigated, so no partial
// progress from the aborted pass is salvageable; the caller should run
// the login flow again and restart collection.
var ErrSessionFailure = errors.New("vtb: session failure banner during collection")
