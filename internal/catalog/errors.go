package catalog

import "errors"

// ErrUnavailable marks transient catalog failures: connection errors,
// timeouts, and 5xx responses. Callers retry these.
var ErrUnavailable = errors.New("catalog unavailable")

// ErrSchema marks a catalog that is missing a referenced entity such as the
// configured data format or service backend. This is misconfiguration, not
// transience, and is never retried in place.
var ErrSchema = errors.New("catalog schema error")
