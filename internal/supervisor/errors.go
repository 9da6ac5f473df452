package supervisor

import "errors"

// ErrServiceUnavailable is returned when the daemon could not be brought to
// a running state after every start strategy was tried.
var ErrServiceUnavailable = errors.New("tor service unavailable: every start strategy failed")
