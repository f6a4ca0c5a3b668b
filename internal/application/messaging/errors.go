package messaging

import "errors"

var ErrUnauthenticated = errors.New("Not authenticated")

// errNoChange abandons an updater whose result would equal its input.
var errNoChange = errors.New("messaging: no change")
