package database

import "errors"

// ErrNotReady is returned by the readiness check while the pool cannot reach
// the server.
var ErrNotReady = errors.New("database not ready")
