package postgres

import "errors"

var (
	ErrNotConnected      = errors.New("postgres: pool is not connected")
	ErrConnectionClosed  = errors.New("postgres: pool is closed")
	ErrConnectionFailed  = errors.New("postgres: failed to connect")
	ErrHealthCheckFailed = errors.New("postgres: health check failed")
)
