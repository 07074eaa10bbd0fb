package redis

import "errors"

var (
	ErrFailedToParseRedisConnString = errors.New("failed to parse redis connection string")
	ErrRedisNotReady                = errors.New("redis did not become ready")
	ErrHealthcheckFailed            = errors.New("redis healthcheck failed")
)
