package config

const (
	DefaultServerBaseURL   = "http://localhost:8080"
	DefaultServerTimeoutMS = 10000

	DefaultServiceListen         = ":8080"
	DefaultCacheTTLSeconds       = 30
	DefaultIdempotencyTTLSeconds = 86400
)
