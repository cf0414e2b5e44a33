package types

const (
	ContextClaimsKey    = "claims"
	ContextRequestIDKey = "request_id"

	RequestIDHeader = "X-Request-ID"
)
