package api

// Cache-Control header values.
const (
	CacheOneDayPrivate = "private, max-age=86400"
	CacheNoStore       = "no-store"
)

// Request body limits. Uploads are capped again by the book service.
const (
	MaxCoverSize  = 10 << 20
	MaxUploadSize = 200 << 20
)
