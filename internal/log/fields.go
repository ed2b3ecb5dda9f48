package log

// Canonical field names.
const (
	FieldComponent = "component"
	FieldDateKey   = "date_key"
	FieldMovieID   = "movie_id"
	FieldCacheKey  = "cache_key"
	FieldAttempt   = "attempt"
	FieldStatus    = "status"
)
