package redis

const (
	// KeyPrefix namespaces every key written by the service.
	KeyPrefix = "visits:"
	// DefaultCountKey holds the cached visit count snapshot.
	DefaultCountKey = KeyPrefix + "count"
)
