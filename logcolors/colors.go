package logcolors

// ANSI color codes for log prefixes
const (
	Reset  = "\033[0m"
	Red    = "\033[31m"
	Green  = "\033[32m"
	Yellow = "\033[33m"
	Blue   = "\033[34m"
	Purple = "\033[35m"
	Cyan   = "\033[36m"
)

// Cache-related log prefixes
const (
	LogCacheInit    = Blue + "[Cache:Init]" + Reset
	LogCache        = Blue + "[Cache]" + Reset
	LogCacheExpire  = Cyan + "[Cache:Expire]" + Reset
	LogCacheCorrupt = Red + "[Cache:Corrupt]" + Reset
	LogCacheWrite   = Blue + "[Cache:Write]" + Reset
	LogCacheClear   = Blue + "[Cache:Clear]" + Reset
	LogCacheBackup  = Blue + "[Cache:Backup]" + Reset
)

// CachePrefix returns a colored prefix for a single cache category
func CachePrefix(category string) string {
	return Green + "[Cache:" + category + "]" + Reset
}

// Rate limiting log prefixes
const (
	LogRateLimit = Purple + "[RateLimit]" + Reset
	LogAuth      = Purple + "[Auth]" + Reset
)

// CircuitBreakerPrefix returns a colored circuit breaker prefix with the given name
func CircuitBreakerPrefix(name string) string {
	return Purple + "[CircuitBreaker:" + name + "]" + Reset
}

// Server/Init log prefixes
const (
	LogServer = Green + "[Server]" + Reset
	LogConfig = Cyan + "[Config]" + Reset
	LogStats  = Blue + "[Stats]" + Reset
	LogHTTP   = Cyan + "[HTTP]" + Reset
)

// Upstream and pipeline log prefixes
const (
	LogGenius    = Yellow + "[Genius]" + Reset
	LogSpotify   = Green + "[Spotify]" + Reset
	LogTranslate = Cyan + "[Translate]" + Reset
	LogReconcile = Purple + "[Reconcile]" + Reset
	LogAlbums    = Blue + "[Albums]" + Reset
	LogSongs     = Blue + "[Songs]" + Reset
	LogArtists   = Blue + "[Artists]" + Reset
	LogWarning   = Red + "[Warning]" + Reset
)
