package types

type RunMode string

const (
	// ModeLocal runs the API server and the daily scheduler in one process
	ModeLocal RunMode = "local"
	// ModeAPI runs just the API server, the daily check is triggered over HTTP
	ModeAPI RunMode = "api"
	// ModeScheduler runs just the in-process cron scheduler
	ModeScheduler RunMode = "scheduler"
)

type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

// LockBackend selects the implementation used to serialise the daily check
type LockBackend string

const (
	LockBackendMemory LockBackend = "memory"
	LockBackendRedis  LockBackend = "redis"
)
