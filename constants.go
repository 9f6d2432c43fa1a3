package ctypes

// RFC 5424 severities; lower numbers are more urgent.
const (
	LOG_EMERG = iota
	LOG_ALERT
	LOG_CRIT
	LOG_ERR
	LOG_WARNING
	LOG_NOTICE
	LOG_INFO
	LOG_DEBUG
)

// Environment variables read by ApplyEnv.
const (
	envDebug    = "CTYPES_DEBUG"
	envLogJSON  = "CTYPES_LOG_JSON"
	envLogLevel = "CTYPES_LOG_LEVEL"
)
