package config

import "time"

// Scanner defaults.
const (
	DefaultScannerPattern      = ""
	DefaultScannerTopLevelFile = "<anonymous>"
	DefaultScannerMatchTimeout = time.Second
)

// Cache defaults.
const (
	DefaultCacheMaxEntries = 64
	DefaultCacheMaxSize    = "256MB"
)

// maxCacheBytes caps the cache byte bound (1 TiB).
const maxCacheBytes int64 = 1 << 40

// Index defaults.
const (
	DefaultIndexCompress = true
)

// Output defaults.
const (
	DefaultOutputFormat = FormatText
	DefaultOutputColor  = ColorAuto
)

// Logging defaults.
const (
	DefaultLoggingLevel = "info"
	DefaultLoggingJSON  = false
)

// Telemetry defaults.
const (
	DefaultTelemetryOTLPEndpoint = ""
	DefaultTelemetryOTLPInsecure = false
	DefaultTelemetrySampleRatio  = 0.0
	DefaultTelemetryMetricsAddr  = ""
)
