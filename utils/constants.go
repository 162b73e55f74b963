package utils

import (
	"time"
)

// Context keys carried from HTTP/WebSocket handlers down into flows
type ContextKey string

const (
	RequestIDKey  ContextKey = "request_id"
	UserAgentKey  ContextKey = "user_agent"
	IPAddressKey  ContextKey = "ip_address"
	EndpointKey   ContextKey = "endpoint"
	TimeoutKey    ContextKey = "timeout"
	CancelFuncKey ContextKey = "cancel_func"
)

// Statistics time-range constants
const (
	// DefaultTimeRange is the window used when a client omits or sends an
	// unrecognized time range label
	DefaultTimeRange = "24 hours"
)

// WebSocket liveness constants
const (
	// ProbeInterval is how often the registry sweeps live connections
	ProbeInterval = 30 * time.Second

	// ProbeGrace is how long a probed connection has to acknowledge before
	// it is forcibly terminated
	ProbeGrace = 1 * time.Second
)

// Batch increment bounds
const (
	MaxBatchIncrementItems = 100
)
