package constants

// Default classifier configuration values
const (
	// DefaultClassifierTimeoutSec is generous because the prediction service
	// may run model inference per request; a short timeout produces excessive
	// unflagged messages.
	DefaultClassifierTimeoutSec = 15
)

// Default store configuration values
const (
	DefaultReconnectDelaySec     = 2
	DefaultDatabaseRetryAttempts = 3
	DefaultRetryBackoffMs        = 1000
	DefaultMaxBackoffMs          = 60000
)

// Default server configuration values
const (
	DefaultServerPort           = 5000
	DefaultServerReadTimeoutSec = 15
	// Write timeout stays at zero for the server because the websocket
	// endpoint holds its response open for the connection lifetime.
	DefaultServerIdleTimeoutSec = 60
	DefaultGracefulShutdownSec  = 30
)

// Websocket limits
const (
	DefaultClientSendBuffer = 256
	DefaultWriteTimeoutSec  = 10
	DefaultMaxFrameBytes    = 64 * 1024
)
