package httpapi

import "time"

// DefaultMaxUploadBytes bounds the multipart body of a verification request.
const DefaultMaxUploadBytes = 10 << 20

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address.
	Addr string `yaml:"addr" env:"CREDCHECK_SERVER_ADDR" validate:"required"`
	// MaxUploadBytes bounds the request body. Larger uploads get 413.
	MaxUploadBytes int64 `yaml:"max_upload_bytes" env:"CREDCHECK_SERVER_MAX_UPLOAD_BYTES" validate:"min=1024"`
	// UploadDir receives certificates while they are verified. Empty means
	// the system temporary directory.
	UploadDir string `yaml:"upload_dir" env:"CREDCHECK_SERVER_UPLOAD_DIR"`
	// RequestTimeout bounds one verification, extraction and inference
	// included.
	RequestTimeout time.Duration `yaml:"request_timeout" env:"CREDCHECK_SERVER_REQUEST_TIMEOUT" validate:"required,min=1s"`
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"required,min=1ms"`
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		MaxUploadBytes:  DefaultMaxUploadBytes,
		RequestTimeout:  2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
	}
}
