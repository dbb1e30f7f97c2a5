package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogger tags the process-wide logger with the node identity. The
// writer, level and timestamp handling stay whatever the logging
// profile configured.
func InitLogger(node string) zerolog.Logger {
	logger := log.Logger.With().Str("node", node).Logger()
	log.Logger = logger
	return logger
}
