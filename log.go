package tiktok

import (
	"sync/atomic"

	"github.com/rs/zerolog"
)

var pkgLogger atomic.Pointer[zerolog.Logger]

func init() {
	nop := zerolog.Nop()
	pkgLogger.Store(&nop)
}

// SetLogger sets the logger used by the package. The default discards everything.
func SetLogger(l zerolog.Logger) {
	pkgLogger.Store(&l)
}

func logger() *zerolog.Logger {
	return pkgLogger.Load()
}

// perfLog records a timing line at debug level.
func perfLog(format string, args ...any) {
	logger().Debug().Str("kind", "perf").Msgf(format, args...)
}
