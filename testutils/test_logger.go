package testutils

import (
	"io"

	"go.uber.org/zap/zapcore"

	"github.com/studygarden/memquiz/pkg/logging"
)

// NewTestLogger creates a debug-level logger that discards output, so every
// log call in the code under test is still exercised.
func NewTestLogger() logging.Logger {
	return logging.InitLogger("debug", "dev", zapcore.AddSync(io.Discard))
}
