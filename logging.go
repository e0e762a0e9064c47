package armenv

import (
	"io"

	"go.viam.com/rdk/logging"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger returns a console logger that also writes to logFile, rotated, when set.
// The returned closer flushes and closes the file.
func NewLogger(name, logFile string) (logging.Logger, io.Closer) {
	logger := logging.NewLogger(name)
	return logger, AttachLogFile(logger, logFile)
}

// AttachLogFile adds a rotated file appender to logger. An empty logFile is a no-op.
func AttachLogFile(logger logging.Logger, logFile string) io.Closer {
	if logFile == "" {
		return io.NopCloser(nil)
	}

	rotator := &lumberjack.Logger{
		Filename:   logFile,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	logger.AddAppender(logging.NewWriterAppender(rotator))
	return rotator
}
