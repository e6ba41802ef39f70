// Package logging adapts the standard library's structured logger to the
// orchestrator.Logger seam, the way the pack's gateway logs
// (slog.Info("call started", "session_id", ...) key/value pairs).
package logging

import (
	"log/slog"

	"github.com/smilecare/ivr-core/pkg/orchestrator"
)

// SlogLogger backs orchestrator.Logger with log/slog.
type SlogLogger struct {
	logger *slog.Logger
}

func NewSlogLogger(logger *slog.Logger) *SlogLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogLogger{logger: logger}
}

func (l *SlogLogger) Debug(msg string, args ...interface{}) { l.logger.Debug(msg, args...) }
func (l *SlogLogger) Info(msg string, args ...interface{})  { l.logger.Info(msg, args...) }
func (l *SlogLogger) Warn(msg string, args ...interface{})  { l.logger.Warn(msg, args...) }
func (l *SlogLogger) Error(msg string, args ...interface{}) { l.logger.Error(msg, args...) }

var _ orchestrator.Logger = (*SlogLogger)(nil)
