package sinks

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/hotspot-dashboard/internal/notify"
)

// LogSink writes each notice as a structured log line at a level matching the
// notice level.
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink wires a Zap logger to the sink interface.
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger}
}

// Consume logs every notice in the batch.
func (s *LogSink) Consume(_ context.Context, batch []notify.Notice) error {
	for _, n := range batch {
		fields := []zap.Field{
			zap.String("notice_id", n.ID),
			zap.String("key", n.Key),
			zap.String("level", string(n.Level)),
			zap.String("operation", n.Operation),
			zap.Time("ts", n.TS),
		}
		if n.Err != "" {
			fields = append(fields, zap.String("error", n.Err))
		}
		switch n.Level {
		case notify.LevelError:
			s.logger.Error(n.Message, fields...)
		case notify.LevelWarning:
			s.logger.Warn(n.Message, fields...)
		default:
			s.logger.Info(n.Message, fields...)
		}
	}
	return nil
}

// Close implements notify.Sink; it performs no action.
func (s *LogSink) Close(context.Context) error {
	return nil
}
