package telemetry

import (
	"sort"

	"go.uber.org/zap"

	"memberdesk/backend/internal/ports"
)

// LogTelemetry writes every recorded event as an info log entry.
type LogTelemetry struct {
	logger *zap.Logger
}

var _ ports.Telemetry = (*LogTelemetry)(nil)

func NewLogTelemetry(logger *zap.Logger) *LogTelemetry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogTelemetry{logger: logger.Named("telemetry")}
}

func (l *LogTelemetry) Record(name string, attributes map[string]string) {
	keys := make([]string, 0, len(attributes))
	for key := range attributes {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys)+1)
	fields = append(fields, zap.String("event", name))
	for _, key := range keys {
		fields = append(fields, zap.String(key, attributes[key]))
	}
	l.logger.Info("event recorded", fields...)
}
