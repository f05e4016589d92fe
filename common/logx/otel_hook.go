package logx

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	otellog "go.opentelemetry.io/otel/log"
	"go.opentelemetry.io/otel/log/global"
)

// OTelHook implements logrus.Hook and mirrors every log entry to the global
// OTel LoggerProvider, so structured logs reach the same collector as the
// pipeline's other signals.
type OTelHook struct{}

// NewOTelHook creates a new hook instance. It assumes the global OTel
// LoggerProvider has been set; before that, records go to the no-op provider.
func NewOTelHook() *OTelHook {
	return &OTelHook{}
}

// Levels returns the log levels this hook fires for.
func (h *OTelHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

// Fire converts the logrus entry into an OTel log record and emits it.
func (h *OTelHook) Fire(entry *logrus.Entry) error {
	ctx := entry.Context
	if ctx == nil {
		ctx = context.Background()
	}

	logger := global.GetLoggerProvider().Logger("github.com/narender/telemetry-pipeline/common/logx")

	record := otellog.Record{}
	record.SetTimestamp(entry.Time)
	record.SetObservedTimestamp(time.Now())
	record.SetSeverity(mapLogLevel(entry.Level))
	record.SetSeverityText(entry.Level.String())
	record.SetBody(otellog.StringValue(entry.Message))

	for k, v := range entry.Data {
		switch val := v.(type) {
		case string:
			record.AddAttributes(otellog.String(k, val))
		case int:
			record.AddAttributes(otellog.Int(k, val))
		case int64:
			record.AddAttributes(otellog.Int64(k, val))
		case float64:
			record.AddAttributes(otellog.Float64(k, val))
		case bool:
			record.AddAttributes(otellog.Bool(k, val))
		case error:
			record.AddAttributes(otellog.String(k, val.Error()))
		default:
			record.AddAttributes(otellog.String(k, fmt.Sprintf("%+v", val)))
		}
	}

	logger.Emit(ctx, record)
	return nil
}

// mapLogLevel converts a logrus level to an OTel severity number.
func mapLogLevel(level logrus.Level) otellog.Severity {
	switch level {
	case logrus.TraceLevel:
		return otellog.SeverityTrace
	case logrus.DebugLevel:
		return otellog.SeverityDebug
	case logrus.InfoLevel:
		return otellog.SeverityInfo
	case logrus.WarnLevel:
		return otellog.SeverityWarn
	case logrus.ErrorLevel:
		return otellog.SeverityError
	case logrus.FatalLevel, logrus.PanicLevel:
		return otellog.SeverityFatal
	default:
		return otellog.SeverityInfo
	}
}
