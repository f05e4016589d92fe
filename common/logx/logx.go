package logx

import (
	"fmt"
	"os"

	"github.com/narender/telemetry-pipeline/common/config"
	"github.com/sirupsen/logrus"
)

// Init configures the standard logrus logger from the loaded configuration
// and returns it. Level and format come from the config; the OTel bridge hook
// is attached separately once the log pipeline exists (see EnableOTelBridge).
func Init(cfg *config.Config) (*logrus.Logger, error) {
	logger := logrus.StandardLogger()

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to parse log level %q: %w", cfg.LogLevel, err)
	}
	logger.SetLevel(level)

	switch cfg.LogFormat {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	logger.SetOutput(os.Stderr)

	logger.WithFields(logrus.Fields{
		"level":  level.String(),
		"format": cfg.LogFormat,
	}).Info("Logger initialized")

	return logger, nil
}

// EnableOTelBridge attaches the hook that forwards log entries to the global
// OTel LoggerProvider. Call after the log pipeline has been initialized,
// otherwise entries go to a no-op provider.
func EnableOTelBridge(logger *logrus.Logger) {
	logger.AddHook(NewOTelHook())
	logger.Debug("OTel log bridge enabled")
}
