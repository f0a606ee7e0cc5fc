package log

import (
	"go.elastic.co/apm/module/apmzap"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds the logger every binary shares. Development gets a
// human-readable console encoder; everything else emits JSON to
// stdout. The apmzap core annotates entries with trace ids whenever an
// APM server is configured through the usual ELASTIC_APM_* variables.
func New(service, environment string) (*zap.Logger, error) {
	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "ts"
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}
	cfg.OutputPaths = []string{"stdout"}
	cfg.ErrorOutputPaths = []string{"stderr"}

	logger, err := cfg.Build(zap.WrapCore((&apmzap.Core{}).WrapCore))
	if err != nil {
		return nil, err
	}
	return logger.Named(service), nil
}
