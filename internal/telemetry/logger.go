package telemetry

import (
	"go.uber.org/zap"
)

// NewLogger builds the process-wide sugared logger. Release mode switches to
// the JSON production encoder.
func NewLogger(release bool) *zap.SugaredLogger {
	var logger *zap.Logger
	var err error
	if release {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		panic(err)
	}
	return logger.Sugar()
}
