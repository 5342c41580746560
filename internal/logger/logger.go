package logger

import "go.uber.org/zap"

// New builds a development logger for local runs and a JSON production logger otherwise.
func New(appEnv string) (*zap.Logger, error) {
	if appEnv == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

func Must(appEnv string) *zap.Logger {
	return zap.Must(New(appEnv))
}
