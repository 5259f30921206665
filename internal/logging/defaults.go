package logging

import "go.uber.org/zap"

// DefaultNamespace is the logger namespace owned by the process-wide configurator.
const DefaultNamespace = "devtools"

var defaultConfigurator = NewConfigurator(DefaultNamespace)

// Default returns the process-wide configurator for DefaultNamespace.
func Default() *Configurator {
	return defaultConfigurator
}

// Configure applies options to the process-wide configurator.
func Configure(options Options) error {
	return defaultConfigurator.Configure(options)
}

// GetLogger returns a logger from the process-wide configurator.
func GetLogger(name string) *zap.Logger {
	return defaultConfigurator.Logger(name)
}

// CurrentConfig reports the state of the process-wide configurator.
func CurrentConfig() Snapshot {
	return defaultConfigurator.Snapshot()
}
