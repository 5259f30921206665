// Package cli constructs the devtools command-line interface, wiring the
// Cobra command hierarchy, the Viper configuration loader, and the logging
// configurator that owns the devtools logger namespace.
package cli
