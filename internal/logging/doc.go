// Package logging configures a zap logger namespace with console and file sinks.
//
// A Configurator moves from unconfigured to configured exactly once unless a
// reconfiguration is forced. Loggers requested inside its namespace share the
// sinks attached at any point in time and trigger a default configuration
// when requested first. Package-level helpers operate on a process-wide
// configurator for the devtools namespace; the CLI owns its own instance.
package logging
