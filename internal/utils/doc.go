// Package utils exposes reusable helpers consumed by multiple commands.
//
// It houses the Viper-backed ConfigurationLoader, the FlushingWriter used by
// console log sinks, and the ProcessRunner that launches external programs
// for the safe-exec command.
package utils
