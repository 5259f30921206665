// Package version parses semantic versions declared in project manifests and
// rewrites them after incrementing a single segment.
//
// A Bumper serializes concurrent rewrites of the same manifest through an
// advisory file lock and replaces the manifest atomically.
package version
