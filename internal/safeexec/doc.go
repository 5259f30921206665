// Package safeexec runs functions inside a timed fault boundary and reports a
// uniform success or failure payload instead of propagating errors or panics.
package safeexec
