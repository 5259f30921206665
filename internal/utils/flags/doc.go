// Package flags formats usage strings for Cobra flags that accept a fixed set of values.
package flags
