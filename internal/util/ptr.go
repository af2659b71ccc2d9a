// Package util holds small helpers shared across packages.
package util

// Ptr returns a pointer to the given value. Handy for optional config and
// API fields.
func Ptr[T any](v T) *T {
	return &v
}
