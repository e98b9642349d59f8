// Package repository defines the reservation stores and the error values
// they share. These sentinel values allow higher layers such as the
// booking service to distinguish between failure scenarios without
// inspecting driver-specific errors. For example, ErrNotFound indicates
// that no active reservation occupies a slot.
package repository

import "errors"

// ErrNotFound is returned when no reservation matches the lookup.
var ErrNotFound = errors.New("reservation not found")
