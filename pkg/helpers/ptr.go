package helpers

// Ptr lifts a value to a pointer, for optional fields built inline.
func Ptr[T any](value T) *T {
	return &value
}
