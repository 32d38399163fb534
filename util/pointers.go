package util

// Ptr returns a pointer to v.
func Ptr[T any](v T) *T {
	return &v
}

// Deref returns *p, or the zero value if p is nil.
func Deref[T any](p *T) T {
	if p != nil {
		return *p
	}
	var zero T
	return zero
}

// Or returns *p when set, otherwise fallback. Request overlays use it to
// tell an omitted field from an explicit zero.
func Or[T any](p *T, fallback T) T {
	if p != nil {
		return *p
	}
	return fallback
}

// SliceOr returns s unless it is nil.
func SliceOr[T any](s []T, fallback []T) []T {
	if s != nil {
		return s
	}
	return fallback
}
