package util

// FindFirst returns the first element of s matching predicate.
func FindFirst[T any](s []T, predicate func(T) bool) (T, bool) {
	for _, v := range s {
		if predicate(v) {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// Count returns how many elements of s match predicate.
func Count[T any](s []T, predicate func(T) bool) int {
	n := 0
	for _, v := range s {
		if predicate(v) {
			n++
		}
	}
	return n
}
