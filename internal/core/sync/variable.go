package sync

// Variable is an observable value. Writes equal to the current value are
// dropped and never reach OnChange.
type Variable[T comparable] interface {
	Get() T
	// Set stores v and reports whether it differed from the current value.
	Set(v T) bool
	// Update applies fn to the current value atomically.
	Update(fn func(T) T) (T, bool)

	OnChange(func(oldValue, newValue T))
}
