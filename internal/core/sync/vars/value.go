package vars

import (
	sc "sync"
	"sync/atomic"

	"github.com/zeusync/fairway/internal/core/sync"
)

var _ sync.Variable[int] = (*Value[int])(nil)

// Value is a mutex-guarded Variable. OnChange runs synchronously in the writer
// goroutine after the lock is released, so callbacks may read the value back.
type Value[T comparable] struct {
	mu       sc.RWMutex
	value    T
	onChange atomic.Pointer[func(old, new T)]
}

func NewValue[T comparable](initial T) *Value[T] {
	return &Value[T]{value: initial}
}

func (v *Value[T]) Get() T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.value
}

func (v *Value[T]) Set(newValue T) bool {
	_, changed := v.Update(func(T) T { return newValue })
	return changed
}

func (v *Value[T]) Update(fn func(T) T) (T, bool) {
	v.mu.Lock()
	oldValue := v.value
	newValue := fn(oldValue)
	if oldValue == newValue {
		v.mu.Unlock()
		return oldValue, false
	}
	v.value = newValue
	v.mu.Unlock()

	if onChangeFunc := v.onChange.Load(); onChangeFunc != nil {
		(*onChangeFunc)(oldValue, newValue)
	}
	return newValue, true
}

func (v *Value[T]) OnChange(fn func(oldValue, newValue T)) {
	v.onChange.Store(&fn)
}
