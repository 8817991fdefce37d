// Package aspect implements a concurrency-safe registry keyed by Go type.
//
// An aspect is any value stored under its own type: at most one *T lives in a
// Map at a time. Every unguarded function takes the map's lock for a single
// step. To compose several steps into one atomic unit, take the lock
// explicitly and use the Locked variants:
//
//	m.Do(func(g *aspect.Guard) {
//		if aspect.FindLocked[Counter](m, g) == nil {
//			aspect.InsertLocked(m, g, &Counter{})
//		}
//	})
//
// The lock is not reentrant. While a goroutine holds a Guard it must only use
// the Locked variants of this map, otherwise it deadlocks.
package aspect

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/turtacn/appkit/pkg/errors"
)

// Map stores one value per type.
type Map struct {
	mu      sync.Mutex
	entries map[reflect.Type]any
}

// Guard is proof that the caller holds a Map's lock.
type Guard struct {
	m    *Map
	held bool
}

// New creates an empty Map.
func New() *Map {
	return &Map{entries: make(map[reflect.Type]any)}
}

// Lock acquires the map lock and returns the guard for Locked operations.
func (m *Map) Lock() *Guard {
	m.mu.Lock()
	return &Guard{m: m, held: true}
}

// Unlock releases the lock. Unlocking twice is a logic error.
func (g *Guard) Unlock() {
	if g == nil || !g.held {
		panic(errors.Logic(errors.ErrCodeGuardMismatch, "Unlock", "guard does not hold a lock"))
	}
	g.held = false
	g.m.mu.Unlock()
}

// Do runs fn while holding the lock. The lock is released even if fn panics.
func (m *Map) Do(fn func(g *Guard)) {
	g := m.Lock()
	defer func() {
		if g.held {
			g.Unlock()
		}
	}()
	fn(g)
}

func (m *Map) check(g *Guard, op string) {
	if g == nil || g.m != m || !g.held {
		panic(errors.Logic(errors.ErrCodeGuardMismatch, op, "guard does not hold the lock of this aspect map"))
	}
}

func keyOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func (m *Map) get(k reflect.Type) (any, bool) {
	v, ok := m.entries[k]
	return v, ok
}

// Find returns the stored *T or nil.
func Find[T any](m *Map) *T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return find[T](m)
}

// FindLocked is Find for a caller that already holds g.
func FindLocked[T any](m *Map, g *Guard) *T {
	m.check(g, "Find")
	return find[T](m)
}

func find[T any](m *Map) *T {
	if v, ok := m.get(keyOf[T]()); ok {
		return v.(*T)
	}
	return nil
}

// Insert stores v only if no *T is present. It returns the value already
// present, which is left untouched, or nil when v was stored.
func Insert[T any](m *Map, v *T) *T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return insert(m, v)
}

// InsertLocked is Insert for a caller that already holds g.
func InsertLocked[T any](m *Map, g *Guard, v *T) *T {
	m.check(g, "Insert")
	return insert(m, v)
}

func insert[T any](m *Map, v *T) *T {
	mustValue(v, "Insert")
	if prev := find[T](m); prev != nil {
		return prev
	}
	m.entries[keyOf[T]()] = v
	return nil
}

// Exchange stores v unconditionally and returns the previous value, if any.
func Exchange[T any](m *Map, v *T) *T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return exchange(m, v)
}

// ExchangeLocked is Exchange for a caller that already holds g.
func ExchangeLocked[T any](m *Map, g *Guard, v *T) *T {
	m.check(g, "Exchange")
	return exchange(m, v)
}

func exchange[T any](m *Map, v *T) *T {
	mustValue(v, "Exchange")
	prev := find[T](m)
	m.entries[keyOf[T]()] = v
	return prev
}

// Erase removes the *T entry and returns it.
func Erase[T any](m *Map) *T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return erase[T](m)
}

// EraseLocked is Erase for a caller that already holds g.
func EraseLocked[T any](m *Map, g *Guard) *T {
	m.check(g, "Erase")
	return erase[T](m)
}

func erase[T any](m *Map) *T {
	prev := find[T](m)
	if prev != nil {
		delete(m.entries, keyOf[T]())
	}
	return prev
}

// Reduce behaves like Insert when no *T is present. Otherwise it stores
// combine(old, v) and returns old. combine runs under the map lock and must
// not touch the map.
func Reduce[T any](m *Map, v *T, combine func(old, v *T) *T) *T {
	m.mu.Lock()
	defer m.mu.Unlock()
	return reduce(m, v, combine)
}

// ReduceLocked is Reduce for a caller that already holds g.
func ReduceLocked[T any](m *Map, g *Guard, v *T, combine func(old, v *T) *T) *T {
	m.check(g, "Reduce")
	return reduce(m, v, combine)
}

func reduce[T any](m *Map, v *T, combine func(old, v *T) *T) *T {
	prev := find[T](m)
	if prev == nil {
		return insert(m, v)
	}
	next := combine(prev, v)
	mustValue(next, "Reduce")
	m.entries[keyOf[T]()] = next
	return prev
}

// Len returns the number of stored aspects.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// LenLocked is Len for a caller that already holds g.
func (m *Map) LenLocked(g *Guard) int {
	m.check(g, "Len")
	return len(m.entries)
}

// Empty reports whether nothing is stored.
func (m *Map) Empty() bool {
	return m.Len() == 0
}

// Clear removes every aspect.
func (m *Map) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[reflect.Type]any)
}

// ClearLocked is Clear for a caller that already holds g.
func (m *Map) ClearLocked(g *Guard) {
	m.check(g, "Clear")
	m.entries = make(map[reflect.Type]any)
}

// Types lists the stored aspect types, mostly for diagnostics.
func (m *Map) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k.String())
	}
	return out
}

func mustValue[T any](v *T, op string) {
	if v == nil {
		panic(errors.Logic(errors.ErrCodeNilAspect, op, fmt.Sprintf("nil *%s stored as aspect", keyOf[T]())))
	}
}

// Personal.AI order the ending
