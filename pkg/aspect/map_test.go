package aspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/appkit/pkg/errors"
	"golang.org/x/sync/errgroup"
)

type name struct{ v string }
type counter struct{ n int }

func concat(old, v *name) *name { return &name{v: old.v + v.v} }

func requireLogicPanic(t *testing.T, code errors.ErrorCode, fn func()) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected a logic error panic")
		err, ok := r.(*errors.Error)
		require.True(t, ok, "panic value %v is not *errors.Error", r)
		assert.True(t, errors.IsLogic(err))
		assert.Equal(t, code, err.Code)
	}()
	fn()
}

func TestInsert_NeverOverwrites(t *testing.T) {
	m := New()
	first := &name{v: "first"}

	assert.Nil(t, Insert(m, first))
	prev := Insert(m, &name{v: "second"})
	assert.Same(t, first, prev)
	assert.Same(t, first, Find[name](m))
	assert.Equal(t, 1, m.Len())
}

func TestExchange_AlwaysOverwrites(t *testing.T) {
	m := New()
	a, b := &name{v: "a"}, &name{v: "b"}

	assert.Nil(t, Exchange(m, a))
	assert.Same(t, a, Exchange(m, b))
	assert.Same(t, b, Find[name](m))
	assert.Equal(t, 1, m.Len())
}

func TestErase(t *testing.T) {
	m := New()
	assert.Nil(t, Erase[name](m))

	held := &name{v: "kept"}
	Insert(m, held)
	removed := Erase[name](m)
	assert.Same(t, held, removed)
	assert.Nil(t, Find[name](m))
	assert.True(t, m.Empty())
	assert.Equal(t, "kept", removed.v, "a retained handle outlives the entry")
}

func TestTypesAreDistinctKeys(t *testing.T) {
	m := New()
	Insert(m, &name{v: "x"})
	Insert(m, &counter{n: 1})

	assert.Equal(t, 2, m.Len())
	assert.Equal(t, "x", Find[name](m).v)
	assert.Equal(t, 1, Find[counter](m).n)
	assert.ElementsMatch(t, []string{"aspect.name", "aspect.counter"}, m.Types())

	m.Clear()
	assert.True(t, m.Empty())
}

func TestReduce_LeftToRightOrder(t *testing.T) {
	m := New()

	assert.Nil(t, Reduce(m, &name{v: "A"}, concat))
	assert.Equal(t, "A", Find[name](m).v, "first reduce behaves as insert")

	prev := Reduce(m, &name{v: "B"}, concat)
	assert.Equal(t, "A", prev.v)
	assert.Equal(t, "AB", Find[name](m).v)

	prev = Reduce(m, &name{v: "C"}, concat)
	assert.Equal(t, "AB", prev.v)
	assert.Equal(t, "ABC", Find[name](m).v)
}

func TestGuardedTransaction(t *testing.T) {
	m := New()
	m.Do(func(g *Guard) {
		if FindLocked[counter](m, g) == nil {
			InsertLocked(m, g, &counter{n: 1})
		}
		prev := ReduceLocked(m, g, &counter{n: 2}, func(old, v *counter) *counter {
			return &counter{n: old.n + v.n}
		})
		assert.Equal(t, 1, prev.n)
		assert.Equal(t, 1, m.LenLocked(g))
		ExchangeLocked(m, g, &name{v: "n"})
		assert.NotNil(t, EraseLocked[name](m, g))
	})
	assert.Equal(t, 3, Find[counter](m).n)

	g := m.Lock()
	m.ClearLocked(g)
	g.Unlock()
	assert.True(t, m.Empty())
}

func TestGuardMismatch_FailsFast(t *testing.T) {
	m1, m2 := New(), New()
	Insert(m1, &name{v: "untouched"})

	g2 := m2.Lock()
	defer g2.Unlock()

	requireLogicPanic(t, errors.ErrCodeGuardMismatch, func() { FindLocked[name](m1, g2) })
	requireLogicPanic(t, errors.ErrCodeGuardMismatch, func() { InsertLocked(m1, g2, &name{v: "x"}) })
	requireLogicPanic(t, errors.ErrCodeGuardMismatch, func() { ExchangeLocked(m1, g2, &name{v: "x"}) })
	requireLogicPanic(t, errors.ErrCodeGuardMismatch, func() { EraseLocked[name](m1, g2) })
	requireLogicPanic(t, errors.ErrCodeGuardMismatch, func() { ReduceLocked(m1, g2, &name{v: "x"}, concat) })
	requireLogicPanic(t, errors.ErrCodeGuardMismatch, func() { FindLocked[name](m1, nil) })

	assert.Equal(t, "untouched", Find[name](m1).v)
}

func TestGuardReleased_FailsFast(t *testing.T) {
	m := New()
	g := m.Lock()
	g.Unlock()

	requireLogicPanic(t, errors.ErrCodeGuardMismatch, func() { FindLocked[name](m, g) })
	requireLogicPanic(t, errors.ErrCodeGuardMismatch, func() { g.Unlock() })
}

func TestDo_ReleasesOnPanic(t *testing.T) {
	m := New()
	func() {
		defer func() { _ = recover() }()
		m.Do(func(g *Guard) { panic("boom") })
	}()

	// the lock must be free again
	Insert(m, &counter{})
	assert.Equal(t, 1, m.Len())
}

func TestNilValueIsRejected(t *testing.T) {
	m := New()
	requireLogicPanic(t, errors.ErrCodeNilAspect, func() { Insert[name](m, nil) })
	requireLogicPanic(t, errors.ErrCodeNilAspect, func() { Exchange[name](m, nil) })
}

func TestConcurrentChurn(t *testing.T) {
	m := New()
	var eg errgroup.Group

	for w := 0; w < 5; w++ {
		eg.Go(func() error {
			for i := 0; i < 100; i++ {
				m.Do(func(g *Guard) {
					InsertLocked(m, g, &counter{n: 1})
					ReduceLocked(m, g, &counter{n: 1}, func(old, v *counter) *counter {
						return &counter{n: old.n + v.n}
					})
					if c := FindLocked[counter](m, g); c == nil || c.n != 2 {
						panic("counter transaction observed a foreign step")
					}
					EraseLocked[counter](m, g)
				})

				m.Do(func(g *Guard) {
					if FindLocked[name](m, g) == nil {
						InsertLocked(m, g, &name{v: "a"})
					}
					ReduceLocked(m, g, &name{v: "b"}, concat)
					EraseLocked[name](m, g)
				})

				// unguarded single steps interleave with the transactions above
				_ = Find[counter](m)
			}
			return nil
		})
	}

	require.NoError(t, eg.Wait())
	assert.True(t, m.Empty())
}
