package parallel_test

import (
	"context"
	"errors"
	"iter"
	"sync/atomic"
	"testing"
	"time"

	"github.com/getherald/herald/internal/parallel"
	"github.com/stretchr/testify/require"
)

func TestMap(t *testing.T) {
	t.Parallel()

	square := func(_ context.Context, n int) (int, error) {
		return n * n, nil
	}

	t.Run("maps every entry", func(t *testing.T) {
		t.Parallel()
		m := parallel.NewMap(t.Context(), 4, square)
		require.ElementsMatch(t, []int{1, 4, 9, 16, 25}, values(t, m.Iter(all([]int{1, 2, 3, 4, 5}))))
	})

	t.Run("limit one", func(t *testing.T) {
		t.Parallel()
		m := parallel.NewMap(t.Context(), 1, square)
		require.ElementsMatch(t, []int{1, 4, 9}, values(t, m.Iter(all([]int{1, 2, 3}))))
	})

	t.Run("respects the limit", func(t *testing.T) {
		t.Parallel()
		var inFlight, peak atomic.Int32
		slowSquare := func(_ context.Context, n int) (int, error) {
			cur := inFlight.Add(1)
			defer inFlight.Add(-1)
			for {
				old := peak.Load()
				if cur <= old || peak.CompareAndSwap(old, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			return n * n, nil
		}

		m := parallel.NewMap(t.Context(), 2, slowSquare)
		got := values(t, m.Iter(all([]int{1, 2, 3, 4, 5, 6})))
		require.Len(t, got, 6)
		require.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("yields map errors", func(t *testing.T) {
		t.Parallel()
		oddOnly := func(_ context.Context, n int) (int, error) {
			if n%2 == 0 {
				return 0, errors.New("even")
			}
			return n, nil
		}

		m := parallel.NewMap(t.Context(), 2, oddOnly)
		var oks, errs int
		for _, err := range m.Iter(all([]int{1, 2, 3, 4})) {
			if err != nil {
				errs++
			} else {
				oks++
			}
		}
		require.Equal(t, 2, oks)
		require.Equal(t, 2, errs)
	})

	t.Run("skips input errors", func(t *testing.T) {
		t.Parallel()
		seq := func(yield func(int, error) bool) {
			if !yield(1, nil) {
				return
			}
			if !yield(0, errors.New("bad entry")) {
				return
			}
			yield(3, nil)
		}

		m := parallel.NewMap(t.Context(), 2, square)
		require.ElementsMatch(t, []int{1, 9}, values(t, m.Iter(seq)))
	})

	t.Run("canceled context stops early", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		block := func(ctx context.Context, n int) (int, error) {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(10 * time.Second):
				return n, nil
			}
		}

		m := parallel.NewMap(ctx, 2, block)
		got := values(t, m.Iter(all([]int{1, 2, 3})))
		require.Empty(t, got)
	})

	t.Run("consumer may stop early", func(t *testing.T) {
		t.Parallel()
		m := parallel.NewMap(t.Context(), 2, square)
		var got []int
		for v := range values2(m.Iter(all([]int{1, 2, 3, 4, 5, 6, 7, 8}))) {
			got = append(got, v)
			if len(got) == 2 {
				break
			}
		}
		require.Len(t, got, 2)
	})
}

func all[T any](s []T) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, x := range s {
			if !yield(x, nil) {
				return
			}
		}
	}
}

func values[T any](t *testing.T, i iter.Seq2[T, error]) []T {
	t.Helper()
	var ret []T
	for k, err := range i {
		require.NoError(t, err)
		ret = append(ret, k)
	}
	return ret
}

func values2[T any](i iter.Seq2[T, error]) iter.Seq[T] {
	return func(yield func(T) bool) {
		for k := range i {
			if !yield(k) {
				return
			}
		}
	}
}
