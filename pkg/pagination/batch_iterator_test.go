package pagination

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pageSource fabricates a finite upstream of total items and records every
// fetch it serves.
type pageSource struct {
	total   int
	fetches []fetchCall
}

type fetchCall struct {
	page    int
	perPage int
}

func (s *pageSource) fetch(ctx context.Context, page, perPage int) ([]int, error) {
	s.fetches = append(s.fetches, fetchCall{page: page, perPage: perPage})

	start := 0
	for _, f := range s.fetches[:len(s.fetches)-1] {
		start += f.perPage
	}

	var items []int
	for i := start; i < start+perPage && i < s.total; i++ {
		items = append(items, i)
	}
	return items, nil
}

func TestBatchIterator_LimitZeroNeverFetches(t *testing.T) {
	for _, limit := range []int{0, -1, -100} {
		t.Run(fmt.Sprintf("limit_%d", limit), func(t *testing.T) {
			src := &pageSource{total: 500}
			it := New(src.fetch, WithLimit(limit))

			items, err := it.All(context.Background())

			require.NoError(t, err)
			assert.Empty(t, items)
			assert.Empty(t, src.fetches, "fetch must never be called")
		})
	}
}

func TestBatchIterator_ShortPageTerminates(t *testing.T) {
	// 230 items at page size 100: two full pages then a short one. The
	// short page ends iteration with no extra fetch.
	src := &pageSource{total: 230}
	it := New(src.fetch)

	items, err := it.All(context.Background())

	require.NoError(t, err)
	assert.Len(t, items, 230)
	require.Len(t, src.fetches, 3)
	assert.Equal(t, []fetchCall{{1, 100}, {2, 100}, {3, 100}}, src.fetches)
}

func TestBatchIterator_SmallLimitShrinksFirstPage(t *testing.T) {
	src := &pageSource{total: 500}
	it := New(src.fetch, WithLimit(7))

	items, err := it.All(context.Background())

	require.NoError(t, err)
	assert.Len(t, items, 7)
	require.Len(t, src.fetches, 1)
	assert.Equal(t, fetchCall{page: 1, perPage: 7}, src.fetches[0])
}

func TestBatchIterator_LimitShrinksFinalPage(t *testing.T) {
	// limit 250 at page size 100: requested sizes 100, 100, 50 on pages
	// 1, 2, 3; cumulative fetched never exceeds the limit.
	src := &pageSource{total: 1000}
	it := New(src.fetch, WithLimit(250))

	items, err := it.All(context.Background())

	require.NoError(t, err)
	assert.Len(t, items, 250)
	assert.Equal(t, []fetchCall{{1, 100}, {2, 100}, {3, 50}}, src.fetches)
}

func TestBatchIterator_LimitEqualToData(t *testing.T) {
	src := &pageSource{total: 200}
	it := New(src.fetch, WithLimit(200))

	items, err := it.All(context.Background())

	require.NoError(t, err)
	assert.Len(t, items, 200)
	// Reaching the limit exactly ends iteration without probing page 3.
	assert.Equal(t, []fetchCall{{1, 100}, {2, 100}}, src.fetches)
}

func TestBatchIterator_EmptyFirstPage(t *testing.T) {
	src := &pageSource{total: 0}
	it := New(src.fetch)

	items, err := it.All(context.Background())

	require.NoError(t, err)
	assert.Empty(t, items)
	assert.Len(t, src.fetches, 1)
}

func TestBatchIterator_CustomPerPage(t *testing.T) {
	src := &pageSource{total: 25}
	it := New(src.fetch, WithPerPage(10))

	items, err := it.All(context.Background())

	require.NoError(t, err)
	assert.Len(t, items, 25)
	assert.Equal(t, []fetchCall{{1, 10}, {2, 10}, {3, 10}}, src.fetches)
}

func TestBatchIterator_LazyFetching(t *testing.T) {
	src := &pageSource{total: 30}
	it := New(src.fetch, WithPerPage(10))
	ctx := context.Background()

	assert.Empty(t, src.fetches, "construction must not fetch")

	for i := 0; i < 10; i++ {
		require.True(t, it.Next(ctx))
	}
	assert.Len(t, src.fetches, 1, "first page only")

	require.True(t, it.Next(ctx))
	assert.Len(t, src.fetches, 2, "second page pulled on demand")
}

func TestBatchIterator_FetchErrorStopsIteration(t *testing.T) {
	boom := errors.New("upstream unavailable")
	calls := 0
	fetch := func(ctx context.Context, page, perPage int) ([]int, error) {
		calls++
		if calls == 2 {
			return nil, boom
		}
		items := make([]int, perPage)
		return items, nil
	}

	it := New(fetch, WithPerPage(5))
	ctx := context.Background()

	yielded := 0
	for it.Next(ctx) {
		yielded++
	}

	assert.Equal(t, 5, yielded)
	assert.ErrorIs(t, it.Err(), boom)
	assert.False(t, it.Next(ctx), "iterator stays stopped after an error")
	assert.Equal(t, 2, calls)
}

func TestBatchIterator_PageCounterAdvancesPastSizeAdjustments(t *testing.T) {
	src := &pageSource{total: 1000}
	it := New(src.fetch, WithPerPage(40), WithLimit(100))

	items, err := it.All(context.Background())

	require.NoError(t, err)
	assert.Len(t, items, 100)
	assert.Equal(t, []fetchCall{{1, 40}, {2, 40}, {3, 20}}, src.fetches)
}
