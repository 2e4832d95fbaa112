package pagination

import "context"

// DefaultPerPage is the page size used when none is configured.
const DefaultPerPage = 100

// FetchFunc retrieves one page of results. page starts at 1; perPage is the
// number of items requested for this page.
type FetchFunc[T any] func(ctx context.Context, page, perPage int) ([]T, error)

// Option configures a BatchIterator.
type Option func(*settings)

type settings struct {
	perPage  int
	limit    int
	hasLimit bool
}

// WithPerPage sets the default (maximum) page size.
func WithPerPage(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.perPage = n
		}
	}
}

// WithLimit caps the total number of items yielded. A limit of zero or
// less yields an empty sequence without calling the fetch function.
func WithLimit(n int) Option {
	return func(s *settings) {
		s.limit = n
		s.hasLimit = true
	}
}

// BatchIterator is a lazy, finite, single-pass sequence of items pulled
// from a paginated source. It is not safe for concurrent use and cannot be
// restarted; construct a new iterator to re-iterate.
type BatchIterator[T any] struct {
	fetch FetchFunc[T]

	// Page cursor. Immutable once finished is true.
	page         int
	perPage      int
	limit        int
	hasLimit     bool
	fetchedCount int
	finished     bool

	buf  []T
	item T
	err  error
}

// New creates a BatchIterator over fetch. When a limit smaller than the
// page size is set, the page size is reduced to the limit so the first
// page never over-fetches.
func New[T any](fetch FetchFunc[T], opts ...Option) *BatchIterator[T] {
	s := settings{perPage: DefaultPerPage}
	for _, opt := range opts {
		opt(&s)
	}

	it := &BatchIterator[T]{
		fetch:    fetch,
		page:     1,
		perPage:  s.perPage,
		limit:    s.limit,
		hasLimit: s.hasLimit,
	}
	if it.hasLimit {
		if it.limit <= 0 {
			it.finished = true
		} else if it.limit < it.perPage {
			it.perPage = it.limit
		}
	}
	return it
}

// Next advances the iterator, fetching the next page when the buffered one
// is exhausted. It returns false when the sequence ends or a fetch fails;
// check Err afterwards.
func (it *BatchIterator[T]) Next(ctx context.Context) bool {
	if it.err != nil {
		return false
	}

	for len(it.buf) == 0 {
		if it.finished {
			return false
		}
		if err := it.fetchPage(ctx); err != nil {
			it.err = err
			return false
		}
	}

	it.item = it.buf[0]
	it.buf = it.buf[1:]
	return true
}

// Item returns the item produced by the last successful Next.
func (it *BatchIterator[T]) Item() T {
	return it.item
}

// Err returns the first error encountered while fetching, if any.
func (it *BatchIterator[T]) Err() error {
	return it.err
}

// All drains the iterator into a slice.
func (it *BatchIterator[T]) All(ctx context.Context) ([]T, error) {
	var items []T
	for it.Next(ctx) {
		items = append(items, it.Item())
	}
	return items, it.Err()
}

// fetchPage requests the next page and advances the cursor. When a limit
// is active the requested size shrinks to the number of missing items, so
// the cumulative fetched count never exceeds the limit.
func (it *BatchIterator[T]) fetchPage(ctx context.Context) error {
	pageSize := it.perPage
	if it.hasLimit {
		if missing := it.limit - it.fetchedCount; missing < pageSize {
			pageSize = missing
		}
	}

	result, err := it.fetch(ctx, it.page, pageSize)
	if err != nil {
		return err
	}

	it.page++
	it.fetchedCount += len(result)

	// A short page is the upstream end-of-data signal.
	if len(result) < pageSize || (it.hasLimit && it.fetchedCount >= it.limit) {
		it.finished = true
	}

	it.buf = result
	return nil
}
