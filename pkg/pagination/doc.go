// Package pagination implements lazy pull-based iteration over paginated
// list endpoints.
//
// A BatchIterator repeatedly calls a page-fetch function, advancing a page
// cursor after every call. Iteration finishes when a page comes back
// shorter than requested (the upstream convention for end-of-data) or when
// an overall item limit is reached. Items are yielded one at a time; pages
// are only fetched as the consumer advances.
package pagination
