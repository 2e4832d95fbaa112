package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/fitwire/strava-client/pkg/pagination"
)

// ActivityFilter narrows an activity listing. Before/After are considered
// in UTC and sent as epoch seconds.
type ActivityFilter struct {
	Before time.Time
	After  time.Time

	// PerPage is the page size for the listing (default 50).
	PerPage int

	// Limit caps the total number of activities fetched. Zero-valued means
	// unlimited; use Limited to request an explicit cap.
	Limit   int
	Limited bool
}

// AthleteProfile returns the profile of the authenticated athlete (the
// access token owner).
func (c *Client) AthleteProfile(ctx context.Context) (json.RawMessage, error) {
	return c.dispatch(ctx, "GET", "athlete/", requestOptions{})
}

// ActivitiesPage fetches one page of the authenticated athlete's
// activities. Most callers want Activities instead.
func (c *Client) ActivitiesPage(ctx context.Context, filter ActivityFilter, page, perPage int) ([]json.RawMessage, error) {
	params := url.Values{}
	if !filter.Before.IsZero() {
		params.Set("before", strconv.FormatInt(filter.Before.UTC().Unix(), 10))
	}
	if !filter.After.IsZero() {
		params.Set("after", strconv.FormatInt(filter.After.UTC().Unix(), 10))
	}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	raw, err := c.dispatch(ctx, "GET", "athlete/activities/", requestOptions{params: params})
	if err != nil {
		return nil, err
	}
	return decodeList(raw)
}

// Activities returns a lazy iterator over the authenticated athlete's
// activities. Pages are fetched on demand as the iterator advances.
func (c *Client) Activities(filter ActivityFilter) *pagination.BatchIterator[json.RawMessage] {
	fetch := func(ctx context.Context, page, perPage int) ([]json.RawMessage, error) {
		return c.ActivitiesPage(ctx, filter, page, perPage)
	}
	return pagination.New(fetch, listingOptions(filter.PerPage, filter.Limit, filter.Limited)...)
}

// Activity returns a single activity by id.
func (c *Client) Activity(ctx context.Context, activityID int64, includeAllEfforts bool) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("include_all_efforts", strconv.FormatBool(includeAllEfforts))

	path := fmt.Sprintf("activities/%d/", activityID)
	return c.dispatch(ctx, "GET", path, requestOptions{params: params})
}

// SegmentBounds is the rectangular search boundary for ExploreSegments:
// southwest corner latitude/longitude, northeast corner latitude/longitude.
type SegmentBounds struct {
	SouthWestLat float64
	SouthWestLng float64
	NorthEastLat float64
	NorthEastLng float64
}

func (b SegmentBounds) query() string {
	return fmt.Sprintf("%g,%g,%g,%g", b.SouthWestLat, b.SouthWestLng, b.NorthEastLat, b.NorthEastLng)
}

// ExploreSegmentsOptions narrows a segment search.
type ExploreSegmentsOptions struct {
	// ActivityType may be "running" or "riding".
	ActivityType string

	// MinCat/MaxCat bound the climbing category; zero means unset.
	MinCat int
	MaxCat int
}

// ExploreSegments returns the top segments matching the given boundary.
func (c *Client) ExploreSegments(ctx context.Context, bounds SegmentBounds, opts ExploreSegmentsOptions) (json.RawMessage, error) {
	params := url.Values{}
	params.Set("bounds", bounds.query())

	if opts.ActivityType != "" {
		if opts.ActivityType != "running" && opts.ActivityType != "riding" {
			return nil, fmt.Errorf("invalid activity type %q: must be \"running\" or \"riding\"", opts.ActivityType)
		}
		params.Set("activity_type", opts.ActivityType)
	}
	if opts.MinCat != 0 {
		params.Set("min_cat", strconv.Itoa(opts.MinCat))
	}
	if opts.MaxCat != 0 {
		params.Set("max_cat", strconv.Itoa(opts.MaxCat))
	}

	return c.dispatch(ctx, "GET", "segments/explore/", requestOptions{params: params})
}

// Segment returns a single segment by id.
func (c *Client) Segment(ctx context.Context, segmentID int64) (json.RawMessage, error) {
	path := fmt.Sprintf("segments/%d/", segmentID)
	return c.dispatch(ctx, "GET", path, requestOptions{})
}

// SegmentEffortsPage fetches one page of the authenticated athlete's
// efforts on a segment.
func (c *Client) SegmentEffortsPage(ctx context.Context, segmentID int64, page, perPage int) ([]json.RawMessage, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(page))
	params.Set("per_page", strconv.Itoa(perPage))

	path := fmt.Sprintf("segments/%d/all_efforts/", segmentID)
	raw, err := c.dispatch(ctx, "GET", path, requestOptions{params: params})
	if err != nil {
		return nil, err
	}
	return decodeList(raw)
}

// SegmentEfforts returns a lazy iterator over the authenticated athlete's
// efforts on a segment.
func (c *Client) SegmentEfforts(segmentID int64, perPage, limit int, limited bool) *pagination.BatchIterator[json.RawMessage] {
	fetch := func(ctx context.Context, page, perPage int) ([]json.RawMessage, error) {
		return c.SegmentEffortsPage(ctx, segmentID, page, perPage)
	}
	return pagination.New(fetch, listingOptions(perPage, limit, limited)...)
}

// SegmentEffort returns a single segment effort owned by the authenticated
// athlete.
func (c *Client) SegmentEffort(ctx context.Context, effortID int64) (json.RawMessage, error) {
	path := fmt.Sprintf("segment_efforts/%d/", effortID)
	return c.dispatch(ctx, "GET", path, requestOptions{})
}

// listingOptions translates listing parameters into iterator options.
// Listings default to 50 items per page.
func listingOptions(perPage, limit int, limited bool) []pagination.Option {
	if perPage <= 0 {
		perPage = 50
	}
	opts := []pagination.Option{pagination.WithPerPage(perPage)}
	if limited {
		opts = append(opts, pagination.WithLimit(limit))
	}
	return opts
}

// decodeList splits a JSON array payload into its raw elements. A null
// payload decodes as an empty list.
func decodeList(raw json.RawMessage) ([]json.RawMessage, error) {
	if raw == nil {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode list payload: %w", err)
	}
	return items, nil
}
