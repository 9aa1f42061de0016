package preview

import (
	"context"

	"pagepreview/internal/render"
)

// RequestFilter may rewrite the render request for an item before dispatch.
type RequestFilter func(ctx context.Context, id int64, req render.Request) render.Request

// ExclusionFilter extends the deny-list of content IDs that never get
// previews. Each filter receives the list built so far.
type ExclusionFilter func(ctx context.Context, excluded []int64) []int64

// PostTypeFilter adjusts the list of content types offered as eligible.
type PostTypeFilter func(ctx context.Context, types []string) []string

// Extensions holds the registered filters. Each slice is applied in
// registration order.
type Extensions struct {
	RequestFilters  []RequestFilter
	Exclusions      []ExclusionFilter
	PostTypeFilters []PostTypeFilter
}

// Exclude returns an ExclusionFilter that adds ids to the deny-list.
func Exclude(ids ...int64) ExclusionFilter {
	return func(_ context.Context, excluded []int64) []int64 {
		return append(excluded, ids...)
	}
}

func (e Extensions) applyRequest(ctx context.Context, id int64, req render.Request) render.Request {
	for _, filter := range e.RequestFilters {
		if filter != nil {
			req = filter(ctx, id, req)
		}
	}
	return req
}

func (e Extensions) excluded(ctx context.Context, id int64) bool {
	var ids []int64
	for _, filter := range e.Exclusions {
		if filter != nil {
			ids = filter(ctx, ids)
		}
	}
	for _, excluded := range ids {
		if excluded == id {
			return true
		}
	}
	return false
}

func (e Extensions) applyPostTypes(ctx context.Context, types []string) []string {
	for _, filter := range e.PostTypeFilters {
		if filter != nil {
			types = filter(ctx, types)
		}
	}
	return types
}
