package upstream

import "context"

// PageInfo mirrors the GraphQL Relay-style page cursor block.
type PageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

// Fetch is implemented per resource type: it executes one page of a query
// given the cursor to resume after, and returns the decoded nodes plus the
// page info needed to continue.
type Fetch[T any] func(ctx context.Context, after string) (nodes []T, page PageInfo, err error)

// Paginate drives a Fetch function to collect every page up to maxPages (0
// means unbounded), following the cursor chain in PageInfo.
func Paginate[T any](ctx context.Context, fetch Fetch[T], maxPages int) ([]T, error) {
	var all []T
	after := ""
	for page := 0; maxPages == 0 || page < maxPages; page++ {
		nodes, info, err := fetch(ctx, after)
		if err != nil {
			return nil, err
		}
		all = append(all, nodes...)
		if !info.HasNextPage {
			break
		}
		after = info.EndCursor
	}
	return all, nil
}
