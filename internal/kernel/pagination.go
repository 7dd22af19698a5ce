package kernel

// ApiResponse is the paginated envelope returned by every list_* operation.
type ApiResponse[T any] struct {
	Data    []T    `json:"data"`
	Total   uint64 `json:"total"`
	Offset  uint64 `json:"offset"`
	Limit   uint64 `json:"limit"`
	HasMore bool   `json:"hasMore"`
}

// Paginate slices items[offset:offset+limit] against the full ordered slice
// and fills in the ApiResponse envelope, including HasMore.
func Paginate[T any](items []T, offset, limit uint64) ApiResponse[T] {
	total := uint64(len(items))
	if offset >= total {
		return ApiResponse[T]{Data: []T{}, Total: total, Offset: offset, Limit: limit, HasMore: false}
	}
	end := offset + limit
	if end > total {
		end = total
	}
	page := items[offset:end]
	out := make([]T, len(page))
	copy(out, page)
	return ApiResponse[T]{
		Data:    out,
		Total:   total,
		Offset:  offset,
		Limit:   limit,
		HasMore: offset+uint64(len(out)) < total,
	}
}
