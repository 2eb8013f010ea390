package library

// Page is one page of a client-side paginated list. Page numbers start at 1.
type Page[T any] struct {
	Items      []T `json:"items"`
	Page       int `json:"page"`
	TotalPages int `json:"totalPages"`
	Total      int `json:"total"`
}

// Paginate slices items into pages of perPage. Out-of-range pages are clamped to the
// nearest valid page; perPage < 1 returns everything on one page.
func Paginate[T any](items []T, page, perPage int) Page[T] {
	total := len(items)
	if perPage < 1 {
		perPage = total
		if perPage == 0 {
			perPage = 1
		}
	}
	totalPages := (total + perPage - 1) / perPage
	if totalPages == 0 {
		return Page[T]{Items: []T{}, Page: 1, TotalPages: 0, Total: 0}
	}
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * perPage
	end := min(start+perPage, total)
	return Page[T]{
		Items:      items[start:end],
		Page:       page,
		TotalPages: totalPages,
		Total:      total,
	}
}
