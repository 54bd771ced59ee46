package pagination

const (
	// DefaultPageLimit is the page size used by numbered listings.
	DefaultPageLimit = 10
	// MaxPageLimit caps numbered listings.
	MaxPageLimit = 50
)

// Page holds 1-based page-number pagination inputs.
type Page struct {
	Page  int
	Limit int
}

// Normalize clamps page and limit to their allowed ranges.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = DefaultPageLimit
	}
	if p.Limit > MaxPageLimit {
		p.Limit = MaxPageLimit
	}
	return p
}

// Offset returns the row offset of the page.
func (p Page) Offset() int {
	n := p.Normalize()
	return (n.Page - 1) * n.Limit
}

// Meta is the pagination block returned by numbered listings.
type Meta struct {
	Page  int   `json:"page"`
	Limit int   `json:"limit"`
	Total int64 `json:"total"`
	Pages int64 `json:"pages"`
}

// MetaFor builds the response block for a page over total rows.
func MetaFor(p Page, total int64) Meta {
	n := p.Normalize()
	limit := int64(n.Limit)
	return Meta{
		Page:  n.Page,
		Limit: n.Limit,
		Total: total,
		Pages: (total + limit - 1) / limit,
	}
}
