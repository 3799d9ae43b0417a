package dto

const (
	DefaultPageNumber = 1
	DefaultPageSize   = 10
	MaxPageSize       = 100
	MaxPageNumber     = 1_000_000
)

// Pagination is the pageNumber/pageSize query pair shared by every list
// endpoint. Zero values mean "not supplied".
type Pagination struct {
	PageNumber int `form:"pageNumber" binding:"omitempty,min=1,max=1000000"`
	PageSize   int `form:"pageSize" binding:"omitempty,min=1,max=100"`
}

// Normalize applies defaults and clamps out-of-range values.
func (p Pagination) Normalize() Pagination {
	if p.PageNumber < 1 {
		p.PageNumber = DefaultPageNumber
	}
	if p.PageNumber > MaxPageNumber {
		p.PageNumber = MaxPageNumber
	}
	if p.PageSize < 1 {
		p.PageSize = DefaultPageSize
	}
	if p.PageSize > MaxPageSize {
		p.PageSize = MaxPageSize
	}
	return p
}

func (p Pagination) Offset() int {
	n := p.Normalize()
	return (n.PageNumber - 1) * n.PageSize
}

func (p Pagination) Limit() int {
	return p.Normalize().PageSize
}
