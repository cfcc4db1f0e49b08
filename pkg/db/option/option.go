package option

import (
	"github.com/trinetlabs/trinet/pkg/db/pagination"
	"gorm.io/gorm"
)

// QueryOption mutates a query statement before execution.
type QueryOption interface {
	Apply(*gorm.DB) *gorm.DB
}

type queryOptionFunc func(*gorm.DB) *gorm.DB

func (f queryOptionFunc) Apply(db *gorm.DB) *gorm.DB { return f(db) }

// ApplyPagination applies cursor pagination. The statement fetches one extra
// row so callers can detect a next page.
func ApplyPagination(page pagination.Pagination) QueryOption {
	return queryOptionFunc(func(db *gorm.DB) *gorm.DB {
		size := page.PageSize
		if size <= 0 {
			size = 10
		}
		if page.PageToken != "" {
			if cursor, err := pagination.DecodeCursor(page.PageToken); err == nil && cursor != nil {
				if cursor.CreatedAt != "" && cursor.ID != "" {
					db = db.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
				}
			}
		}
		return db.Limit(size + 1)
	})
}
