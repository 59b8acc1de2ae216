package repository

import "gorm.io/gorm"

const (
	defaultPage     = 1
	defaultPageSize = 20
	maxPageSize     = 100
)

// applyPagination 统一分页处理
func applyPagination(query *gorm.DB, page, pageSize int) *gorm.DB {
	if page <= 0 {
		page = defaultPage
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	offset := (page - 1) * pageSize
	return query.Offset(offset).Limit(pageSize)
}
