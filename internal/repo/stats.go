// Package repo is the persistence layer: GORM repositories over SQLite plus
// the aggregate queries built on top of them. This file holds the aggregate
// queries the HTTP layer feeds into conditional responses such as ETags.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-task-backend/internal/domain"
)

// TasksStats reports how many tasks exist and when the newest modification
// happened. An empty table yields (0, nil, nil); maxUpdatedAt is only set
// when at least one row exists.
//
// Two cheap queries, one round trip each. The handlers combine the pair into
// the weak ETag for task listings.
func TasksStats(ctx context.Context, db *gorm.DB) (count int64, maxUpdatedAt *time.Time, err error) {
	q := db.WithContext(ctx).Model(&domain.Task{})

	if err = q.Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// SQLite hands MAX(date_modified) back as TEXT, so order and take the
	// newest row instead.
	var row struct {
		DateModified time.Time
	}
	if err = q.Select("date_modified").Order("date_modified DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.DateModified, nil
}
