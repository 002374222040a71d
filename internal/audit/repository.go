package audit

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository menyediakan akses baca ke tabel audit_logs.
type Repository interface {
	Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error)
}

// PGRepository mengimplementasikan Repository di atas PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository membuat repository audit baru.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// Window mengambil satu jendela baris timeline, terbaru lebih dulu.
func (r *PGRepository) Window(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT actor_id, action, entity, entity_id, meta, occurred_at
		FROM audit_logs
		WHERE occurred_at >= $1 AND occurred_at <= $2
		  AND ($3::bigint = 0 OR actor_id = $3)
		  AND ($4::text = '' OR entity = $4)
		  AND ($5::text = '' OR action = $5)
		ORDER BY occurred_at DESC
		OFFSET $6 LIMIT $7`,
		filters.From, filters.To, filters.ActorID, filters.Entity, filters.Action, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.ActorID, &row.Action, &row.Entity, &row.EntityID, &row.Meta, &row.At); err != nil {
			return nil, err
		}
		result = append(result, row)
	}
	return result, rows.Err()
}

var _ Repository = (*PGRepository)(nil)
