package calendar

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/slotengine/internal/platform/db"
)

type holidayRepoPG struct {
	pool *pgxpool.Pool
}

func NewHolidayRepoPG(pool *pgxpool.Pool) HolidayRepository {
	return &holidayRepoPG{pool: pool}
}

func (r *holidayRepoPG) Create(ctx context.Context, h *Holiday) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO holiday (id, holiday_date, reason)
		VALUES ($1, $2, $3)
		RETURNING created_at`,
		h.ID, h.Date, h.Reason).Scan(&h.CreatedAt)
	if db.IsUniqueViolation(err) {
		return ErrDuplicateHoliday
	}
	return db.Wrap("create holiday", err)
}

func (r *holidayRepoPG) ListRange(ctx context.Context, from, to time.Time) ([]*Holiday, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT id, holiday_date, reason, created_at
		FROM holiday
		WHERE holiday_date BETWEEN $1 AND $2
		ORDER BY holiday_date`, from, to)
	if err != nil {
		return nil, db.Wrap("list holidays", err)
	}
	defer rows.Close()

	var out []*Holiday
	for rows.Next() {
		h := &Holiday{}
		if err := rows.Scan(&h.ID, &h.Date, &h.Reason, &h.CreatedAt); err != nil {
			return nil, db.Wrap("scan holiday", err)
		}
		out = append(out, h)
	}
	return out, db.Wrap("list holidays", rows.Err())
}
