package leave

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/slotengine/internal/domain/calendar"
	"github.com/clinic/slotengine/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const leaveCols = `id, doctor_id, from_date, to_date, status, reason, created_at, updated_at`

func scanLeave(row pgx.Row) (*Leave, error) {
	var l Leave
	var status string
	if err := row.Scan(&l.ID, &l.DoctorID, &l.From, &l.To, &status, &l.Reason, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	l.Status = Status(status)
	return &l, nil
}

func (r *repoPG) Create(ctx context.Context, l *Leave) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctor_leave (id, doctor_id, from_date, to_date, status, reason)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		l.ID, l.DoctorID, l.From, l.To, string(l.Status), l.Reason,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	return db.Wrap("create leave", err)
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Leave, error) {
	l, err := scanLeave(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+leaveCols+` FROM doctor_leave WHERE id = $1`, id))
	if err != nil {
		return nil, db.Wrap("get leave", err)
	}
	return l, nil
}

func (r *repoPG) query(ctx context.Context, op, sql string, args ...interface{}) ([]*Leave, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, sql, args...)
	if err != nil {
		return nil, db.Wrap(op, err)
	}
	defer rows.Close()

	var out []*Leave
	for rows.Next() {
		l, err := scanLeave(rows)
		if err != nil {
			return nil, db.Wrap(op, err)
		}
		out = append(out, l)
	}
	return out, db.Wrap(op, rows.Err())
}

func (r *repoPG) FindOverlapping(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Leave, error) {
	return r.query(ctx, "find overlapping leave", `
		SELECT `+leaveCols+` FROM doctor_leave
		WHERE doctor_id = $1 AND status <> $2 AND from_date <= $4 AND to_date >= $3
		ORDER BY from_date`,
		doctorID, string(StatusRejected), from, to)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, current, next Status) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE doctor_leave SET status = $3, updated_at = now()
		WHERE id = $1 AND status = $2`,
		id, string(current), string(next))
	if err != nil {
		return false, db.Wrap("update leave status", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Leave, error) {
	return r.query(ctx, "list leaves", `
		SELECT `+leaveCols+` FROM doctor_leave WHERE doctor_id = $1 ORDER BY from_date DESC`, doctorID)
}

func (r *repoPG) ApprovedRanges(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]calendar.DateRange, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT from_date, to_date FROM doctor_leave
		WHERE doctor_id = $1 AND status = $2 AND from_date <= $4 AND to_date >= $3
		ORDER BY from_date`,
		doctorID, string(StatusApproved), from, to)
	if err != nil {
		return nil, db.Wrap("approved leave ranges", err)
	}
	defer rows.Close()

	var out []calendar.DateRange
	for rows.Next() {
		var dr calendar.DateRange
		if err := rows.Scan(&dr.From, &dr.To); err != nil {
			return nil, db.Wrap("scan leave range", err)
		}
		out = append(out, dr)
	}
	return out, db.Wrap("approved leave ranges", rows.Err())
}
