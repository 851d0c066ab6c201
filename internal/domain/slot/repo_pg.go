package slot

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/slotengine/internal/platform/db"
)

type repoPG struct{ pool *pgxpool.Pool }

func NewRepoPG(pool *pgxpool.Pool) Repository { return &repoPG{pool: pool} }

const slotCols = `id, doctor_id, slot_date, start_time, end_time, status, generation_mode, created_at, updated_at`

func scanSlot(row pgx.Row) (*Slot, error) {
	var s Slot
	err := row.Scan(&s.ID, &s.DoctorID, &s.Date, &s.Start, &s.End, &s.Status, &s.GenerationMode, &s.CreatedAt, &s.UpdatedAt)
	return &s, err
}

func collectSlots(rows pgx.Rows) ([]*Slot, error) {
	defer rows.Close()
	var out []*Slot
	for rows.Next() {
		s, err := scanSlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func statusStrings(ss []Status) []string {
	out := make([]string, len(ss))
	for i, s := range ss {
		out[i] = string(s)
	}
	return out
}

func (r *repoPG) CreateBatch(ctx context.Context, slots []*Slot) (int, error) {
	if len(slots) == 0 {
		return 0, nil
	}
	batch := &pgx.Batch{}
	for _, s := range slots {
		if s.ID == uuid.Nil {
			s.ID = uuid.New()
		}
		batch.Queue(`
			INSERT INTO slot (id, doctor_id, slot_date, start_time, end_time, status, generation_mode)
			VALUES ($1,$2,$3,$4,$5,$6,$7)
			ON CONFLICT ON CONSTRAINT uq_slot_interval DO NOTHING`,
			s.ID, s.DoctorID, s.Date, s.Start, s.End, s.Status, s.GenerationMode)
	}

	br := db.Conn(ctx, r.pool).SendBatch(ctx, batch)
	inserted := 0
	for range slots {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return 0, db.Wrap("insert slots", err)
		}
		inserted += int(tag.RowsAffected())
	}
	if err := br.Close(); err != nil {
		return 0, db.Wrap("insert slots", err)
	}
	return inserted, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Slot, error) {
	s, err := scanSlot(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+slotCols+` FROM slot WHERE id = $1`, id))
	if err != nil {
		return nil, db.Wrap("get slot", err)
	}
	return s, nil
}

func (r *repoPG) FindOverlapping(ctx context.Context, doctorID uuid.UUID, date time.Time, iv Interval) ([]*Slot, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+slotCols+` FROM slot
		WHERE doctor_id = $1 AND slot_date = $2 AND status <> $3
		  AND start_time < $5 AND $4 < end_time
		ORDER BY start_time`,
		doctorID, date, StatusCancelled, iv.Start, iv.End)
	if err != nil {
		return nil, db.Wrap("find overlapping slots", err)
	}
	out, err := collectSlots(rows)
	return out, db.Wrap("find overlapping slots", err)
}

func (r *repoPG) FindByRange(ctx context.Context, doctorID uuid.UUID, from, to time.Time) ([]*Slot, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+slotCols+` FROM slot
		WHERE doctor_id = $1 AND slot_date BETWEEN $2 AND $3
		ORDER BY slot_date, start_time`, doctorID, from, to)
	if err != nil {
		return nil, db.Wrap("find slots by range", err)
	}
	out, err := collectSlots(rows)
	return out, db.Wrap("find slots by range", err)
}

func (r *repoPG) UpdateStatus(ctx context.Context, id uuid.UUID, from []Status, next Status) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE slot SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = ANY($3)`, id, next, statusStrings(from))
	if err != nil {
		return false, db.Wrap("update slot status", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) CancelMany(ctx context.Context, ids []uuid.UUID, from []Status) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE slot SET status = $2, updated_at = NOW()
		WHERE id = ANY($1) AND status = ANY($3)`, ids, StatusCancelled, statusStrings(from))
	if err != nil {
		return 0, db.Wrap("cancel slots", err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *repoPG) List(ctx context.Context, f ListFilter, limit, offset int) ([]*Slot, int, error) {
	where := ` WHERE doctor_id = $1 AND slot_date BETWEEN $2 AND $3`
	args := []interface{}{f.DoctorID, f.From, f.To}
	if f.Status != nil {
		where += ` AND status = $4`
		args = append(args, *f.Status)
	}

	conn := db.Conn(ctx, r.pool)
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM slot`+where, args...).Scan(&total); err != nil {
		return nil, 0, db.Wrap("count slots", err)
	}

	query := `SELECT ` + slotCols + ` FROM slot` + where +
		fmt.Sprintf(` ORDER BY slot_date, start_time LIMIT $%d OFFSET $%d`, len(args)+1, len(args)+2)
	args = append(args, limit, offset)
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, db.Wrap("list slots", err)
	}
	items, err := collectSlots(rows)
	if err != nil {
		return nil, 0, db.Wrap("list slots", err)
	}
	return items, total, nil
}
