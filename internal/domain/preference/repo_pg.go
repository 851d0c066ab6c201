package preference

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/clinic/slotengine/internal/domain/slot"
	"github.com/clinic/slotengine/internal/platform/db"
)

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepoPG(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

const prefCols = `doctor_id, mode, days_ahead, start_date, end_date, last_generated_on,
	skip_holiday, is_active, created_at, updated_at`

func scanPreference(row pgx.Row) (*Preference, error) {
	var p Preference
	var mode string
	if err := row.Scan(&p.DoctorID, &mode, &p.DaysAhead, &p.StartDate, &p.EndDate, &p.LastGeneratedOn,
		&p.SkipHoliday, &p.IsActive, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Mode = slot.Mode(mode)
	return &p, nil
}

func (r *repoPG) Get(ctx context.Context, doctorID uuid.UUID) (*Preference, error) {
	q := db.Conn(ctx, r.pool)
	p, err := scanPreference(q.QueryRow(ctx,
		`SELECT `+prefCols+` FROM generation_preference WHERE doctor_id = $1`, doctorID))
	if err != nil {
		return nil, db.Wrap("get preference", err)
	}
	if err := r.loadTemplates(ctx, []*Preference{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *repoPG) loadTemplates(ctx context.Context, prefs []*Preference) error {
	if len(prefs) == 0 {
		return nil
	}
	byDoctor := make(map[uuid.UUID]*Preference, len(prefs))
	ids := make([]uuid.UUID, 0, len(prefs))
	for _, p := range prefs {
		byDoctor[p.DoctorID] = p
		ids = append(ids, p.DoctorID)
	}

	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT doctor_id, start_time, end_time, gap_minutes
		FROM generation_template
		WHERE doctor_id = ANY($1)
		ORDER BY doctor_id, position`, ids)
	if err != nil {
		return db.Wrap("load templates", err)
	}
	defer rows.Close()

	for rows.Next() {
		var doctorID uuid.UUID
		var t slot.Template
		if err := rows.Scan(&doctorID, &t.Start, &t.End, &t.GapMinutes); err != nil {
			return db.Wrap("scan template", err)
		}
		if p, ok := byDoctor[doctorID]; ok {
			p.Templates = append(p.Templates, t)
		}
	}
	return db.Wrap("load templates", rows.Err())
}

func (r *repoPG) Save(ctx context.Context, p *Preference) error {
	q := db.Conn(ctx, r.pool)
	err := q.QueryRow(ctx, `
		INSERT INTO generation_preference (doctor_id, mode, days_ahead, start_date, end_date,
			last_generated_on, skip_holiday, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (doctor_id) DO UPDATE SET
			mode = EXCLUDED.mode,
			days_ahead = EXCLUDED.days_ahead,
			start_date = EXCLUDED.start_date,
			end_date = EXCLUDED.end_date,
			last_generated_on = GREATEST(generation_preference.last_generated_on, EXCLUDED.last_generated_on),
			skip_holiday = EXCLUDED.skip_holiday,
			is_active = EXCLUDED.is_active,
			updated_at = now()
		RETURNING last_generated_on, created_at, updated_at`,
		p.DoctorID, string(p.Mode), p.DaysAhead, p.StartDate, p.EndDate,
		p.LastGeneratedOn, p.SkipHoliday, p.IsActive,
	).Scan(&p.LastGeneratedOn, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return db.Wrap("save preference", err)
	}

	b := &pgx.Batch{}
	b.Queue(`DELETE FROM generation_template WHERE doctor_id = $1`, p.DoctorID)
	for i, t := range p.Templates {
		b.Queue(`INSERT INTO generation_template (doctor_id, position, start_time, end_time, gap_minutes)
			VALUES ($1, $2, $3, $4, $5)`, p.DoctorID, i, t.Start, t.End, t.GapMinutes)
	}
	if err := q.SendBatch(ctx, b).Close(); err != nil {
		return db.Wrap("save templates", err)
	}
	return nil
}

func (r *repoPG) AdvanceMarker(ctx context.Context, doctorID uuid.UUID, to time.Time) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE generation_preference
		SET last_generated_on = GREATEST(last_generated_on, $2::date), updated_at = now()
		WHERE doctor_id = $1`, doctorID, to)
	if err != nil {
		return db.Wrap("advance marker", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repoPG) SetActive(ctx context.Context, doctorID uuid.UUID, active bool) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `
		UPDATE generation_preference SET is_active = $2, updated_at = now()
		WHERE doctor_id = $1`, doctorID, active)
	if err != nil {
		return db.Wrap("set preference active", err)
	}
	if tag.RowsAffected() == 0 {
		return db.ErrNotFound
	}
	return nil
}

func (r *repoPG) ListActiveRecurring(ctx context.Context) ([]*Preference, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `
		SELECT `+prefCols+` FROM generation_preference
		WHERE is_active AND mode = ANY($1)
		ORDER BY doctor_id`,
		[]string{string(slot.ModeAuto), string(slot.ModeCustomContinuous)})
	if err != nil {
		return nil, db.Wrap("list recurring preferences", err)
	}
	var out []*Preference
	for rows.Next() {
		p, err := scanPreference(rows)
		if err != nil {
			rows.Close()
			return nil, db.Wrap("scan preference", err)
		}
		out = append(out, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, db.Wrap("list recurring preferences", err)
	}
	if err := r.loadTemplates(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}
