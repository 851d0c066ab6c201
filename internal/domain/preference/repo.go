package preference

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// Get returns db.ErrNotFound when the doctor never saved a preference.
	Get(ctx context.Context, doctorID uuid.UUID) (*Preference, error)
	// Save upserts the preference and replaces its templates. A stored
	// marker is kept when it is later than p.LastGeneratedOn.
	Save(ctx context.Context, p *Preference) error
	// AdvanceMarker moves LastGeneratedOn to to unless it is already later.
	AdvanceMarker(ctx context.Context, doctorID uuid.UUID, to time.Time) error
	SetActive(ctx context.Context, doctorID uuid.UUID, active bool) error
	// ListActiveRecurring returns active AUTO and CUSTOM_CONTINUOUS preferences.
	ListActiveRecurring(ctx context.Context) ([]*Preference, error)
}
