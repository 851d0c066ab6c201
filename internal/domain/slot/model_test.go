package slot

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

func iv(start, end string) Interval {
	return Interval{Start: MustTimeOfDay(start), End: MustTimeOfDay(end)}
}

func TestInterval_Overlaps(t *testing.T) {
	cases := []struct {
		a, b Interval
		want bool
	}{
		{iv("09:00", "09:30"), iv("09:30", "10:00"), false},
		{iv("09:00", "09:30"), iv("09:15", "09:45"), true},
		{iv("09:00", "12:00"), iv("10:00", "10:30"), true},
		{iv("10:00", "10:30"), iv("09:00", "09:59"), false},
	}
	for _, tc := range cases {
		if got := tc.a.Overlaps(tc.b); got != tc.want {
			t.Errorf("%s overlaps %s: expected %v, got %v", tc.a, tc.b, tc.want, got)
		}
		if got := tc.b.Overlaps(tc.a); got != tc.want {
			t.Errorf("overlap must be symmetric for %s and %s", tc.a, tc.b)
		}
	}
}

func TestStatus_Predicates(t *testing.T) {
	if !StatusAvailable.Bookable() || !StatusReAvailable.Bookable() {
		t.Error("available statuses must be bookable")
	}
	if StatusBooked.Bookable() || StatusCancelled.Bookable() {
		t.Error("booked and cancelled slots must not be bookable")
	}
	if StatusCancelled.Occupies() || !StatusBooked.Occupies() {
		t.Error("only cancelled slots release their interval")
	}
	if _, ok := ParseStatus("FREE"); ok {
		t.Error("expected FREE to be rejected")
	}
}

func TestTimeOfDay_JSON(t *testing.T) {
	data, err := json.Marshal(Interval{Start: MustTimeOfDay("08:05"), End: MustTimeOfDay("17:30")})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"start_time":"08:05","end_time":"17:30"}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var tpl Template
	if err := json.Unmarshal([]byte(`{"start_time":"09:00","end_time":"12:00","gap_minutes":15}`), &tpl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tpl.Start != 540 || tpl.End != 720 || tpl.GapMinutes != 15 {
		t.Errorf("unexpected template: %+v", tpl)
	}
	if err := json.Unmarshal([]byte(`{"start_time":"9am"}`), &tpl); err == nil {
		t.Error("expected error for malformed time")
	}
}

func TestTimeOfDay_PGRoundTrip(t *testing.T) {
	in := MustTimeOfDay("13:45")
	v, err := in.TimeValue()
	if err != nil {
		t.Fatalf("TimeValue: %v", err)
	}
	if v.Microseconds != int64(13*time.Hour+45*time.Minute)/int64(time.Microsecond) {
		t.Errorf("unexpected microseconds %d", v.Microseconds)
	}
	var out TimeOfDay
	if err := out.ScanTime(v); err != nil {
		t.Fatalf("ScanTime: %v", err)
	}
	if out != in {
		t.Errorf("expected %s, got %s", in, out)
	}
	if err := out.ScanTime(pgtype.Time{}); err == nil {
		t.Error("expected error scanning NULL")
	}
}
