package slot

import (
	"fmt"
	"strconv"
	"strings"
)

// Template is a daily working window cut into fixed-length slots.
type Template struct {
	Start      TimeOfDay `json:"start_time"`
	End        TimeOfDay `json:"end_time"`
	GapMinutes int       `json:"gap_minutes"`
}

// Validate checks the template arithmetic. Errors wrap ErrInvalidTemplate.
func (t Template) Validate() error {
	switch {
	case !t.Start.Valid() || !t.End.Valid():
		return fmt.Errorf("%w: times must fall within one day", ErrInvalidTemplate)
	case t.End <= t.Start:
		return fmt.Errorf("%w: end %s is not after start %s", ErrInvalidTemplate, t.End, t.Start)
	case t.GapMinutes <= 0:
		return fmt.Errorf("%w: gap_minutes must be positive, got %d", ErrInvalidTemplate, t.GapMinutes)
	case int(t.End-t.Start) < t.GapMinutes:
		return fmt.Errorf("%w: window %s-%s is shorter than %d minutes", ErrInvalidTemplate, t.Start, t.End, t.GapMinutes)
	}
	return nil
}

// Window returns the template's covering interval.
func (t Template) Window() Interval {
	return Interval{Start: t.Start, End: t.End}
}

func (t Template) String() string {
	return fmt.Sprintf("%s-%s/%d", t.Start, t.End, t.GapMinutes)
}

// ParseTemplate parses the compact "HH:MM-HH:MM/gap" form used in config.
func ParseTemplate(s string) (Template, error) {
	window, gap, ok := strings.Cut(strings.TrimSpace(s), "/")
	if !ok {
		return Template{}, fmt.Errorf("%w: %q missing /gap", ErrInvalidTemplate, s)
	}
	from, to, ok := strings.Cut(window, "-")
	if !ok {
		return Template{}, fmt.Errorf("%w: %q missing start-end", ErrInvalidTemplate, s)
	}
	start, err := ParseTimeOfDay(from)
	if err != nil {
		return Template{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	end, err := ParseTimeOfDay(to)
	if err != nil {
		return Template{}, fmt.Errorf("%w: %v", ErrInvalidTemplate, err)
	}
	g, err := strconv.Atoi(gap)
	if err != nil {
		return Template{}, fmt.Errorf("%w: gap %q is not a number", ErrInvalidTemplate, gap)
	}
	t := Template{Start: start, End: end, GapMinutes: g}
	return t, t.Validate()
}

// ParseTemplates parses a comma separated list of compact templates.
func ParseTemplates(s string) ([]Template, error) {
	var out []Template
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		t, err := ParseTemplate(part)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Expand cuts every template into consecutive gap-length intervals, in input
// order. A trailing remainder shorter than the gap is dropped.
func Expand(templates []Template) ([]Interval, error) {
	var out []Interval
	for _, t := range templates {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		for start := t.Start; start.Add(t.GapMinutes) <= t.End; start = start.Add(t.GapMinutes) {
			out = append(out, Interval{Start: start, End: start.Add(t.GapMinutes)})
		}
	}
	return out, nil
}

// OverlappingTemplates returns the index pair of the first two templates
// whose windows overlap, or ok=false.
func OverlappingTemplates(templates []Template) (i, j int, ok bool) {
	for i = 0; i < len(templates); i++ {
		for j = i + 1; j < len(templates); j++ {
			if templates[i].Window().Overlaps(templates[j].Window()) {
				return i, j, true
			}
		}
	}
	return 0, 0, false
}
