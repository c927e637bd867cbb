package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is a wall-clock time in minutes after midnight.
type TimeOfDay int

func ParseTimeOfDay(s string) (TimeOfDay, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(hh) == 0 || len(hh) > 2 || len(mm) != 2 {
		return 0, fmt.Errorf("invalid time of day %q (want HH:MM)", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return TimeOfDay(h*60 + m), nil
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

// On places t on the calendar day of day, in day's location.
func (t TimeOfDay) On(day time.Time) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, int(t)/60, int(t)%60, 0, 0, day.Location())
}

// Template is the ordered list of candidate start times for every working day.
type Template []TimeOfDay

// ParseTemplate reads a comma separated list such as "09:00,09:30,10:00".
// Times must be strictly ascending.
func ParseTemplate(raw string) (Template, error) {
	var tmpl Template
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		t, err := ParseTimeOfDay(part)
		if err != nil {
			return nil, err
		}
		if n := len(tmpl); n > 0 {
			switch prev := tmpl[n-1]; {
			case t == prev:
				return nil, fmt.Errorf("duplicate template time %s", t)
			case t < prev:
				return nil, fmt.Errorf("template time %s comes after %s; list times in ascending order", t, prev)
			}
		}
		tmpl = append(tmpl, t)
	}
	if len(tmpl) == 0 {
		return nil, fmt.Errorf("template is empty")
	}
	return tmpl, nil
}

func (tmpl Template) Contains(t TimeOfDay) bool {
	for _, c := range tmpl {
		if c == t {
			return true
		}
	}
	return false
}

func (tmpl Template) String() string {
	parts := make([]string, len(tmpl))
	for i, t := range tmpl {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// Block is a working period [Start, End) on the clock.
type Block struct {
	Start TimeOfDay
	End   TimeOfDay
}

// ParseBlocks reads "09:00-13:00,14:00-18:00".
func ParseBlocks(raw string) ([]Block, error) {
	var blocks []Block
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		from, to, ok := strings.Cut(part, "-")
		if !ok {
			return nil, fmt.Errorf("invalid block %q (want HH:MM-HH:MM)", part)
		}
		start, err := ParseTimeOfDay(from)
		if err != nil {
			return nil, err
		}
		end, err := ParseTimeOfDay(to)
		if err != nil {
			return nil, err
		}
		if end <= start {
			return nil, fmt.Errorf("block %q ends before it starts", part)
		}
		blocks = append(blocks, Block{Start: start, End: end})
	}
	if len(blocks) == 0 {
		return nil, fmt.Errorf("no blocks configured")
	}
	return blocks, nil
}

// TemplateFromBlocks enumerates start times every step inside each block.
// Blocks must be given in order and must not overlap.
func TemplateFromBlocks(blocks []Block, step time.Duration) (Template, error) {
	if step <= 0 || step%time.Minute != 0 {
		return nil, fmt.Errorf("step must be a positive whole number of minutes")
	}
	stepMin := TimeOfDay(step / time.Minute)

	var tmpl Template
	var prevEnd TimeOfDay = -1
	for _, b := range blocks {
		if b.Start < prevEnd {
			return nil, fmt.Errorf("block %s-%s overlaps the previous block", b.Start, b.End)
		}
		for t := b.Start; t < b.End; t += stepMin {
			tmpl = append(tmpl, t)
		}
		prevEnd = b.End
	}
	if len(tmpl) == 0 {
		return nil, fmt.Errorf("blocks produce no slots")
	}
	return tmpl, nil
}

// DefaultTemplate is the clinic day: 09:00-12:30 and 14:00-17:30 every 30 minutes.
func DefaultTemplate() Template {
	tmpl, _ := TemplateFromBlocks([]Block{
		{Start: 9 * 60, End: 13 * 60},
		{Start: 14 * 60, End: 18 * 60},
	}, 30*time.Minute)
	return tmpl
}
