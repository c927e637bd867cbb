package booking

import (
	"fmt"
	"time"

	"github.com/md-rashed-zaman/clinicbook/services/clinic-service/internal/availability"
)

type Config struct {
	Template availability.Template
	// Durations are the allowed session lengths in minutes.
	Durations []int
	Location  *time.Location
	// HorizonDays is the number of bookable days starting today. Zero disables the bound.
	HorizonDays int
}

func DefaultConfig() Config {
	return Config{
		Template:    availability.DefaultTemplate(),
		Durations:   []int{60, 90, 120},
		Location:    time.UTC,
		HorizonDays: 7,
	}
}

func (c Config) validate() error {
	if len(c.Template) == 0 {
		return fmt.Errorf("booking: empty daily template")
	}
	if len(c.Durations) == 0 {
		return fmt.Errorf("booking: no session durations configured")
	}
	for _, d := range c.Durations {
		if d <= 0 {
			return fmt.Errorf("booking: invalid session duration %d", d)
		}
	}
	if c.HorizonDays < 0 {
		return fmt.Errorf("booking: negative booking horizon")
	}
	return nil
}

func (c Config) allowsDuration(minutes int) bool {
	for _, d := range c.Durations {
		if d == minutes {
			return true
		}
	}
	return false
}
