package market

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/irfndi/catalyst-ai-go/internal/config"
	"github.com/irfndi/catalyst-ai-go/internal/models"
)

// Calendar answers whether the local exchange is open. Weekends and
// configured holidays are closed all day.
type Calendar struct {
	loc      *time.Location
	preOpen  int
	open     int
	close    int
	holidays map[string]struct{}
}

// NewCalendar builds a calendar from "HH:MM" session times and "2006-01-02" holidays.
func NewCalendar(cfg config.MarketConfig) (*Calendar, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid market timezone %q: %w", cfg.Timezone, err)
	}

	c := &Calendar{loc: loc, holidays: make(map[string]struct{}, len(cfg.Holidays))}
	for _, field := range []struct {
		name string
		raw  string
		dst  *int
	}{
		{"pre_open", cfg.PreOpen, &c.preOpen},
		{"open", cfg.Open, &c.open},
		{"close", cfg.Close, &c.close},
	} {
		m, err := minuteOfDay(field.raw)
		if err != nil {
			return nil, fmt.Errorf("market.%s: %w", field.name, err)
		}
		*field.dst = m
	}
	if !(c.preOpen <= c.open && c.open < c.close) {
		return nil, fmt.Errorf("market session out of order: pre_open %s, open %s, close %s", cfg.PreOpen, cfg.Open, cfg.Close)
	}

	for _, h := range cfg.Holidays {
		day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(h), loc)
		if err != nil {
			return nil, fmt.Errorf("invalid market holiday %q: %w", h, err)
		}
		c.holidays[day.Format("2006-01-02")] = struct{}{}
	}
	return c, nil
}

func (c *Calendar) Location() *time.Location { return c.loc }

// IsTradingDay reports whether t falls on a weekday that is not a holiday.
func (c *Calendar) IsTradingDay(t time.Time) bool {
	local := t.In(c.loc)
	if local.Weekday() == time.Saturday || local.Weekday() == time.Sunday {
		return false
	}
	_, holiday := c.holidays[local.Format("2006-01-02")]
	return !holiday
}

func (c *Calendar) Mode(t time.Time) models.MarketMode {
	if !c.IsTradingDay(t) {
		return models.MarketClosed
	}
	local := t.In(c.loc)
	m := local.Hour()*60 + local.Minute()
	switch {
	case m >= c.open && m < c.close:
		return models.MarketOpen
	case m >= c.preOpen && m < c.open:
		return models.MarketPreOpen
	default:
		return models.MarketClosed
	}
}

// NextOpen returns the next regular-session open at or after t.
func (c *Calendar) NextOpen(t time.Time) time.Time {
	local := t.In(c.loc)
	day := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, c.loc)
	for i := 0; i < 366; i++ {
		candidate := day.AddDate(0, 0, i).Add(time.Duration(c.open) * time.Minute)
		if c.IsTradingDay(candidate) && !candidate.Before(local) {
			return candidate
		}
	}
	return day.AddDate(1, 0, 0)
}

func minuteOfDay(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}
