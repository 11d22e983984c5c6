// Package forecast holds the pure forecasting rules: day-type classification,
// prediction coverage checks and day-type ratio computation.
package forecast

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/wastetrack/forecast-worker/internal/domain/model"
	"gopkg.in/yaml.v3"
)

// Calendar classifies dates into day types.
type Calendar struct {
	holidays map[model.Date]string
}

// NewCalendar builds a calendar from an explicit holiday set.
func NewCalendar(holidays map[model.Date]string) *Calendar {
	cp := make(map[model.Date]string, len(holidays))
	for d, name := range holidays {
		cp[d] = name
	}
	return &Calendar{holidays: cp}
}

// calendarFile is the YAML layout of a holiday file:
//
//	holidays:
//	  - date: 2025-01-01
//	    name: New Year's Day
type calendarFile struct {
	Holidays []struct {
		Date string `yaml:"date"`
		Name string `yaml:"name"`
	} `yaml:"holidays"`
}

// ParseCalendar decodes a YAML holiday list.
func ParseCalendar(raw []byte) (*Calendar, error) {
	var file calendarFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		if errors.Is(err, io.EOF) {
			return NewCalendar(nil), nil
		}
		return nil, fmt.Errorf("decode holiday calendar: %w", err)
	}

	holidays := make(map[model.Date]string, len(file.Holidays))
	for i, h := range file.Holidays {
		d, err := model.ParseDate(h.Date)
		if err != nil {
			return nil, fmt.Errorf("holiday %d: %w", i, err)
		}
		holidays[d] = h.Name
	}
	return &Calendar{holidays: holidays}, nil
}

// LoadCalendar reads a holiday file. An empty path yields a weekend-only calendar.
func LoadCalendar(path string) (*Calendar, error) {
	if path == "" {
		return NewCalendar(nil), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read holiday calendar: %w", err)
	}
	return ParseCalendar(raw)
}

// Classify returns the day type of d. Holidays win over weekends.
func (c *Calendar) Classify(d model.Date) model.DayType {
	if c != nil {
		if _, ok := c.holidays[d]; ok {
			return model.DayTypeHoliday
		}
	}
	switch d.Weekday() {
	case time.Saturday:
		return model.DayTypeSaturday
	case time.Sunday:
		return model.DayTypeSunday
	default:
		return model.DayTypeWeekday
	}
}

// HolidayName returns the configured name for a holiday date.
func (c *Calendar) HolidayName(d model.Date) (string, bool) {
	if c == nil {
		return "", false
	}
	name, ok := c.holidays[d]
	return name, ok
}

// Len returns the number of configured holidays.
func (c *Calendar) Len() int {
	if c == nil {
		return 0
	}
	return len(c.holidays)
}
