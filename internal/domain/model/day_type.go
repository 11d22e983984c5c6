package model

import (
	"fmt"
	"strings"
	"time"
)

// DayType is a categorical classification of a calendar date.
//
//nolint:recvcheck // UnmarshalText needs pointer receiver, Valid needs value receiver
type DayType string

const (
	// DayTypeWeekday is Monday to Friday when not a holiday.
	DayTypeWeekday DayType = "weekday"
	// DayTypeSaturday is a Saturday that is not a holiday.
	DayTypeSaturday DayType = "saturday"
	// DayTypeSunday is a Sunday that is not a holiday.
	DayTypeSunday DayType = "sunday"
	// DayTypeHoliday is any date listed in the holiday calendar.
	DayTypeHoliday DayType = "holiday"
)

// AllDayTypes lists day types in reporting order.
func AllDayTypes() []DayType {
	return []DayType{DayTypeWeekday, DayTypeSaturday, DayTypeSunday, DayTypeHoliday}
}

// Valid returns true if the DayType is known.
func (d DayType) Valid() bool {
	switch d {
	case DayTypeWeekday, DayTypeSaturday, DayTypeSunday, DayTypeHoliday:
		return true
	default:
		return false
	}
}

// UnmarshalText implements encoding.TextUnmarshaler for env parsing.
func (d *DayType) UnmarshalText(text []byte) error {
	v := DayType(strings.ToLower(strings.TrimSpace(string(text))))
	if !v.Valid() {
		return fmt.Errorf("invalid DayType: %q", v)
	}
	*d = v
	return nil
}

// DayTypeStat is the mean inbound tonnage of one day type over a lookback window.
type DayTypeStat struct {
	DayType    DayType `json:"day_type"`
	MeanTon    float64 `json:"mean_ton"`
	SampleDays int     `json:"sample_days"`
}

// DayTypeRatio is a persisted ratio row for one epoch.
type DayTypeRatio struct {
	EffectiveFrom   Date      `json:"effective_from"    db:"effective_from"`
	DayType         DayType   `json:"day_type"          db:"day_type"`
	MeanTon         float64   `json:"mean_ton"          db:"mean_ton"`
	Ratio           float64   `json:"ratio"             db:"ratio"`
	SampleDays      int       `json:"sample_days"       db:"sample_days"`
	LookbackYears   int       `json:"lookback_years"    db:"lookback_years"`
	BaselineDayType DayType   `json:"baseline_day_type" db:"baseline_day_type"`
	ComputedAt      time.Time `json:"computed_at"       db:"computed_at"`
}
