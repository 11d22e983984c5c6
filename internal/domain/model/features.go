package model

// DailyActual is the observed inbound tonnage for one date.
type DailyActual struct {
	Date Date    `json:"date" db:"date"`
	Ton  float64 `json:"ton"  db:"ton"`
}

// DailyReservation aggregates booked deliveries for one date.
type DailyReservation struct {
	Date        Date    `json:"date"         db:"date"`
	ReservedTon float64 `json:"reserved_ton" db:"reserved_ton"`
	Trucks      int     `json:"trucks"       db:"trucks"`
}

// FeatureSet is the input snapshot handed to a predictor.
type FeatureSet struct {
	ActualsFrom  Date               `json:"actuals_from"`
	ActualsTo    Date               `json:"actuals_to"`
	Actuals      []DailyActual      `json:"actuals"`
	Reservations []DailyReservation `json:"reservations"`
}

// ReservationFor returns the reservation for d, if any.
func (f *FeatureSet) ReservationFor(d Date) (DailyReservation, bool) {
	for _, r := range f.Reservations {
		if r.Date.Equal(d) {
			return r, true
		}
	}
	return DailyReservation{}, false
}

// Prediction is one predictor output row.
type Prediction struct {
	Date         Date     `json:"date"`
	P50          float64  `json:"p50"`
	P10          *float64 `json:"p10,omitempty"`
	P90          *float64 `json:"p90,omitempty"`
	Unit         string   `json:"unit,omitempty"`
	ModelVersion string   `json:"model_version"`
}
