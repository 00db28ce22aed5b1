// Package validation turns untrusted occupancy submissions into validated
// feedback records.
package validation

import (
	"strings"

	"github.com/iRail/occupancy-api/errors"
	"github.com/iRail/occupancy-api/types"
)

// Validator checks occupancy submissions. The zero value applies the lax date
// grammar; it holds no mutable state and is safe for concurrent use.
type Validator struct {
	// StrictDates additionally rejects dates that are not real calendar days
	// (month or day 00, 20240230, ...).
	StrictDates bool
}

// NewValidator creates a Validator.
func NewValidator(strictDates bool) *Validator {
	return &Validator{StrictDates: strictDates}
}

// Validate runs the checks in a fixed order and stops at the first failure:
// required fields, occupancy vocabulary, connection, origin station, vehicle,
// date. The returned record carries the submitted strings unchanged.
func (v *Validator) Validate(sub types.OccupancySubmission) (*types.OccupancyFeedback, error) {
	if missing := missingFields(sub); len(missing) > 0 {
		return nil, errors.MissingFields("missing: " + strings.Join(missing, ", "))
	}

	occupancy := types.OccupancyLevel(sub[types.FieldOccupancy])
	if !occupancy.IsValid() {
		return nil, errors.InvalidOccupancy(string(occupancy))
	}

	connection := sub[types.FieldConnection]
	if !IsConnectionID(connection) {
		return nil, errors.InvalidConnectionID(connection)
	}

	from := sub[types.FieldFrom]
	if !IsStationID(from) {
		return nil, errors.InvalidStationID(from)
	}

	vehicle := sub[types.FieldVehicle]
	if !IsVehicleID(vehicle) {
		return nil, errors.InvalidVehicleID(vehicle)
	}

	date := sub[types.FieldDate]
	check := CheckDate(date)
	if check == DateOK && v.StrictDates {
		check = CheckCalendarDate(date)
	}
	if check != DateOK {
		return nil, errors.InvalidDate(date, check.Reason())
	}

	feedback := &types.OccupancyFeedback{
		Connection: connection,
		From:       from,
		Date:       date,
		Vehicle:    vehicle,
		Occupancy:  occupancy,
	}
	if to, ok := sub[types.FieldTo]; ok {
		feedback.To = &to
	}
	return feedback, nil
}

func missingFields(sub types.OccupancySubmission) []string {
	var missing []string
	for _, field := range types.RequiredOccupancyFields {
		if _, ok := sub[field]; !ok {
			missing = append(missing, field)
		}
	}
	return missing
}
