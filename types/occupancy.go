package types

import "time"

// OccupancyLevel is a controlled-vocabulary crowding indicator, expressed as
// the canonical iRail terms URI.
type OccupancyLevel string

const (
	OccupancyLow    OccupancyLevel = "https://api.irail.be/terms/low"
	OccupancyMedium OccupancyLevel = "https://api.irail.be/terms/medium"
	OccupancyHigh   OccupancyLevel = "https://api.irail.be/terms/high"
)

// IsValid reports whether the level is one of the three canonical URIs.
// Comparison is exact: no case folding, no trimming.
func (l OccupancyLevel) IsValid() bool {
	switch l {
	case OccupancyLow, OccupancyMedium, OccupancyHigh:
		return true
	}
	return false
}

// Name returns LOW, MEDIUM or HIGH, or an empty string for unknown levels.
func (l OccupancyLevel) Name() string {
	switch l {
	case OccupancyLow:
		return "LOW"
	case OccupancyMedium:
		return "MEDIUM"
	case OccupancyHigh:
		return "HIGH"
	}
	return ""
}

// Submission field names.
const (
	FieldConnection = "connection"
	FieldFrom       = "from"
	FieldTo         = "to"
	FieldDate       = "date"
	FieldVehicle    = "vehicle"
	FieldOccupancy  = "occupancy"
)

// RequiredOccupancyFields lists the fields every submission must carry, in the
// order they are reported when missing.
var RequiredOccupancyFields = []string{FieldConnection, FieldFrom, FieldDate, FieldVehicle, FieldOccupancy}

// OccupancySubmission is the untrusted field map decoded from a request body.
// Every value is text; absent and null fields are simply not in the map.
type OccupancySubmission map[string]string

// OccupancyFeedback is a validated occupancy report. It is only produced by
// the validator, and its values are the submitted strings unchanged. To is nil
// when no destination was sent; an empty string that was sent is kept.
type OccupancyFeedback struct {
	ID         string         `json:"id,omitempty"`
	Connection string         `json:"connection"`
	From       string         `json:"from"`
	To         *string        `json:"to,omitempty"`
	Date       string         `json:"date"`
	Vehicle    string         `json:"vehicle"`
	Occupancy  OccupancyLevel `json:"occupancy"`
	CreatedAt  time.Time      `json:"created_at,omitempty"`
}

// HasDestination reports whether the optional "to" field was sent, even empty.
func (f *OccupancyFeedback) HasDestination() bool {
	return f.To != nil
}

// PostInfo returns the forwarded fields in the shape written to the audit log.
func (f *OccupancyFeedback) PostInfo() map[string]string {
	info := map[string]string{
		FieldConnection: f.Connection,
		FieldFrom:       f.From,
		FieldDate:       f.Date,
		FieldVehicle:    f.Vehicle,
		FieldOccupancy:  string(f.Occupancy),
	}
	if f.HasDestination() {
		info[FieldTo] = *f.To
	}
	return info
}

// OccupancyEvent is published on the live feed for every accepted report.
type OccupancyEvent struct {
	ID        string             `json:"id"`
	Type      string             `json:"type"`
	Timestamp time.Time          `json:"timestamp"`
	Feedback  *OccupancyFeedback `json:"feedback"`
}

// EventTypeOccupancyReported is the only event type on the occupancy feed.
const EventTypeOccupancyReported = "OCCUPANCY_REPORTED"
