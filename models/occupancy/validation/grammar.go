package validation

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	ConnectionPrefix = "http://irail.be/connections/"
	StationPrefix    = "http://irail.be/stations/"
	VehiclePrefix    = "http://irail.be/vehicle/"
)

var (
	connectionPattern = regexp.MustCompile(`^http://irail\.be/connections/\d{7}/\d{8}/\w{4,7}$`)
	vehiclePattern    = regexp.MustCompile(`^http://irail\.be/vehicle/\w+$`)
	datePattern       = regexp.MustCompile(`^\d{8}$`)
)

// IsConnectionID matches http://irail.be/connections/<7 digits>/<8 digits>/<4-7 word chars>.
func IsConnectionID(s string) bool {
	return connectionPattern.MatchString(s)
}

// IsStationID only checks the iRail stations prefix; the remainder is free.
func IsStationID(s string) bool {
	return strings.HasPrefix(s, StationPrefix)
}

// IsVehicleID matches http://irail.be/vehicle/<one or more word chars>.
func IsVehicleID(s string) bool {
	return vehiclePattern.MatchString(s)
}

// DateCheck is the outcome of a date grammar check.
type DateCheck int

const (
	DateOK DateCheck = iota
	DateBadFormat
	DateMonthOutOfRange
	DateDayOutOfRange
	DateNotOnCalendar
)

// Reason is a short human description of the failed check, empty for DateOK
// and DateBadFormat.
func (d DateCheck) Reason() string {
	switch d {
	case DateMonthOutOfRange:
		return "month > 12"
	case DateDayOutOfRange:
		return "day > 31"
	case DateNotOnCalendar:
		return "not a calendar day"
	}
	return ""
}

// CheckDate applies the lax yyyymmdd grammar: exactly eight digits, month at
// most 12 and day at most 31. It is a plausibility check only, so 20240230 and
// 20240000 both pass.
func CheckDate(s string) DateCheck {
	if !datePattern.MatchString(s) {
		return DateBadFormat
	}
	// The pattern guarantees ASCII digits, Atoi cannot fail.
	month, _ := strconv.Atoi(s[4:6])
	if month > 12 {
		return DateMonthOutOfRange
	}
	day, _ := strconv.Atoi(s[6:8])
	if day > 31 {
		return DateDayOutOfRange
	}
	return DateOK
}

// IsDate reports whether s passes the lax date grammar.
func IsDate(s string) bool {
	return CheckDate(s) == DateOK
}

// CheckCalendarDate runs CheckDate and then also rejects month or day 00 and
// days that do not exist in the given month.
func CheckCalendarDate(s string) DateCheck {
	if res := CheckDate(s); res != DateOK {
		return res
	}
	parsed, err := time.Parse("20060102", s)
	if err != nil || parsed.Format("20060102") != s {
		return DateNotOnCalendar
	}
	return DateOK
}

// IsCalendarDate reports whether s passes the strict calendar check.
func IsCalendarDate(s string) bool {
	return CheckCalendarDate(s) == DateOK
}
