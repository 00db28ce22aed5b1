package validation

import (
	"testing"

	apperrors "github.com/iRail/occupancy-api/errors"
	"github.com/iRail/occupancy-api/logger"
	"github.com/iRail/occupancy-api/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	logger.IsTest = true
}

func validSubmission() types.OccupancySubmission {
	return types.OccupancySubmission{
		types.FieldConnection: "http://irail.be/connections/8821006/20240101/IC1832",
		types.FieldFrom:       "http://irail.be/stations/NMBS/008821006",
		types.FieldDate:       "20240101",
		types.FieldVehicle:    "http://irail.be/vehicle/IC1832",
		types.FieldOccupancy:  string(types.OccupancyHigh),
	}
}

func requireErrorType(t *testing.T, err error, want apperrors.ErrorType) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := err.(*apperrors.AppError)
	require.True(t, ok, "expected *AppError, got %T", err)
	assert.Equal(t, want, appErr.Type)
	assert.Equal(t, 400, appErr.GetHTTPStatus())
}

func TestValidate_Success(t *testing.T) {
	v := NewValidator(false)

	sub := validSubmission()
	sub[types.FieldTo] = "http://irail.be/stations/NMBS/008892007"

	record, err := v.Validate(sub)
	require.NoError(t, err)
	assert.Equal(t, sub[types.FieldConnection], record.Connection)
	assert.Equal(t, sub[types.FieldFrom], record.From)
	require.NotNil(t, record.To)
	assert.Equal(t, sub[types.FieldTo], *record.To)
	assert.Equal(t, sub[types.FieldDate], record.Date)
	assert.Equal(t, sub[types.FieldVehicle], record.Vehicle)
	assert.Equal(t, types.OccupancyHigh, record.Occupancy)
	assert.Len(t, record.PostInfo(), 6)
}

func TestValidate_WithoutDestination(t *testing.T) {
	record, err := NewValidator(false).Validate(validSubmission())
	require.NoError(t, err)
	assert.False(t, record.HasDestination())
	assert.NotContains(t, record.PostInfo(), types.FieldTo)
}

func TestValidate_EmptyDestinationIsKept(t *testing.T) {
	sub := validSubmission()
	sub[types.FieldTo] = ""

	record, err := NewValidator(false).Validate(sub)
	require.NoError(t, err)
	assert.True(t, record.HasDestination())
	require.NotNil(t, record.To)
	assert.Empty(t, *record.To)
	assert.Equal(t, "", record.PostInfo()[types.FieldTo])
	assert.Len(t, record.PostInfo(), 6)
}

func TestValidate_PreservesValues(t *testing.T) {
	sub := validSubmission()
	sub[types.FieldVehicle] = "http://irail.be/vehicle/ic1832"

	record, err := NewValidator(false).Validate(sub)
	require.NoError(t, err)
	assert.Equal(t, "http://irail.be/vehicle/ic1832", record.Vehicle)
}

func TestValidate_MissingFields(t *testing.T) {
	v := NewValidator(false)

	for _, field := range types.RequiredOccupancyFields {
		t.Run(field, func(t *testing.T) {
			sub := validSubmission()
			delete(sub, field)

			record, err := v.Validate(sub)
			assert.Nil(t, record)
			requireErrorType(t, err, apperrors.MissingFieldsError)
			assert.Contains(t, err.(*apperrors.AppError).Detail, field)
		})
	}

	t.Run("empty submission", func(t *testing.T) {
		_, err := v.Validate(types.OccupancySubmission{})
		requireErrorType(t, err, apperrors.MissingFieldsError)
	})

	t.Run("nil submission", func(t *testing.T) {
		_, err := v.Validate(nil)
		requireErrorType(t, err, apperrors.MissingFieldsError)
	})
}

func TestValidate_InvalidOccupancy(t *testing.T) {
	for _, value := range []string{
		"HIGH",
		"high",
		"http://api.irail.be/terms/high",
		"https://api.irail.be/terms/High",
		"https://api.irail.be/terms/high ",
		"https://api.irail.be/terms/crowded",
		"",
	} {
		t.Run(value, func(t *testing.T) {
			sub := validSubmission()
			sub[types.FieldOccupancy] = value

			_, err := NewValidator(false).Validate(sub)
			requireErrorType(t, err, apperrors.InvalidOccupancyError)
		})
	}
}

func TestValidate_CheckOrder(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(types.OccupancySubmission)
		want   apperrors.ErrorType
	}{
		{
			name: "occupancy is checked before connection",
			mutate: func(s types.OccupancySubmission) {
				s[types.FieldOccupancy] = "busy"
				s[types.FieldConnection] = "bad"
			},
			want: apperrors.InvalidOccupancyError,
		},
		{
			name: "connection is checked before station",
			mutate: func(s types.OccupancySubmission) {
				s[types.FieldConnection] = "http://irail.be/connections/123/20240101/IC1832"
				s[types.FieldFrom] = "bad"
			},
			want: apperrors.InvalidConnectionIDError,
		},
		{
			name: "station is checked before vehicle",
			mutate: func(s types.OccupancySubmission) {
				s[types.FieldFrom] = "008821006"
				s[types.FieldVehicle] = "IC1832"
			},
			want: apperrors.InvalidStationIDError,
		},
		{
			name: "vehicle is checked before date",
			mutate: func(s types.OccupancySubmission) {
				s[types.FieldVehicle] = "IC1832"
				s[types.FieldDate] = "yesterday"
			},
			want: apperrors.InvalidVehicleIDError,
		},
		{
			name: "date",
			mutate: func(s types.OccupancySubmission) {
				s[types.FieldDate] = "20241301"
			},
			want: apperrors.InvalidDateError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub := validSubmission()
			tt.mutate(sub)
			_, err := NewValidator(false).Validate(sub)
			requireErrorType(t, err, tt.want)
		})
	}
}

func TestValidate_DateMessages(t *testing.T) {
	tests := map[string]string{
		"2024-01-01": "Invalid date",
		"20241301":   "Invalid date (month > 12)",
		"20240132":   "Invalid date (day > 31)",
	}

	for date, message := range tests {
		t.Run(date, func(t *testing.T) {
			sub := validSubmission()
			sub[types.FieldDate] = date

			_, err := NewValidator(false).Validate(sub)
			requireErrorType(t, err, apperrors.InvalidDateError)
			assert.Equal(t, message, err.(*apperrors.AppError).Message)
		})
	}
}

func TestValidate_LaxDatesAcceptedByDefault(t *testing.T) {
	sub := validSubmission()
	sub[types.FieldDate] = "20240230"

	record, err := NewValidator(false).Validate(sub)
	require.NoError(t, err)
	assert.Equal(t, "20240230", record.Date)
}

func TestValidate_StrictDates(t *testing.T) {
	v := NewValidator(true)

	sub := validSubmission()
	sub[types.FieldDate] = "20240230"
	_, err := v.Validate(sub)
	requireErrorType(t, err, apperrors.InvalidDateError)
	assert.Equal(t, "Invalid date (not a calendar day)", err.(*apperrors.AppError).Message)

	sub[types.FieldDate] = "20240229"
	_, err = v.Validate(sub)
	assert.NoError(t, err)
}

func TestValidate_Concurrent(t *testing.T) {
	v := NewValidator(false)
	done := make(chan struct{})

	for i := 0; i < 16; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 100; j++ {
				_, err := v.Validate(validSubmission())
				assert.NoError(t, err)
			}
		}()
	}
	for i := 0; i < 16; i++ {
		<-done
	}
}
