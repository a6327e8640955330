package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status  Status
		storage string
		class   string
		label   string
	}{
		{StatusPlanned, "planned", "planned", "Planned"},
		{StatusOngoing, "ongoing", "ongoing", "Ongoing"},
		{StatusUnderSurveillance, "under_surveillance", "under-surveillance", "Under surveillance"},
		{StatusIdentified, "identified", "identified", "Identified"},
		{StatusResolved, "resolved", "resolved", "Resolved"},
	}

	require.Len(t, tests, len(AllStatuses()))

	for _, tt := range tests {
		t.Run(tt.storage, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.storage, tt.status.StorageValue())
			assert.Equal(t, tt.class, tt.status.Class())
			assert.Equal(t, tt.label, tt.status.Label())

			parsed, err := ParseStatus(tt.storage)
			require.NoError(t, err)
			assert.Equal(t, tt.status, parsed)

			fromClass, err := ParseStatusClass(tt.class)
			require.NoError(t, err)
			assert.Equal(t, tt.status, fromClass)
		})
	}
}

func TestSeverityTable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		severity Severity
		storage  string
		class    string
		label    string
	}{
		{SeverityPartialOutage, "partial_outage", "partial-outage", "Partial outage"},
		{SeverityFullOutage, "full_outage", "full-outage", "Full outage"},
		{SeverityPerformanceIssue, "performance_issue", "performance-issue", "Performance issue"},
	}

	require.Len(t, tests, len(AllSeverities()))

	for _, tt := range tests {
		t.Run(tt.storage, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.storage, tt.severity.StorageValue())
			assert.Equal(t, tt.class, tt.severity.Class())
			assert.Equal(t, tt.label, tt.severity.Label())

			parsed, err := ParseSeverity(tt.storage)
			require.NoError(t, err)
			assert.Equal(t, tt.severity, parsed)

			fromClass, err := ParseSeverityClass(tt.class)
			require.NoError(t, err)
			assert.Equal(t, tt.severity, fromClass)
		})
	}
}

func TestParse_RejectsUnknownValues(t *testing.T) {
	t.Parallel()

	_, err := ParseStatus("investigating")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	// class tokens are not storage values
	_, err = ParseStatus("under-surveillance")
	assert.ErrorIs(t, err, ErrUnknownStatus)

	_, err = ParseSeverity("")
	assert.ErrorIs(t, err, ErrUnknownSeverity)

	_, err = ParseSeverityClass("full_outage")
	assert.ErrorIs(t, err, ErrUnknownSeverity)
}

func TestZeroValuesAreInvalid(t *testing.T) {
	t.Parallel()

	var st Status
	var sev Severity
	assert.False(t, st.Valid())
	assert.False(t, sev.Valid())
	assert.Equal(t, "Status(0)", st.String())
	assert.Equal(t, "Severity(0)", sev.String())
}

func TestSeverityRank(t *testing.T) {
	t.Parallel()

	assert.Less(t, SeverityFullOutage.Rank(), SeverityPartialOutage.Rank())
	assert.Less(t, SeverityPartialOutage.Rank(), SeverityPerformanceIssue.Rank())
}

func TestIntervention_Classification(t *testing.T) {
	t.Parallel()

	for _, st := range AllStatuses() {
		i := Intervention{Status: st}
		assert.Equal(t, st == StatusOngoing, i.IsOngoing(), st.String())
		assert.Equal(t, st == StatusPlanned || st == StatusIdentified || st == StatusUnderSurveillance,
			i.IsUpcoming(), st.String())
	}
}

func TestIntervention_Validate(t *testing.T) {
	t.Parallel()

	negative := int64(-5)
	valid := Intervention{
		Title:     "Database upgrade",
		StartDate: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Status:    StatusPlanned,
		Severity:  SeverityPartialOutage,
	}

	tests := []struct {
		name    string
		mutate  func(i *Intervention)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Intervention) {}},
		{name: "missing title", mutate: func(i *Intervention) { i.Title = "" }, wantErr: true},
		{name: "missing start date", mutate: func(i *Intervention) { i.StartDate = time.Time{} }, wantErr: true},
		{name: "invalid status", mutate: func(i *Intervention) { i.Status = 0 }, wantErr: true},
		{name: "invalid severity", mutate: func(i *Intervention) { i.Severity = 42 }, wantErr: true},
		{name: "negative duration", mutate: func(i *Intervention) { i.EstimatedDuration = &negative }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			i := valid
			tt.mutate(&i)
			err := i.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
