package model

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStatus is returned when a status value is not part of the closed set
	ErrUnknownStatus = errors.New("unknown intervention status")

	// ErrUnknownSeverity is returned when a severity value is not part of the closed set
	ErrUnknownSeverity = errors.New("unknown intervention severity")
)

// Status is the lifecycle stage of an intervention.
// The zero value is not a valid status.
type Status uint8

const (
	// StatusPlanned is a scheduled intervention that has not started
	StatusPlanned Status = iota + 1
	// StatusOngoing is an intervention currently affecting services
	StatusOngoing
	// StatusUnderSurveillance means a fix is applied and being monitored
	StatusUnderSurveillance
	// StatusIdentified means the cause is known but not yet fixed
	StatusIdentified
	// StatusResolved is a closed intervention
	StatusResolved
)

// Severity is the impact classification of an intervention.
// The zero value is not a valid severity.
type Severity uint8

const (
	// SeverityPartialOutage means part of the service is unavailable
	SeverityPartialOutage Severity = iota + 1
	// SeverityFullOutage means the service is unavailable
	SeverityFullOutage
	// SeverityPerformanceIssue means the service is degraded
	SeverityPerformanceIssue
)

// variant is one row of an enumeration mapping table.
type variant struct {
	storage string
	class   string
	label   string
}

var statusTable = map[Status]variant{
	StatusPlanned:           {storage: "planned", class: "planned", label: "Planned"},
	StatusOngoing:           {storage: "ongoing", class: "ongoing", label: "Ongoing"},
	StatusUnderSurveillance: {storage: "under_surveillance", class: "under-surveillance", label: "Under surveillance"},
	StatusIdentified:        {storage: "identified", class: "identified", label: "Identified"},
	StatusResolved:          {storage: "resolved", class: "resolved", label: "Resolved"},
}

var severityTable = map[Severity]variant{
	SeverityPartialOutage:    {storage: "partial_outage", class: "partial-outage", label: "Partial outage"},
	SeverityFullOutage:       {storage: "full_outage", class: "full-outage", label: "Full outage"},
	SeverityPerformanceIssue: {storage: "performance_issue", class: "performance-issue", label: "Performance issue"},
}

// AllStatuses lists every status in declaration order
func AllStatuses() []Status {
	return []Status{StatusPlanned, StatusOngoing, StatusUnderSurveillance, StatusIdentified, StatusResolved}
}

// AllSeverities lists every severity in declaration order
func AllSeverities() []Severity {
	return []Severity{SeverityPartialOutage, SeverityFullOutage, SeverityPerformanceIssue}
}

// ParseStatus decodes a storage value into a Status.
func ParseStatus(s string) (Status, error) {
	for st, v := range statusTable {
		if v.storage == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// ParseStatusClass decodes a class token (as sent by admin clients) into a Status.
func ParseStatusClass(s string) (Status, error) {
	for st, v := range statusTable {
		if v.class == s {
			return st, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownStatus, s)
}

// Valid reports whether s is one of the declared statuses
func (s Status) Valid() bool {
	_, ok := statusTable[s]
	return ok
}

// StorageValue returns the value persisted in the store
func (s Status) StorageValue() string { return statusTable[s].storage }

// Class returns the kebab-case class token
func (s Status) Class() string { return statusTable[s].class }

// Label returns the human readable label
func (s Status) Label() string { return statusTable[s].label }

func (s Status) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Status(%d)", uint8(s))
	}
	return s.StorageValue()
}

// ParseSeverity decodes a storage value into a Severity.
func ParseSeverity(s string) (Severity, error) {
	for sev, v := range severityTable {
		if v.storage == s {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
}

// ParseSeverityClass decodes a class token (as sent by admin clients) into a Severity.
func ParseSeverityClass(s string) (Severity, error) {
	for sev, v := range severityTable {
		if v.class == s {
			return sev, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSeverity, s)
}

// Valid reports whether s is one of the declared severities
func (s Severity) Valid() bool {
	_, ok := severityTable[s]
	return ok
}

// StorageValue returns the value persisted in the store
func (s Severity) StorageValue() string { return severityTable[s].storage }

// Class returns the kebab-case class token
func (s Severity) Class() string { return severityTable[s].class }

// Label returns the human readable label
func (s Severity) Label() string { return severityTable[s].label }

// Rank orders severities by impact, highest first (full outage is 0).
func (s Severity) Rank() int {
	switch s {
	case SeverityFullOutage:
		return 0
	case SeverityPartialOutage:
		return 1
	case SeverityPerformanceIssue:
		return 2
	default:
		return 3
	}
}

func (s Severity) String() string {
	if !s.Valid() {
		return fmt.Sprintf("Severity(%d)", uint8(s))
	}
	return s.StorageValue()
}
