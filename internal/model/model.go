// Package model contains the records the status page is built from.
package model

import (
	"fmt"
	"time"
)

// Service is a monitored system the status page reports on
type Service struct {
	ID   int64
	Name string
	URL  string
}

// ServiceWithCount is a service together with the number of interventions referencing it
type ServiceWithCount struct {
	Service
	InterventionCount int64
}

// Intervention is a maintenance or outage event affecting zero or more services
type Intervention struct {
	ID          int64
	Title       string
	Description *string
	StartDate   time.Time

	// EstimatedDuration is expressed in minutes
	EstimatedDuration *int64
	EndDate           *time.Time

	Status   Status
	Severity Severity

	// IsPlanned is redundant with Status and kept for storage compatibility.
	// Nothing in the rendering path reads it.
	IsPlanned bool
}

// IsOngoing reports whether the intervention is currently affecting its services.
// The decision is based on the status alone, never on the clock.
func (i *Intervention) IsOngoing() bool {
	return i.Status == StatusOngoing
}

// IsUpcoming reports whether the intervention is neither ongoing nor resolved
// and therefore still warrants display as a warning.
func (i *Intervention) IsUpcoming() bool {
	return i.Status != StatusOngoing && i.Status != StatusResolved
}

// Validate checks the fields required before an intervention is inserted
func (i *Intervention) Validate() error {
	if i.Title == "" {
		return fmt.Errorf("title is required")
	}
	if i.StartDate.IsZero() {
		return fmt.Errorf("start date is required")
	}
	if !i.Status.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownStatus, i.Status)
	}
	if !i.Severity.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownSeverity, i.Severity)
	}
	if i.EstimatedDuration != nil && *i.EstimatedDuration < 0 {
		return fmt.Errorf("estimated duration cannot be negative")
	}
	return nil
}

// Validate checks the fields required before a service is inserted
func (s *Service) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	return nil
}
