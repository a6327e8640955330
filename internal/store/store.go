// Package store defines the persistence contract for services and interventions.
package store

import (
	"context"
	"errors"

	"github.com/stacklok/status-page-server/internal/model"
)

//go:generate mockgen -destination=mocks/mock_store.go -package=mocks -source=store.go Reader,Store

var (
	// ErrNotFound is returned when a referenced record does not exist
	ErrNotFound = errors.New("not found")
)

// Reader is the read side consumed by the site renderer
type Reader interface {
	// ListServices returns every service, in no particular order
	ListServices(ctx context.Context) ([]model.Service, error)

	// ListInterventions returns every intervention, in no particular order
	ListInterventions(ctx context.Context) ([]model.Intervention, error)

	// ListServiceIDsForIntervention returns the ids of the services an intervention affects
	ListServiceIDsForIntervention(ctx context.Context, interventionID int64) ([]int64, error)
}

// Store is the full persistence contract used by the application.
// Implementations serialize concurrent access to their underlying handle.
type Store interface {
	Reader

	// InsertService stores a new service and returns its id
	InsertService(ctx context.Context, svc *model.Service) (int64, error)

	// InsertIntervention stores a new intervention and its service associations.
	// Either everything is stored or nothing is. Returns ErrNotFound when one of
	// the service ids does not exist.
	InsertIntervention(ctx context.Context, intervention *model.Intervention, serviceIDs []int64) (int64, error)

	// GetService returns a single service or ErrNotFound
	GetService(ctx context.Context, id int64) (*model.Service, error)

	// ListServicesWithCounts returns every service with the number of interventions referencing it
	ListServicesWithCounts(ctx context.Context) ([]model.ServiceWithCount, error)

	// Ping verifies the store is reachable
	Ping(ctx context.Context) error

	// Close releases the underlying handle
	Close() error
}
