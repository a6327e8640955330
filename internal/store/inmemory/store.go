// Package inmemory provides a process-local implementation of store.Store
package inmemory

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/stacklok/status-page-server/internal/model"
	"github.com/stacklok/status-page-server/internal/store"
)

// Store keeps services and interventions in maps guarded by a single mutex
type Store struct {
	mu sync.RWMutex

	services      map[int64]model.Service
	interventions map[int64]model.Intervention
	// intervention id -> service ids, in insertion order
	links map[int64][]int64

	nextServiceID      int64
	nextInterventionID int64
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store
func New() *Store {
	return &Store{
		services:           map[int64]model.Service{},
		interventions:      map[int64]model.Intervention{},
		links:              map[int64][]int64{},
		nextServiceID:      1,
		nextInterventionID: 1,
	}
}

// ListServices implements store.Reader
func (s *Store) ListServices(_ context.Context) ([]model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Service, 0, len(s.services))
	for _, svc := range s.services {
		out = append(out, svc)
	}
	return out, nil
}

// ListInterventions implements store.Reader
func (s *Store) ListInterventions(_ context.Context) ([]model.Intervention, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.Intervention, 0, len(s.interventions))
	for _, i := range s.interventions {
		out = append(out, cloneIntervention(i))
	}
	return out, nil
}

// ListServiceIDsForIntervention implements store.Reader
func (s *Store) ListServiceIDsForIntervention(_ context.Context, interventionID int64) ([]int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.links[interventionID]), nil
}

// InsertService implements store.Store
func (s *Store) InsertService(_ context.Context, svc *model.Service) (int64, error) {
	if err := svc.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextServiceID
	s.nextServiceID++

	stored := *svc
	stored.ID = id
	s.services[id] = stored
	return id, nil
}

// InsertIntervention implements store.Store
func (s *Store) InsertIntervention(
	_ context.Context, intervention *model.Intervention, serviceIDs []int64,
) (int64, error) {
	if err := intervention.Validate(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sid := range serviceIDs {
		if _, ok := s.services[sid]; !ok {
			return 0, fmt.Errorf("service %d: %w", sid, store.ErrNotFound)
		}
	}

	id := s.nextInterventionID
	s.nextInterventionID++

	stored := cloneIntervention(*intervention)
	stored.ID = id
	s.interventions[id] = stored

	ids := make([]int64, 0, len(serviceIDs))
	for _, sid := range serviceIDs {
		if !slices.Contains(ids, sid) {
			ids = append(ids, sid)
		}
	}
	s.links[id] = ids

	return id, nil
}

// GetService implements store.Store
func (s *Store) GetService(_ context.Context, id int64) (*model.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, ok := s.services[id]
	if !ok {
		return nil, fmt.Errorf("service %d: %w", id, store.ErrNotFound)
	}
	return &svc, nil
}

// ListServicesWithCounts implements store.Store
func (s *Store) ListServicesWithCounts(_ context.Context) ([]model.ServiceWithCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[int64]int64, len(s.services))
	for _, sids := range s.links {
		for _, sid := range sids {
			counts[sid]++
		}
	}

	out := make([]model.ServiceWithCount, 0, len(s.services))
	for id, svc := range s.services {
		out = append(out, model.ServiceWithCount{Service: svc, InterventionCount: counts[id]})
	}
	slices.SortFunc(out, func(a, b model.ServiceWithCount) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

// Ping implements store.Store
func (*Store) Ping(_ context.Context) error {
	return nil
}

// Close implements store.Store
func (*Store) Close() error {
	return nil
}

func cloneIntervention(i model.Intervention) model.Intervention {
	if i.Description != nil {
		d := *i.Description
		i.Description = &d
	}
	if i.EstimatedDuration != nil {
		d := *i.EstimatedDuration
		i.EstimatedDuration = &d
	}
	if i.EndDate != nil {
		d := *i.EndDate
		i.EndDate = &d
	}
	return i
}
