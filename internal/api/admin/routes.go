// Package admin provides the JSON endpoints used to record services and
// interventions. Every successful write signals a site regeneration.
package admin

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/stacklok/status-page-server/internal/api/common"
	"github.com/stacklok/status-page-server/internal/model"
	"github.com/stacklok/status-page-server/internal/regen"
	"github.com/stacklok/status-page-server/internal/render"
	"github.com/stacklok/status-page-server/internal/store"
)

// formDateLayout is the value format of an HTML datetime-local input
const formDateLayout = "2006-01-02T15:04"

// Routes holds the admin handlers
type Routes struct {
	store    store.Store
	notifier regen.Notifier
}

// NewRoutes creates the admin handlers
func NewRoutes(st store.Store, notifier regen.Notifier) *Routes {
	return &Routes{store: st, notifier: notifier}
}

// Router creates a new router for the admin API
func Router(st store.Store, notifier regen.Notifier) http.Handler {
	routes := NewRoutes(st, notifier)

	r := chi.NewRouter()
	r.Get("/", routes.index)
	r.Post("/services", routes.createService)
	r.Post("/interventions", routes.createIntervention)
	r.Post("/regenerate", routes.regenerate)

	return r
}

func (rr *Routes) index(w http.ResponseWriter, r *http.Request) {
	services, err := rr.store.ListServicesWithCounts(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list services for admin index", "error", err)
		common.WriteErrorResponse(w, "Failed to list services", http.StatusInternalServerError)
		return
	}

	interventions, err := rr.store.ListInterventions(r.Context())
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to list interventions for admin index", "error", err)
		common.WriteErrorResponse(w, "Failed to list interventions", http.StatusInternalServerError)
		return
	}
	render.SortInterventions(interventions)

	resp := IndexResponse{
		Services:      make([]ServiceSummary, 0, len(services)),
		Interventions: make([]InterventionSummary, 0, len(interventions)),
	}
	for _, s := range services {
		resp.Services = append(resp.Services, ServiceSummary{
			ID:                s.ID,
			Name:              s.Name,
			URL:               s.URL,
			InterventionCount: s.InterventionCount,
		})
	}
	for _, i := range interventions {
		resp.Interventions = append(resp.Interventions, InterventionSummary{
			ID:                i.ID,
			Title:             i.Title,
			StartDate:         render.FormatDate(i.StartDate),
			Status:            i.Status.Class(),
			StatusLabel:       i.Status.Label(),
			Severity:          i.Severity.Class(),
			SeverityLabel:     i.Severity.Label(),
			EstimatedDuration: i.EstimatedDuration,
			Description:       i.Description,
		})
	}

	common.WriteJSONResponse(w, resp, http.StatusOK)
}

func (rr *Routes) createService(w http.ResponseWriter, r *http.Request) {
	var req CreateServiceRequest
	if err := common.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	svc := &model.Service{Name: strings.TrimSpace(req.Name), URL: strings.TrimSpace(req.URL)}
	if err := svc.Validate(); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := rr.store.InsertService(r.Context(), svc)
	if err != nil {
		slog.ErrorContext(r.Context(), "Failed to insert service", "name", svc.Name, "error", err)
		common.WriteErrorResponse(w, "Failed to create service", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Service created", "service_id", id, "name", svc.Name)
	rr.notifier.Notify()
	common.WriteJSONResponse(w, MutationResponse{ID: id, Message: "Service created"}, http.StatusCreated)
}

func (rr *Routes) createIntervention(w http.ResponseWriter, r *http.Request) {
	var req CreateInterventionRequest
	if err := common.DecodeJSONBody(w, r, &req); err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	intervention, err := req.toModel()
	if err != nil {
		common.WriteErrorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	id, err := rr.store.InsertIntervention(r.Context(), intervention, req.Services)
	switch {
	case errors.Is(err, store.ErrNotFound):
		common.WriteErrorResponse(w, err.Error(), http.StatusNotFound)
		return
	case err != nil:
		slog.ErrorContext(r.Context(), "Failed to insert intervention", "title", intervention.Title, "error", err)
		common.WriteErrorResponse(w, "Failed to create intervention", http.StatusInternalServerError)
		return
	}

	slog.InfoContext(r.Context(), "Intervention created",
		"intervention_id", id,
		"status", intervention.Status.String(),
		"services", len(req.Services),
	)
	rr.notifier.Notify()
	common.WriteJSONResponse(w, MutationResponse{ID: id, Message: "Intervention created"}, http.StatusCreated)
}

func (rr *Routes) regenerate(w http.ResponseWriter, r *http.Request) {
	slog.InfoContext(r.Context(), "Manual regeneration requested")
	rr.notifier.Notify()
	common.WriteJSONResponse(w, MutationResponse{Message: "Regeneration scheduled"}, http.StatusAccepted)
}

func (req *CreateInterventionRequest) toModel() (*model.Intervention, error) {
	start, err := parseStartDate(req.StartDate)
	if err != nil {
		return nil, err
	}

	status := model.StatusIdentified
	if req.Status != "" {
		if status, err = model.ParseStatusClass(req.Status); err != nil {
			return nil, err
		}
	}
	if req.Severity == "" {
		return nil, fmt.Errorf("severity is required")
	}
	severity, err := model.ParseSeverityClass(req.Severity)
	if err != nil {
		return nil, err
	}

	i := &model.Intervention{
		Title:             strings.TrimSpace(req.Title),
		Description:       req.Description,
		StartDate:         start,
		EstimatedDuration: req.EstimatedDuration,
		Status:            status,
		Severity:          severity,
		IsPlanned:         status == model.StatusPlanned,
	}
	if err := i.Validate(); err != nil {
		return nil, err
	}
	return i, nil
}

func parseStartDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("start date is required")
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(formDateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid start date %q", s)
	}
	return t, nil
}
