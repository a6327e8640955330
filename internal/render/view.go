package render

import (
	"cmp"
	"fmt"
	"html/template"
	"slices"
	"strconv"
	"time"

	"github.com/stacklok/status-page-server/internal/model"
)

// Urgency classes of a service section
const (
	ClassError   = "error"
	ClassWarning = "warning"
	ClassSuccess = "success"
)

// DateLayout is the display format of every date on the site
const DateLayout = "2006-01-02 15:04:05 UTC"

// ServiceRef is a service as listed on an intervention
type ServiceRef struct {
	ID   int64
	Name string
	URL  string
}

// InterventionView is the display form of an intervention
type InterventionView struct {
	ID                int64
	Title             string
	Description       template.HTML
	StartDate         string
	EndDate           string
	EstimatedDuration string
	Status            string
	StatusClass       string
	Severity          string
	SeverityClass     string
	Services          []ServiceRef
	// Link is the detail page path relative to the output root
	Link string

	source model.Intervention
}

// ServiceView is one service section of the home page
type ServiceView struct {
	ID      int64
	Name    string
	URL     string
	Class   string
	Ongoing []InterventionView
	Planned []InterventionView

	severityRank int
}

// Site is everything a render pass derives from one store snapshot
type Site struct {
	SiteName string
	Title    string
	Services []ServiceView

	// Interventions holds every intervention, most recent first.
	// Ongoing, Planned and Past partition it by status.
	Interventions []InterventionView
	Ongoing       []InterventionView
	Planned       []InterventionView
	Past          []InterventionView
}

// InterventionPage is the data of a detail page
type InterventionPage struct {
	SiteName     string
	Title        string
	Intervention InterventionView
}

// Snapshot is the raw store content a Site is built from
type Snapshot struct {
	Services      []model.Service
	Interventions []model.Intervention
	// Links maps an intervention id to the ids of its services
	Links map[int64][]int64
}

// PageName returns the artifact name of an intervention detail page
func PageName(id int64) string {
	return strconv.FormatInt(id, 10) + ".html"
}

// FormatDate formats t for display
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// FormatDuration formats an estimated duration in minutes
func FormatDuration(minutes *int64) string {
	if minutes == nil {
		return "unknown"
	}
	return fmt.Sprintf("%d minutes", *minutes)
}

// SortInterventions orders interventions by start date, most recent first, then by id descending
func SortInterventions(interventions []model.Intervention) {
	slices.SortStableFunc(interventions, func(a, b model.Intervention) int {
		if c := b.StartDate.Compare(a.StartDate); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// BuildSite computes the site view. It fails with an *UnknownServiceError when an
// intervention is linked to a service missing from the snapshot.
func BuildSite(siteName string, snap *Snapshot, md *Markdown) (*Site, error) {
	servicesByID := make(map[int64]model.Service, len(snap.Services))
	for _, svc := range snap.Services {
		servicesByID[svc.ID] = svc
	}

	interventions := slices.Clone(snap.Interventions)
	SortInterventions(interventions)

	site := &Site{
		SiteName:      siteName,
		Title:         siteName,
		Interventions: make([]InterventionView, 0, len(interventions)),
	}
	byService := make(map[int64][]InterventionView, len(servicesByID))

	for _, i := range interventions {
		refs, err := resolveServices(i.ID, snap.Links[i.ID], servicesByID)
		if err != nil {
			return nil, err
		}

		description, err := md.Render(i.Description)
		if err != nil {
			return nil, fmt.Errorf("intervention %d: %w", i.ID, err)
		}

		view := newInterventionView(i, refs, description)
		site.Interventions = append(site.Interventions, view)
		for _, ref := range refs {
			byService[ref.ID] = append(byService[ref.ID], view)
		}

		switch {
		case i.IsOngoing():
			site.Ongoing = append(site.Ongoing, view)
		case i.IsUpcoming():
			site.Planned = append(site.Planned, view)
		default:
			site.Past = append(site.Past, view)
		}
	}

	site.Services = make([]ServiceView, 0, len(snap.Services))
	for _, svc := range snap.Services {
		site.Services = append(site.Services, newServiceView(svc, byService[svc.ID]))
	}
	slices.SortStableFunc(site.Services, compareServices)

	return site, nil
}

func resolveServices(interventionID int64, ids []int64, servicesByID map[int64]model.Service) ([]ServiceRef, error) {
	refs := make([]ServiceRef, 0, len(ids))
	seen := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		svc, ok := servicesByID[id]
		if !ok {
			return nil, &UnknownServiceError{InterventionID: interventionID, ServiceID: id}
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		refs = append(refs, ServiceRef{ID: svc.ID, Name: svc.Name, URL: svc.URL})
	}

	slices.SortFunc(refs, func(a, b ServiceRef) int {
		if c := cmp.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return refs, nil
}

func newInterventionView(i model.Intervention, refs []ServiceRef, description template.HTML) InterventionView {
	view := InterventionView{
		ID:                i.ID,
		Title:             i.Title,
		Description:       description,
		StartDate:         FormatDate(i.StartDate),
		EstimatedDuration: FormatDuration(i.EstimatedDuration),
		Status:            i.Status.Label(),
		StatusClass:       i.Status.Class(),
		Severity:          i.Severity.Label(),
		SeverityClass:     i.Severity.Class(),
		Services:          refs,
		Link:              PageName(i.ID),
		source:            i,
	}
	if i.EndDate != nil {
		view.EndDate = FormatDate(*i.EndDate)
	}
	return view
}

func newServiceView(svc model.Service, interventions []InterventionView) ServiceView {
	view := ServiceView{
		ID:           svc.ID,
		Name:         svc.Name,
		URL:          svc.URL,
		severityRank: model.Severity(0).Rank(),
	}

	for _, i := range interventions {
		switch {
		case i.source.IsOngoing():
			view.Ongoing = append(view.Ongoing, i)
		case i.source.IsUpcoming():
			view.Planned = append(view.Planned, i)
		default:
			continue
		}
		view.severityRank = min(view.severityRank, i.source.Severity.Rank())
	}

	switch {
	case len(view.Ongoing) > 0:
		view.Class = ClassError
	case len(view.Planned) > 0:
		view.Class = ClassWarning
	default:
		view.Class = ClassSuccess
	}
	return view
}

var classRank = map[string]int{ClassError: 0, ClassWarning: 1, ClassSuccess: 2}

func compareServices(a, b ServiceView) int {
	if c := cmp.Compare(classRank[a.Class], classRank[b.Class]); c != 0 {
		return c
	}
	if c := cmp.Compare(a.severityRank, b.severityRank); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Name, b.Name); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}
