package admin

// CreateServiceRequest is the body of POST /admin/services
type CreateServiceRequest struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CreateInterventionRequest is the body of POST /admin/interventions.
// Status and severity are class tokens such as "under-surveillance" or "full-outage".
type CreateInterventionRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description,omitempty"`
	// StartDate is RFC 3339 or the "2006-01-02T15:04" form of an HTML datetime-local input, read as UTC
	StartDate         string  `json:"start_date"`
	EstimatedDuration *int64  `json:"estimated_duration,omitempty"`
	Status            string  `json:"status,omitempty"`
	Severity          string  `json:"severity"`
	Services          []int64 `json:"services"`
}

// MutationResponse is returned by every admin write
type MutationResponse struct {
	ID      int64  `json:"id,omitempty"`
	Message string `json:"message"`
}

// IndexResponse is the admin overview
type IndexResponse struct {
	Services      []ServiceSummary      `json:"services"`
	Interventions []InterventionSummary `json:"interventions"`
}

// ServiceSummary is a service with the number of interventions referencing it
type ServiceSummary struct {
	ID                int64  `json:"id"`
	Name              string `json:"name"`
	URL               string `json:"url"`
	InterventionCount int64  `json:"intervention_count"`
}

// InterventionSummary is an intervention as listed on the admin overview
type InterventionSummary struct {
	ID                int64   `json:"id"`
	Title             string  `json:"title"`
	StartDate         string  `json:"start_date"`
	Status            string  `json:"status"`
	StatusLabel       string  `json:"status_label"`
	Severity          string  `json:"severity"`
	SeverityLabel     string  `json:"severity_label"`
	EstimatedDuration *int64  `json:"estimated_duration,omitempty"`
	Description       *string `json:"description,omitempty"`
}
