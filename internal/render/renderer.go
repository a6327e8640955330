// Package render builds the static status site from the store.
//
// A pass reads a snapshot of every service and intervention, derives the view
// (ordering, per-service classification, partitions), executes the page
// templates and writes the artifacts. Artifacts are staged as temp files and
// only renamed into place once every one of them was written, so a failed pass
// leaves the previous site untouched.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/stacklok/status-page-server/internal/otel"
	"github.com/stacklok/status-page-server/internal/store"
	"github.com/stacklok/status-page-server/internal/telemetry"
	"github.com/stacklok/status-page-server/internal/templates"
)

// Names of the generated artifacts
const (
	IndexFile = "index.html"
	FeedFile  = "feed.xml"
)

// TracerName is the name used for the renderer tracer
const TracerName = "github.com/stacklok/status-page-server/render"

// Notifier is told about every pass that completed successfully
type Notifier interface {
	Rendered()
}

// Renderer regenerates the whole site on each call to Render.
// Calls must not overlap; the regeneration coordinator guarantees it.
type Renderer struct {
	reader    store.Reader
	templates *templates.Set
	outputDir string

	siteName  string
	baseURL   string
	assetsDir string

	md       *Markdown
	tracer   trace.Tracer
	metrics  *telemetry.RenderMetrics
	notifier Notifier
}

// Option configures a Renderer
type Option func(*Renderer)

// WithSiteName sets the title used on pages and in the feed
func WithSiteName(name string) Option {
	return func(r *Renderer) {
		r.siteName = name
	}
}

// WithBaseURL sets the public URL prefixed to feed links
func WithBaseURL(baseURL string) Option {
	return func(r *Renderer) {
		r.baseURL = baseURL
	}
}

// WithAssetsDir copies static assets from dir instead of the embedded defaults
func WithAssetsDir(dir string) Option {
	return func(r *Renderer) {
		r.assetsDir = dir
	}
}

// WithTracer sets the tracer for render passes
func WithTracer(tracer trace.Tracer) Option {
	return func(r *Renderer) {
		r.tracer = tracer
	}
}

// WithMetrics sets the render metrics
func WithMetrics(m *telemetry.RenderMetrics) Option {
	return func(r *Renderer) {
		r.metrics = m
	}
}

// WithNotifier registers n to be told about successful passes
func WithNotifier(n Notifier) Option {
	return func(r *Renderer) {
		r.notifier = n
	}
}

// New creates a Renderer writing into outputDir
func New(reader store.Reader, tmpl *templates.Set, outputDir string, opts ...Option) (*Renderer, error) {
	if reader == nil {
		return nil, fmt.Errorf("store reader is required")
	}
	if tmpl == nil {
		return nil, fmt.Errorf("template set is required")
	}
	if outputDir == "" {
		return nil, fmt.Errorf("output directory is required")
	}

	r := &Renderer{
		reader:    reader,
		templates: tmpl,
		outputDir: outputDir,
		siteName:  "Status",
		md:        NewMarkdown(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Render performs one full pass. On error no artifact of this pass is visible.
func (r *Renderer) Render(ctx context.Context) (err error) {
	passID := uuid.NewString()
	start := time.Now()
	logger := slog.With("pass_id", passID)

	ctx, span := otel.StartSpan(ctx, r.tracer, "render.Pass",
		trace.WithAttributes(otel.AttrPassID.String(passID)))
	defer func() {
		otel.RecordError(span, err)
		span.End()
	}()

	logger.DebugContext(ctx, "Render pass started")

	snap, err := r.snapshot(ctx)
	if err != nil {
		return err
	}

	site, err := BuildSite(r.siteName, snap, r.md)
	if err != nil {
		var unknown *UnknownServiceError
		if errors.As(err, &unknown) {
			logger.ErrorContext(ctx, "Intervention references an unknown service",
				"intervention_id", unknown.InterventionID,
				"service_id", unknown.ServiceID,
			)
		}
		return fmt.Errorf("failed to build site: %w", err)
	}

	feed, err := BuildFeed(site, r.baseURL)
	if err != nil {
		return fmt.Errorf("failed to build feed: %w", err)
	}

	assets, err := templates.LoadAssets(r.assetsDir)
	if err != nil {
		return err
	}

	st, err := newStage(r.outputDir)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			st.abort()
		}
	}()

	if err = r.templates.Execute(func(t *template.Template) error {
		return r.stagePages(st, t, site)
	}); err != nil {
		return err
	}

	if err = st.add(FeedFile, []byte(feed)); err != nil {
		return err
	}

	if err = r.stageAssets(ctx, st, assets, site); err != nil {
		return err
	}

	written := st.count()
	if err = st.commit(); err != nil {
		return err
	}

	r.metrics.RecordArtifacts(ctx, written)
	span.SetAttributes(otel.AttrArtifactCount.Int(written))
	logger.InfoContext(ctx, "Site rendered",
		"artifacts", written,
		"services", len(site.Services),
		"interventions", len(site.Interventions),
		"duration", time.Since(start),
	)

	if r.notifier != nil {
		r.notifier.Rendered()
	}
	return nil
}

func (r *Renderer) snapshot(ctx context.Context) (*Snapshot, error) {
	services, err := r.reader.ListServices(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read services: %w", err)
	}

	interventions, err := r.reader.ListInterventions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read interventions: %w", err)
	}

	links := make(map[int64][]int64, len(interventions))
	for _, i := range interventions {
		ids, err := r.reader.ListServiceIDsForIntervention(ctx, i.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to read services of intervention %d: %w", i.ID, err)
		}
		links[i.ID] = ids
	}

	return &Snapshot{Services: services, Interventions: interventions, Links: links}, nil
}

func (r *Renderer) stagePages(st *stage, t *template.Template, site *Site) error {
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, templates.IndexTemplate, site); err != nil {
		return fmt.Errorf("failed to render %s: %w", IndexFile, err)
	}
	if err := st.add(IndexFile, buf.Bytes()); err != nil {
		return err
	}

	for _, view := range site.Interventions {
		buf.Reset()
		page := InterventionPage{
			SiteName:     site.SiteName,
			Title:        view.Title + " - " + site.SiteName,
			Intervention: view,
		}
		if err := t.ExecuteTemplate(&buf, templates.InterventionTemplate, page); err != nil {
			return fmt.Errorf("failed to render %s: %w", view.Link, err)
		}
		if err := st.add(view.Link, buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

// stageAssets adds the static assets. Generated artifacts take precedence over an asset of the same name.
func (*Renderer) stageAssets(ctx context.Context, st *stage, assets []templates.Asset, site *Site) error {
	generated := make(map[string]struct{}, len(site.Interventions)+2)
	generated[IndexFile] = struct{}{}
	generated[FeedFile] = struct{}{}
	for _, view := range site.Interventions {
		generated[view.Link] = struct{}{}
	}

	for _, a := range assets {
		if _, ok := generated[a.Path]; ok {
			slog.WarnContext(ctx, "Skipping asset shadowed by a generated page", "asset", a.Path)
			continue
		}
		if err := st.add(a.Path, a.Data); err != nil {
			return err
		}
	}
	return nil
}
