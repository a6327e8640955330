package render

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/status-page-server/internal/model"
	"github.com/stacklok/status-page-server/internal/store/inmemory"
	"github.com/stacklok/status-page-server/internal/store/mocks"
	"github.com/stacklok/status-page-server/internal/templates"
)

type countingNotifier struct {
	n atomic.Int32
}

func (c *countingNotifier) Rendered() { c.n.Add(1) }

func defaultTemplates(t *testing.T) *templates.Set {
	t.Helper()
	s, err := templates.New("")
	require.NoError(t, err)
	return s
}

// readTree returns every file under dir keyed by its slash separated relative path
func readTree(t *testing.T, dir string) map[string]string {
	t.Helper()

	out := map[string]string{}
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

func seed(t *testing.T) *inmemory.Store {
	t.Helper()
	ctx := context.Background()

	s := inmemory.New()
	api, err := s.InsertService(ctx, &model.Service{Name: "API", URL: "https://api.example"})
	require.NoError(t, err)
	_, err = s.InsertService(ctx, &model.Service{Name: "Blog"})
	require.NoError(t, err)

	_, err = s.InsertIntervention(ctx, &model.Intervention{
		Title:       "Timeout spike",
		Description: ptr("Requests time out after *30s*"),
		StartDate:   t0,
		Status:      model.StatusOngoing,
		Severity:    model.SeverityFullOutage,
	}, []int64{api})
	require.NoError(t, err)
	return s
}

func TestNew_Validation(t *testing.T) {
	t.Parallel()

	tmpl := defaultTemplates(t)
	reader := inmemory.New()

	_, err := New(nil, tmpl, t.TempDir())
	assert.Error(t, err)
	_, err = New(reader, nil, t.TempDir())
	assert.Error(t, err)
	_, err = New(reader, tmpl, "")
	assert.Error(t, err)
}

func TestRender_WritesSite(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	notifier := &countingNotifier{}
	r, err := New(seed(t), defaultTemplates(t), out,
		WithSiteName("Example status"),
		WithBaseURL("https://status.example"),
		WithNotifier(notifier),
	)
	require.NoError(t, err)

	require.NoError(t, r.Render(context.Background()))

	files := readTree(t, out)
	assert.ElementsMatch(t, []string{"index.html", "1.html", "feed.xml", "style.css", "live.js"}, keys(files))

	index := files["index.html"]
	assert.Contains(t, index, "<title>Example status</title>")
	assert.Contains(t, index, `class="service error"`)
	assert.Contains(t, index, `class="service success"`)
	assert.Contains(t, index, "Timeout spike")
	assert.Less(t, strings.Index(index, ">API<"), strings.Index(index, ">Blog<"))

	detail := files["1.html"]
	assert.Contains(t, detail, "<em>30s</em>")
	assert.Contains(t, detail, model.SeverityFullOutage.Label())

	feed := files["feed.xml"]
	assert.Contains(t, feed, "https://status.example/1.html")
	assert.Contains(t, feed, FeedEntryID(1))

	assert.Equal(t, int32(1), notifier.n.Load())
}

func TestRender_Idempotent(t *testing.T) {
	t.Parallel()

	out := t.TempDir()
	r, err := New(seed(t), defaultTemplates(t), out, WithBaseURL("https://status.example"))
	require.NoError(t, err)

	require.NoError(t, r.Render(context.Background()))
	first := readTree(t, out)

	require.NoError(t, r.Render(context.Background()))
	assert.Equal(t, first, readTree(t, out))
}

func TestRender_UnknownServiceKeepsPriorArtifacts(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	reader := mocks.NewMockReader(ctrl)

	services := []model.Service{{ID: 1, Name: "API"}}
	interventions := []model.Intervention{intervention(10, model.StatusOngoing, model.SeverityFullOutage, t0)}

	gomock.InOrder(
		reader.EXPECT().ListServices(gomock.Any()).Return(services, nil),
		reader.EXPECT().ListInterventions(gomock.Any()).Return(interventions, nil),
		reader.EXPECT().ListServiceIDsForIntervention(gomock.Any(), int64(10)).Return([]int64{1}, nil),

		reader.EXPECT().ListServices(gomock.Any()).Return(services, nil),
		reader.EXPECT().ListInterventions(gomock.Any()).Return(interventions, nil),
		reader.EXPECT().ListServiceIDsForIntervention(gomock.Any(), int64(10)).Return([]int64{1, 99}, nil),
	)

	out := t.TempDir()
	notifier := &countingNotifier{}
	r, err := New(reader, defaultTemplates(t), out, WithNotifier(notifier))
	require.NoError(t, err)

	require.NoError(t, r.Render(context.Background()))
	before := readTree(t, out)

	err = r.Render(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownService)
	assert.Equal(t, before, readTree(t, out))
	assert.Equal(t, int32(1), notifier.n.Load())
}

func TestRender_StoreError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	reader := mocks.NewMockReader(ctrl)
	boom := errors.New("connection refused")
	reader.EXPECT().ListServices(gomock.Any()).Return(nil, boom)

	out := filepath.Join(t.TempDir(), "public")
	r, err := New(reader, defaultTemplates(t), out)
	require.NoError(t, err)

	err = r.Render(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.NoDirExists(t, out)
}

func TestRender_TemplateErrorLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, templates.IndexTemplate), []byte(`ok`), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, templates.InterventionTemplate),
		[]byte(`{{.Intervention.Missing}}`), 0o600))
	tmpl, err := templates.New(dir)
	require.NoError(t, err)

	out := t.TempDir()
	r, err := New(seed(t), tmpl, out)
	require.NoError(t, err)

	assert.Error(t, r.Render(context.Background()))
	assert.Empty(t, readTree(t, out))
}

func TestRender_GeneratedPagesShadowAssets(t *testing.T) {
	t.Parallel()

	assets := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(assets, "index.html"), []byte("static index"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(assets, "robots.txt"), []byte("User-agent: *"), 0o600))

	out := t.TempDir()
	r, err := New(seed(t), defaultTemplates(t), out, WithAssetsDir(assets))
	require.NoError(t, err)
	require.NoError(t, r.Render(context.Background()))

	files := readTree(t, out)
	assert.NotEqual(t, "static index", files["index.html"])
	assert.Equal(t, "User-agent: *", files["robots.txt"])
	assert.NotContains(t, files, "style.css")
}

func keys(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
