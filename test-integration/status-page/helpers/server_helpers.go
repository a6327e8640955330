// Package helpers drives a status page server from integration tests.
package helpers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/onsi/gomega"

	statusapp "github.com/stacklok/status-page-server/internal/app"
	"github.com/stacklok/status-page-server/internal/config"
)

// ServerTestHelper manages the status page server lifecycle for testing
type ServerTestHelper struct {
	ctx        context.Context
	configPath string
	address    string
	baseURL    string
	httpClient *http.Client
	app        *statusapp.StatusApp
	token      string
}

// NewServerTestHelper creates a helper for the server configured by configPath,
// listening on a free local port
func NewServerTestHelper(ctx context.Context, configPath string) *ServerTestHelper {
	address := freeAddress()
	return &ServerTestHelper{
		ctx:        ctx,
		configPath: configPath,
		address:    address,
		baseURL:    "http://" + address,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func freeAddress() string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	addr := l.Addr().String()
	gomega.Expect(l.Close()).To(gomega.Succeed())
	return addr
}

// StartServer starts the status page server programmatically
func (s *ServerTestHelper) StartServer() error {
	cfg, err := config.LoadConfig(config.WithConfigPath(s.configPath))
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	app, err := statusapp.NewStatusApp(s.ctx,
		statusapp.WithConfig(cfg),
		statusapp.WithAddress(s.address),
	)
	if err != nil {
		return fmt.Errorf("failed to build app: %w", err)
	}
	s.app = app

	go func() {
		if err := app.Start(); err != nil {
			// The test fails when it tries to connect
			fmt.Fprintf(os.Stderr, "Server start failed: %v\n", err)
		}
	}()

	return nil
}

// StopServer gracefully stops the status page server
func (s *ServerTestHelper) StopServer() error {
	if s.app != nil {
		return s.app.Stop(5 * time.Second)
	}
	return nil
}

// WaitForServerReady waits for the server to be ready to accept requests
func (s *ServerTestHelper) WaitForServerReady(timeout time.Duration) {
	gomega.Eventually(func() error {
		resp, err := s.httpClient.Get(s.baseURL + "/readiness")
		if err != nil {
			return err
		}
		defer func() {
			_ = resp.Body.Close()
		}()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}
		return nil
	}, timeout, 100*time.Millisecond).Should(gomega.Succeed(), "Server should be ready")
}

// WithToken sends token as a bearer token on admin requests
func (s *ServerTestHelper) WithToken(token string) *ServerTestHelper {
	s.token = token
	return s
}

// PostAdmin sends body as JSON to /admin/<path>
func (s *ServerTestHelper) PostAdmin(path string, body any) (*http.Response, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(s.ctx, http.MethodPost, s.baseURL+"/admin/"+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	return s.httpClient.Do(req)
}

// CreateService posts a service and returns its id
func (s *ServerTestHelper) CreateService(name, url string) int64 {
	return s.mustCreate("services", map[string]string{"name": name, "url": url})
}

// CreateIntervention posts an intervention and returns its id
func (s *ServerTestHelper) CreateIntervention(body map[string]any) int64 {
	return s.mustCreate("interventions", body)
}

func (s *ServerTestHelper) mustCreate(path string, body any) int64 {
	resp, err := s.PostAdmin(path, body)
	gomega.Expect(err).NotTo(gomega.HaveOccurred())
	defer func() {
		_ = resp.Body.Close()
	}()
	gomega.Expect(resp.StatusCode).To(gomega.Equal(http.StatusCreated))

	var created struct {
		ID int64 `json:"id"`
	}
	gomega.Expect(json.NewDecoder(resp.Body).Decode(&created)).To(gomega.Succeed())
	return created.ID
}

// GetPage fetches path from the published site and returns status and body
func (s *ServerTestHelper) GetPage(path string) (int, string, error) {
	resp, err := s.httpClient.Get(s.baseURL + path)
	if err != nil {
		return 0, "", err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	return resp.StatusCode, string(body), err
}

// EventuallyPublished waits until path is served and its body satisfies matcher
func (s *ServerTestHelper) EventuallyPublished(path string, matcher gomega.OmegaMatcher) {
	gomega.Eventually(func() (string, error) {
		status, body, err := s.GetPage(path)
		if err != nil {
			return "", err
		}
		if status != http.StatusOK {
			return "", fmt.Errorf("%s returned status %d", path, status)
		}
		return body, nil
	}, 10*time.Second, 100*time.Millisecond).Should(matcher)
}

// GetBaseURL returns the base URL of the server
func (s *ServerTestHelper) GetBaseURL() string {
	return s.baseURL
}

// GetApp returns the running application
func (s *ServerTestHelper) GetApp() *statusapp.StatusApp {
	return s.app
}

// ConfigOptions holds optional sections for WriteConfigYAML
type ConfigOptions struct {
	SiteName      string
	JWTSecretFile string
}

// WriteConfigYAML writes a configuration storing records in a SQLite file under dir
// and publishing the site to dir/public. It returns the config file path.
func WriteConfigYAML(dir string, opts ConfigOptions) string {
	siteName := opts.SiteName
	if siteName == "" {
		siteName = "Integration Status"
	}

	configContent := fmt.Sprintf(`siteName: %s
baseURL: https://status.example.org
outputDir: %s
storage:
  type: sqlite
  sqlite:
    path: %s
`, siteName, filepath.Join(dir, "public"), filepath.Join(dir, "data", "status.db"))

	if opts.JWTSecretFile != "" {
		configContent += fmt.Sprintf(`auth:
  mode: jwt
  jwt:
    secretFile: %s
    issuer: integration
`, opts.JWTSecretFile)
	}

	configPath := filepath.Join(dir, "config.yaml")
	gomega.Expect(os.WriteFile(configPath, []byte(configContent), 0o600)).To(gomega.Succeed())
	return configPath
}
