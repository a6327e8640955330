package integration

import (
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/status-page-server/internal/api/live"
	"github.com/stacklok/status-page-server/test-integration/status-page/helpers"
)

var _ = Describe("Published site", Label("site"), func() {
	var (
		tempDir      string
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("status-site-")
		configFile := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{SiteName: "Integration Status"})

		serverHelper = helpers.NewServerTestHelper(ctx, configFile)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		cleanupTempDir(tempDir)
	})

	It("publishes the site at startup", func() {
		serverHelper.EventuallyPublished("/", ContainSubstring("Integration Status"))
		serverHelper.EventuallyPublished("/feed.xml", ContainSubstring("<feed"))
	})

	It("republishes after admin mutations", func() {
		serviceID := serverHelper.CreateService("Webmail", "https://mail.example.org")
		serverHelper.EventuallyPublished("/", ContainSubstring("Webmail"))

		interventionID := serverHelper.CreateIntervention(map[string]any{
			"title":      "Webmail is unreachable",
			"start_date": time.Now().UTC().Format("2006-01-02T15:04"),
			"severity":   "full-outage",
			"services":   []int64{serviceID},
		})

		serverHelper.EventuallyPublished("/", ContainSubstring("Webmail is unreachable"))
		serverHelper.EventuallyPublished(fmt.Sprintf("/incidents/%d", interventionID),
			ContainSubstring("Webmail is unreachable"))
		serverHelper.EventuallyPublished("/feed.xml", ContainSubstring("Webmail is unreachable"))
	})

	It("keeps records across restarts", func() {
		serverHelper.CreateService("Calendar", "https://cal.example.org")
		serverHelper.EventuallyPublished("/", ContainSubstring("Calendar"))
		Expect(serverHelper.StopServer()).To(Succeed())

		serverHelper = helpers.NewServerTestHelper(ctx, filepath.Join(tempDir, "config.yaml"))
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)

		status, body, err := serverHelper.GetPage("/admin/")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(ContainSubstring("Calendar"))
	})

	It("rejects invalid interventions without republishing", func() {
		resp, err := serverHelper.PostAdmin("interventions", map[string]any{
			"title":      "Broken",
			"start_date": "not a date",
			"severity":   "full-outage",
		})
		Expect(err).NotTo(HaveOccurred())
		_ = resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))

		status, _, err := serverHelper.GetPage("/incidents/1")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusNotFound))
	})

	It("refreshes connected browsers after each render", func() {
		client := serverHelper.ConnectLive()
		defer client.Close()

		Expect(client.Next(5 * time.Second).Type).To(Equal(live.TypeConnected))

		serverHelper.CreateService("Forum", "https://forum.example.org")
		Expect(client.WaitFor(live.TypeRefresh, 10*time.Second).Message).NotTo(BeEmpty())
	})

	It("does not serve files outside the output directory", func() {
		status, _, err := serverHelper.GetPage("/..%2fconfig.yaml")
		Expect(err).NotTo(HaveOccurred())
		Expect(status).To(Equal(http.StatusNotFound))
	})
})
