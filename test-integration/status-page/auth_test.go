package integration

import (
	"net/http"
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/stacklok/status-page-server/internal/auth"
	"github.com/stacklok/status-page-server/test-integration/status-page/helpers"
)

var _ = Describe("Admin authentication", Label("auth"), func() {
	var (
		tempDir      string
		secret       = []byte("integration-secret-0123456789abcdef")
		serverHelper *helpers.ServerTestHelper
	)

	BeforeEach(func() {
		tempDir = createTempDir("status-auth-")
		secretFile := filepath.Join(tempDir, "jwt-secret")
		Expect(os.WriteFile(secretFile, secret, 0o600)).To(Succeed())

		configFile := helpers.WriteConfigYAML(tempDir, helpers.ConfigOptions{JWTSecretFile: secretFile})
		serverHelper = helpers.NewServerTestHelper(ctx, configFile)
		Expect(serverHelper.StartServer()).To(Succeed())
		serverHelper.WaitForServerReady(10 * time.Second)
	})

	AfterEach(func() {
		Expect(serverHelper.StopServer()).To(Succeed())
		cleanupTempDir(tempDir)
	})

	It("rejects admin requests without a token", func() {
		resp, err := serverHelper.PostAdmin("regenerate", nil)
		Expect(err).NotTo(HaveOccurred())
		_ = resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
		Expect(resp.Header.Get("WWW-Authenticate")).To(ContainSubstring("Bearer"))
	})

	It("rejects tokens from another issuer", func() {
		token, err := auth.IssueToken(secret, auth.TokenOptions{Issuer: "elsewhere", TTL: time.Hour}, time.Now())
		Expect(err).NotTo(HaveOccurred())

		resp, err := serverHelper.WithToken(token).PostAdmin("regenerate", nil)
		Expect(err).NotTo(HaveOccurred())
		_ = resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
	})

	It("accepts a valid token", func() {
		token, err := auth.IssueToken(secret, auth.TokenOptions{Subject: "ops", Issuer: "integration", TTL: time.Hour},
			time.Now())
		Expect(err).NotTo(HaveOccurred())

		serverHelper.WithToken(token).CreateService("Webmail", "https://mail.example.org")
		serverHelper.EventuallyPublished("/", ContainSubstring("Webmail"))
	})

	It("leaves the public site open", func() {
		serverHelper.EventuallyPublished("/", ContainSubstring("Integration Status"))
	})
})
