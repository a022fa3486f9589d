package acceptance_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"io"
	"math/big"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("HTTPS TLS Support", Serial, func() {
	Context("when TLS is enabled", func() {
		var (
			httpsProcess *exec.Cmd
			tempDir      string
			certPath     string
			keyPath      string
			httpsPort    int
			httpPort     int
			internalPort int
		)

		BeforeEach(func() {
			By("Creating temporary directory for test certificates")
			var err error
			tempDir, err = os.MkdirTemp("", "edgelift-https-test-*")
			Expect(err).NotTo(HaveOccurred())

			By("Generating self-signed test certificate")
			certPath, keyPath = generateTestCert(tempDir)

			By("Finding available ports for the HTTPS gateway")
			httpPort = findAvailablePort()
			httpsPort = findAvailablePort()
			internalPort = findAvailablePort()
		})

		AfterEach(func() {
			By("Stopping HTTPS gateway if running")
			if httpsProcess != nil && httpsProcess.Process != nil {
				pgid, err := syscall.Getpgid(httpsProcess.Process.Pid)
				if err == nil {
					syscall.Kill(-pgid, syscall.SIGTERM)
				} else {
					httpsProcess.Process.Signal(os.Interrupt)
				}
				httpsProcess.Wait()
				httpsProcess = nil
			}

			By("Cleaning up temporary directory")
			if tempDir != "" {
				os.RemoveAll(tempDir)
			}
		})

		It("should serve rewritten pages over HTTPS", func() {
			By("Starting gateway with TLS enabled")
			httpsProcess = startHTTPSGateway(tempDir, certPath, keyPath, httpPort, httpsPort, internalPort)
			Expect(httpsProcess).NotTo(BeNil())

			By("Waiting for the HTTPS gateway to be ready")
			Eventually(func() bool {
				return checkHTTPSHealth(httpsPort)
			}, 30*time.Second, 500*time.Millisecond).Should(BeTrue(), "HTTPS gateway should become healthy")

			By("Making HTTPS request")
			response := makeHTTPSRequest(httpsPort, "https-site.test", "/gallery.html")

			By("Verifying the rewritten response")
			Expect(response.Error).To(BeNil(), "HTTPS request should succeed")
			Expect(response.StatusCode).To(Equal(200))
			Expect(response.Body).To(ContainSubstring("https://cdn.https-site.test/https-site.test/media/hero.jpg"),
				"Media URLs should point at the edge domain")
			Expect(response.Headers.Get("X-Rewrite-Source")).To(Equal("rewritten"))
		})

		It("should serve the same rewritten content via HTTP and HTTPS", func() {
			By("Starting gateway with TLS enabled")
			httpsProcess = startHTTPSGateway(tempDir, certPath, keyPath, httpPort, httpsPort, internalPort)
			Expect(httpsProcess).NotTo(BeNil())

			By("Waiting for both listeners to be ready")
			Eventually(func() bool {
				return checkPlainHealth(httpPort)
			}, 30*time.Second, 500*time.Millisecond).Should(BeTrue(), "HTTP listener should become healthy")

			Eventually(func() bool {
				return checkHTTPSHealth(httpsPort)
			}, 30*time.Second, 500*time.Millisecond).Should(BeTrue(), "HTTPS listener should become healthy")

			By("Fetching the same page on both listeners")
			httpResponse := makePlainRequest(httpPort, "https-site.test", "/gallery.html")
			httpsResponse := makeHTTPSRequest(httpsPort, "https-site.test", "/gallery.html")

			By("Verifying both responses match")
			Expect(httpResponse.Error).To(BeNil())
			Expect(httpsResponse.Error).To(BeNil())
			Expect(httpResponse.StatusCode).To(Equal(httpsResponse.StatusCode))
			Expect(httpResponse.Body).To(Equal(httpsResponse.Body),
				"Edge URLs are scheme-independent, so both listeners serve identical markup")
		})

		It("should enforce TLS 1.3 minimum version", func() {
			By("Starting gateway with TLS enabled")
			httpsProcess = startHTTPSGateway(tempDir, certPath, keyPath, httpPort, httpsPort, internalPort)
			Expect(httpsProcess).NotTo(BeNil())

			By("Waiting for the HTTPS gateway to be ready")
			Eventually(func() bool {
				return checkHTTPSHealth(httpsPort)
			}, 30*time.Second, 500*time.Millisecond).Should(BeTrue(), "HTTPS gateway should become healthy")

			By("Attempting TLS 1.2 connection (should fail)")
			addr := fmt.Sprintf("127.0.0.1:%d", httpsPort)
			tlsConfig := &tls.Config{
				InsecureSkipVerify: true,
				MaxVersion:         tls.VersionTLS12,
			}

			conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
			Expect(err).NotTo(HaveOccurred(), "TCP connection should succeed")

			tlsConn := tls.Client(conn, tlsConfig)
			err = tlsConn.Handshake()
			conn.Close()

			Expect(err).To(HaveOccurred(), "TLS 1.2 handshake should fail")
			Expect(err.Error()).To(ContainSubstring("protocol version"))

			By("Verifying a TLS 1.3 connection works")
			response := makeHTTPSRequest(httpsPort, "https-site.test", "/health")
			Expect(response.Error).To(BeNil(), "TLS 1.3 request should succeed")
			Expect(response.StatusCode).To(Equal(200))
		})
	})

	Context("when TLS configuration is invalid", func() {
		var tempDir string

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "edgelift-invalid-tls-*")
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			if tempDir != "" {
				os.RemoveAll(tempDir)
			}
		})

		It("should fail to start with a missing cert file", func() {
			By("Creating config with non-existent cert file")
			configPath := writeHTTPSGatewayConfig(tempDir, "/nonexistent/cert.crt", "/nonexistent/key.key",
				findAvailablePort(), findAvailablePort(), findAvailablePort())

			By("Attempting to start the gateway")
			cmd := exec.Command("go", "run", ".", "-c", configPath)
			cmd.Dir = filepath.Join("..", "..", "..", "cmd", "rewrite-gateway")

			output, err := cmd.CombinedOutput()

			By("Verifying startup failure")
			Expect(err).To(HaveOccurred(), "Gateway should fail to start with missing cert")
			Expect(string(output)).To(Or(
				ContainSubstring("TLS"),
				ContainSubstring("cert"),
			), "Error should mention certificate issue")
		})

		It("should fail to start with a missing key file", func() {
			By("Generating valid cert but using non-existent key")
			certPath, _ := generateTestCert(tempDir)
			configPath := writeHTTPSGatewayConfig(tempDir, certPath, "/nonexistent/key.key",
				findAvailablePort(), findAvailablePort(), findAvailablePort())

			By("Attempting to start the gateway")
			cmd := exec.Command("go", "run", ".", "-c", configPath)
			cmd.Dir = filepath.Join("..", "..", "..", "cmd", "rewrite-gateway")

			output, err := cmd.CombinedOutput()

			By("Verifying startup failure")
			Expect(err).To(HaveOccurred(), "Gateway should fail to start with missing key")
			Expect(string(output)).To(Or(
				ContainSubstring("TLS"),
				ContainSubstring("key"),
			), "Error should mention key issue")
		})

		It("should fail to start when HTTP and HTTPS share a port", func() {
			By("Creating config with conflicting ports")
			certPath, keyPath := generateTestCert(tempDir)
			sharedPort := findAvailablePort()
			configPath := writeHTTPSGatewayConfig(tempDir, certPath, keyPath,
				sharedPort, sharedPort, findAvailablePort())

			By("Attempting to start the gateway")
			cmd := exec.Command("go", "run", ".", "-c", configPath)
			cmd.Dir = filepath.Join("..", "..", "..", "cmd", "rewrite-gateway")

			output, err := cmd.CombinedOutput()

			By("Verifying startup failure")
			Expect(err).To(HaveOccurred(), "Gateway should fail to start with conflicting ports")
			Expect(string(output)).To(Or(
				ContainSubstring("address already in use"),
				ContainSubstring("failed to start"),
			))
		})
	})
})

// generateTestCert creates a self-signed ECDSA certificate for 127.0.0.1 and
// localhost, valid for 24 hours. Returns paths to the PEM cert and key.
func generateTestCert(dir string) (certPath, keyPath string) {
	privateKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).NotTo(HaveOccurred())

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			CommonName: "localhost",
		},
		NotBefore:             time.Now(),
		NotAfter:              time.Now().Add(24 * time.Hour),
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &privateKey.PublicKey, privateKey)
	Expect(err).NotTo(HaveOccurred())

	certPath = filepath.Join(dir, "test.crt")
	certFile, err := os.Create(certPath)
	Expect(err).NotTo(HaveOccurred())
	Expect(pem.Encode(certFile, &pem.Block{Type: "CERTIFICATE", Bytes: certDER})).To(Succeed())
	certFile.Close()

	keyPath = filepath.Join(dir, "test.key")
	keyFile, err := os.Create(keyPath)
	Expect(err).NotTo(HaveOccurred())
	keyDER, err := x509.MarshalECPrivateKey(privateKey)
	Expect(err).NotTo(HaveOccurred())
	Expect(pem.Encode(keyFile, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER})).To(Succeed())
	keyFile.Close()

	return certPath, keyPath
}

// findAvailablePort asks the kernel for a free TCP port on the loopback.
func findAvailablePort() int {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())
	defer listener.Close()

	return listener.Addr().(*net.TCPAddr).Port
}

// writeHTTPSGatewayConfig writes a standalone gateway config with TLS enabled
// plus a single-tenant hosts directory. The tenant's origin is the shared
// fixture upstream started by the suite.
func writeHTTPSGatewayConfig(dir, certPath, keyPath string, httpPort, httpsPort, internalPort int) string {
	config := fmt.Sprintf(`server:
  listen: ":%d"
  timeout: 10s
  tls:
    enabled: true
    listen: ":%d"
    cert_file: %s
    key_file: %s

internal:
  listen: ":%d"
  auth_key: "https-suite-internal-key-0123456789"

origin:
  validate_origin_ip: false

log:
  level: info
  console:
    enabled: true
    format: console

metrics:
  enabled: false

hosts:
  include: "hosts.d/"
`, httpPort, httpsPort, certPath, keyPath, internalPort)

	configPath := filepath.Join(dir, "rewrite-gateway.yaml")
	Expect(os.WriteFile(configPath, []byte(config), 0o644)).To(Succeed())

	hostsDir := filepath.Join(dir, "hosts.d")
	Expect(os.MkdirAll(hostsDir, 0o755)).To(Succeed())

	hosts := fmt.Sprintf(`hosts:
  - id: 41
    domain: https-site.test
    enabled: true
    origin:
      url: %s
    rewrite:
      edge_domain: cdn.https-site.test
`, testEnv.Config.TestPagesURL())
	Expect(os.WriteFile(filepath.Join(hostsDir, "https-site.yaml"), []byte(hosts), 0o644)).To(Succeed())

	return configPath
}

// startHTTPSGateway starts a second gateway process with TLS enabled.
func startHTTPSGateway(dir, certPath, keyPath string, httpPort, httpsPort, internalPort int) *exec.Cmd {
	configPath := writeHTTPSGatewayConfig(dir, certPath, keyPath, httpPort, httpsPort, internalPort)

	cmd := exec.Command("go", "run", ".", "-c", configPath)
	cmd.Dir = filepath.Join("..", "..", "..", "cmd", "rewrite-gateway")
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if os.Getenv("DEBUG") != "" || os.Getenv("VERBOSE") != "" {
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
	}

	Expect(cmd.Start()).To(Succeed())
	return cmd
}

// checkHTTPSHealth checks the health endpoint over TLS.
func checkHTTPSHealth(port int) bool {
	response := makeHTTPSRequest(port, "https-site.test", "/health")
	return response.Error == nil && response.StatusCode == 200
}

// checkPlainHealth checks the health endpoint on the HTTP listener.
func checkPlainHealth(port int) bool {
	response := makePlainRequest(port, "https-site.test", "/health")
	return response.Error == nil && response.StatusCode == 200
}

// makeHTTPSRequest performs a GET over TLS against the standalone gateway,
// addressing the tenant through the Host header.
func makeHTTPSRequest(port int, host, path string) *TestResponse {
	client := &http.Client{
		Timeout: 15 * time.Second,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequest("GET", fmt.Sprintf("https://127.0.0.1:%d%s", port, path), nil)
	if err != nil {
		return &TestResponse{Error: err}
	}
	req.Host = host

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return &TestResponse{Error: err, Duration: duration}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TestResponse{Error: err, Duration: duration}
	}

	return &TestResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       string(body),
		Duration:   duration,
	}
}

// makePlainRequest performs a GET against the standalone gateway's HTTP listener.
func makePlainRequest(port int, host, path string) *TestResponse {
	client := &http.Client{
		Timeout: 15 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequest("GET", fmt.Sprintf("http://127.0.0.1:%d%s", port, path), nil)
	if err != nil {
		return &TestResponse{Error: err}
	}
	req.Host = host

	start := time.Now()
	resp, err := client.Do(req)
	duration := time.Since(start)
	if err != nil {
		return &TestResponse{Error: err, Duration: duration}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &TestResponse{Error: err, Duration: duration}
	}

	return &TestResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       string(body),
		Duration:   duration,
	}
}
