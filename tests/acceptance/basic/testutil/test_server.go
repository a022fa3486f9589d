package testutil

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// TestServer manages a local HTTP server standing in for tenant upstream
// servers. Pages reference media by relative path so they work for any tenant
// domain the gateway routes to it, plus a few absolute URLs pinned to the
// site-one.test fixture host for allow-list coverage. It also doubles as the
// entitlement verification service at /entitlement/verify.
type TestServer struct {
	server   *http.Server
	port     int
	baseURL  string
	shutdown chan struct{}

	entitlementDown atomic.Bool
	entitlementHits atomic.Int64
	lastEntAuth     atomic.Value // string, last X-Entitlement-Auth header seen
}

// NewTestServer creates a new test server instance
func NewTestServer(port int) *TestServer {
	return &TestServer{
		port:     port,
		baseURL:  fmt.Sprintf("http://localhost:%d", port),
		shutdown: make(chan struct{}),
	}
}

// galleryPage is the main rewriting fixture: every media shape the gateway
// handles, plus URLs that must survive untouched (external domain, edge URL,
// extension-less path, non-media anchors).
const galleryPage = `<!DOCTYPE html>
<html>
<head>
	<title>Media Gallery</title>
	<meta name="page-type" content="gallery">
</head>
<body>
	<h1>Media Gallery</h1>
	<img src="/media/hero.jpg" alt="Hero">
	<img src="http://site-one.test/media/banner.png" alt="Banner">
	<img src="https://static.site-one.test/assets/logo.svg" alt="Logo">
	<img src="/media/responsive.jpg" srcset="/media/responsive-small.jpg 480w, /media/responsive-large.jpg 1024w" alt="Responsive">
	<picture>
		<source srcset="/media/art.webp" type="image/webp">
		<img src="/media/art.jpg" alt="Art">
	</picture>
	<video poster="/media/trailer-poster.jpg" controls>
		<source src="/media/trailer.mp4" type="video/mp4">
	</video>
	<audio controls>
		<source src="/media/podcast.mp3" type="audio/mpeg">
	</audio>
	<img src="https://external.example.org/outside.jpg" alt="External">
	<img src="https://cdn.site-one.test/site-one.test/media/done.jpg" alt="Edge">
	<img src="/downloads/report" alt="No extension">
	<a href="/documents/report.pdf">Quarterly report</a>
	<p>Plain paragraph between media elements.</p>
</body>
</html>`

// noMediaPage exercises the fast path: HTML without a single media tag.
const noMediaPage = `<!DOCTYPE html>
<html>
<head>
	<title>About Us</title>
</head>
<body>
	<h1>About Us</h1>
	<p>A page with headings, paragraphs and links but no media elements.</p>
	<a href="/contact.html">Contact</a>
</body>
</html>`

// adminPage renders a management surface carrying media that must never be
// rewritten.
const adminPage = `<!DOCTYPE html>
<html>
<head>
	<title>Dashboard</title>
</head>
<body>
	<h1>Site Dashboard</h1>
	<img src="/media/admin-chart.png" alt="Traffic chart">
	<img src="/media/admin-avatar.jpg" alt="Avatar">
	<p>Administrative controls live here.</p>
</body>
</html>`

// ajaxFragment is the partial markup an async management endpoint returns.
const ajaxFragment = `<div class="widget">
	<img src="/media/widget.jpg" alt="Widget">
	<p>Widget body</p>
</div>`

// cronPage is background-job output that happens to contain media markup.
const cronPage = `<!DOCTYPE html>
<html>
<body>
	<p>Cron run complete.</p>
	<img src="/media/cron-report.png" alt="Report">
</body>
</html>`

// apiEmbedPage is an HTML document served under an API path prefix.
const apiEmbedPage = `<!DOCTYPE html>
<html>
<body>
	<blockquote class="embed">
		<img src="/media/embed-card.jpg" alt="Card">
	</blockquote>
</body>
</html>`

// Start starts the test server
func (ts *TestServer) Start() error {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","server":"test-pages"}`))
	})

	// Main rewriting fixture
	mux.HandleFunc("/gallery.html", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, galleryPage)
	})

	// Fast-path fixture: no media tags at all
	mux.HandleFunc("/no-media.html", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, noMediaPage)
	})

	// Management surface with media
	mux.HandleFunc("/wp-admin/dashboard.html", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, adminPage)
	})

	// Async sub-request endpoint of the management surface. Returns an HTML
	// fragment the way admin widget refreshes do.
	mux.HandleFunc("/wp-admin/admin-ajax.php", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, ajaxFragment)
	})

	// Installation flow page
	mux.HandleFunc("/wp-admin/install.php", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `<html><body><h1>Installation</h1><img src="/media/install-logo.png"></body></html>`)
	})

	// Scheduled job endpoint
	mux.HandleFunc("/wp-cron.php", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, cronPage)
	})

	// HTML document under the API path prefix
	mux.HandleFunc("/wp-json/embed.html", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, apiEmbedPage)
	})

	// RPC endpoint
	mux.HandleFunc("/xmlrpc.php", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, `<html><body><img src="/media/rpc-banner.jpg"></body></html>`)
	})

	// Blog handler - /blog/* pattern matching target
	mux.HandleFunc("/blog/", func(w http.ResponseWriter, r *http.Request) {
		slug := strings.TrimPrefix(r.URL.Path, "/blog/")
		if slug == "" {
			slug = "index"
		}
		writeHTML(w, fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><title>Blog - %s</title></head>
<body>
	<h1>Blog Article</h1>
	<p class="slug">%s</p>
	<img src="/media/post-cover.jpg" alt="Cover">
</body>
</html>`, slug, slug))
	})

	// Search handler - query parameter matching target
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		writeHTML(w, fmt.Sprintf(`<!DOCTYPE html>
<html>
<body>
	<h1>Search Results</h1>
	<p>Query: %s</p>
	<img src="/media/search-icon.svg" alt="Search">
</body>
</html>`, r.URL.RawQuery))
	})

	// Echoes the request as JSON so tests can inspect what the gateway
	// forwarded upstream.
	mux.HandleFunc("/echo-headers", func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]interface{}{
			"method":  r.Method,
			"path":    r.URL.Path,
			"host":    r.Host,
			"headers": r.Header,
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(payload)
	})

	// Reflects query parameters as response headers, plus fixed headers that
	// exercise the safe-response filter from both sides.
	mux.HandleFunc("/response-headers", func(w http.ResponseWriter, r *http.Request) {
		for key, values := range r.URL.Query() {
			w.Header().Set(key, values[0])
		}
		w.Header().Set("Cache-Control", "max-age=60")
		w.Header().Set("ETag", `"fixture-etag-1"`)
		w.Header().Set("X-Upstream-Secret", "do-not-forward")
		w.Header().Set("X-Api-Key", "upstream-key")
		writeHTML(w, `<html><body><p>Header fixture</p></body></html>`)
	})

	// Slow response for origin timeout coverage
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		delayMs := 1500
		if delayParam := r.URL.Query().Get("delay"); delayParam != "" {
			if parsed, err := strconv.Atoi(delayParam); err == nil && parsed >= 0 {
				delayMs = parsed
			}
		}
		time.Sleep(time.Duration(delayMs) * time.Millisecond)
		writeHTML(w, `<html><body><p>Finally done</p></body></html>`)
	})

	// Arbitrary upstream status codes: /status/404, /status/500, ...
	mux.HandleFunc("/status/", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(strings.TrimPrefix(r.URL.Path, "/status/"))
		if err != nil || code < 100 || code > 599 {
			code = http.StatusBadRequest
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(code)
		fmt.Fprintf(w, "upstream status %d", code)
	})

	// Gzip-encoded variant of the gallery for decode-rewrite-reencode coverage
	mux.HandleFunc("/gzip/gallery.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Content-Encoding", "gzip")
		w.WriteHeader(http.StatusOK)
		gz := gzip.NewWriter(w)
		gz.Write([]byte(galleryPage))
		gz.Close()
	})

	// Large page: many images for counter coverage
	mux.HandleFunc("/large-gallery.html", func(w http.ResponseWriter, r *http.Request) {
		var b strings.Builder
		b.WriteString("<!DOCTYPE html>\n<html>\n<body>\n<h1>Large Gallery</h1>\n")
		for i := 0; i < 100; i++ {
			fmt.Fprintf(&b, "\t<img src=\"/media/photo-%03d.jpg\" alt=\"Photo %d\">\n", i, i)
		}
		b.WriteString("</body>\n</html>")
		writeHTML(w, b.String())
	})

	// Preload hint in a Link header alongside matching markup
	mux.HandleFunc("/link-preload.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Link", "</media/preload-hero.jpg>; rel=preload; as=image")
		writeHTML(w, `<html><body><img src="/media/preload-hero.jpg" alt="Preload"></body></html>`)
	})

	// Upstream redirect whose Location must reach the client
	mux.HandleFunc("/legacy-redirect", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/gallery.html")
		w.WriteHeader(http.StatusFound)
	})

	// JSON API endpoint - must pass through byte-for-byte
	mux.HandleFunc("/api/mock-data", func(w http.ResponseWriter, r *http.Request) {
		responseData := map[string]interface{}{
			"items": []map[string]interface{}{
				{"id": 1, "name": "Item One"},
				{"id": 2, "name": "Item Two"},
			},
			"metadata": map[string]interface{}{
				"loadTime": time.Now().Format(time.RFC3339Nano),
				"uuid":     uuid.New().String(),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(responseData)
	})

	// Plain text file - non-HTML content type
	mux.HandleFunc("/plain-text.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("img src=/media/not-markup.jpg is just text here\n"))
	})

	// Entitlement verification service. Hosts with license key "valid-license"
	// are allowed, everything else is denied. SetEntitlementDown simulates an
	// outage for grace-period tests.
	mux.HandleFunc("/entitlement/verify", func(w http.ResponseWriter, r *http.Request) {
		ts.entitlementHits.Add(1)
		ts.lastEntAuth.Store(r.Header.Get("X-Entitlement-Auth"))

		if ts.entitlementDown.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}

		var check struct {
			HostID     int    `json:"host_id"`
			Domain     string `json:"domain"`
			LicenseKey string `json:"license_key"`
			RgID       string `json:"rg_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&check); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		verdict := map[string]interface{}{
			"allowed": check.LicenseKey == "valid-license",
		}
		if check.LicenseKey != "valid-license" {
			verdict["reason"] = "subscription expired"
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(verdict)
	})

	// Root and default handler
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			writeHTML(w, `<!DOCTYPE html>
<html>
<head><title>Home</title></head>
<body>
	<h1>Welcome</h1>
	<img src="/media/front-door.jpg" alt="Front door">
</body>
</html>`)
			return
		}
		if strings.HasSuffix(r.URL.Path, ".html") {
			writeHTML(w, fmt.Sprintf(`<!DOCTYPE html>
<html>
<body>
	<h1>Generic Page</h1>
	<p>Path: %s</p>
	<img src="/media/generic.jpg" alt="Generic">
</body>
</html>`, r.URL.Path))
			return
		}
		http.NotFound(w, r)
	})

	ts.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", ts.port),
		Handler: mux,
	}

	// Start server in goroutine
	go func() {
		if err := ts.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fmt.Printf("Test server failed to start: %v\n", err)
		}
		close(ts.shutdown)
	}()

	// Wait for server to start
	return ts.waitForReady(30 * time.Second)
}

func writeHTML(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}

// Stop stops the test server
func (ts *TestServer) Stop() error {
	if ts.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := ts.server.Shutdown(ctx)

	select {
	case <-ts.shutdown:
	case <-time.After(10 * time.Second):
		fmt.Println("Warning: Test server shutdown timed out")
	}

	return err
}

// BaseURL returns the base URL for the test server
func (ts *TestServer) BaseURL() string {
	return ts.baseURL
}

// SetEntitlementDown makes /entitlement/verify answer 503 until cleared
func (ts *TestServer) SetEntitlementDown(down bool) {
	ts.entitlementDown.Store(down)
}

// EntitlementHits returns how many verification calls the server has received
func (ts *TestServer) EntitlementHits() int64 {
	return ts.entitlementHits.Load()
}

// ResetEntitlement clears the outage flag and the call counter
func (ts *TestServer) ResetEntitlement() {
	ts.entitlementDown.Store(false)
	ts.entitlementHits.Store(0)
}

// LastEntitlementAuth returns the X-Entitlement-Auth header from the most
// recent verification call, or "" before the first call
func (ts *TestServer) LastEntitlementAuth() string {
	if v := ts.lastEntAuth.Load(); v != nil {
		return v.(string)
	}
	return ""
}

// waitForReady waits for the server to be ready to accept connections
func (ts *TestServer) waitForReady(timeout time.Duration) error {
	client := &http.Client{Timeout: 2 * time.Second}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		resp, err := client.Get(ts.baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}

		time.Sleep(100 * time.Millisecond)
	}

	return fmt.Errorf("test server did not start within %v", timeout)
}

// IsRunning checks if the server is currently running
func (ts *TestServer) IsRunning() bool {
	if ts.server == nil {
		return false
	}

	client := &http.Client{Timeout: 1 * time.Second}
	resp, err := client.Get(ts.baseURL + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}
