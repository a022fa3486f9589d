package acceptance_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Observability", func() {
	Context("health endpoints", func() {
		It("reports liveness", func() {
			response := testEnv.Fetch("site-one.test", "/health")
			Expect(response.Error).To(BeNil())

			Expect(response.StatusCode).To(Equal(200))
			Expect(response.Body).To(Equal("OK"))
		})

		It("reports readiness when Redis is reachable", func() {
			response := testEnv.Fetch("site-one.test", "/ready")
			Expect(response.Error).To(BeNil())

			Expect(response.StatusCode).To(Equal(200))
			Expect(response.Body).To(Equal("OK"))
		})
	})

	Context("request identity", func() {
		It("assigns a request ID to every response", func() {
			response := testEnv.Fetch("site-one.test", "/no-media.html")
			Expect(response.Error).To(BeNil())

			Expect(response.Headers.Get("X-Request-ID")).To(MatchRegexp(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`),
				"Generated request IDs are UUIDs")
		})

		It("echoes a client-supplied request ID behind a fresh prefix", func() {
			response := testEnv.FetchWithHeaders("site-one.test", "/no-media.html", map[string]string{
				"X-Request-ID": "load-test-123",
			})
			Expect(response.Error).To(BeNil())

			Expect(response.Headers.Get("X-Request-ID")).To(MatchRegexp(`^[0-9a-f]{5}-load-test-123$`),
				"Client IDs are kept traceable but prefixed to stay unique")
		})

		It("sanitizes hostile request IDs", func() {
			response := testEnv.FetchWithHeaders("site-one.test", "/no-media.html", map[string]string{
				"X-Request-ID": "abc<script>!!def",
			})
			Expect(response.Error).To(BeNil())

			Expect(response.Headers.Get("X-Request-ID")).To(MatchRegexp(`^[0-9a-f]{5}-[a-zA-Z0-9-]+$`),
				"Only safe characters survive sanitization")
			Expect(response.Headers.Get("X-Request-ID")).NotTo(ContainSubstring("<"))
		})
	})

	Context("Prometheus metrics", func() {
		It("exposes namespaced metrics on the metrics listener", func() {
			By("Generating some traffic first")
			testEnv.Fetch("site-one.test", "/gallery.html")

			By("Scraping the metrics endpoint")
			resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", testEnv.Config.Gateway.MetricsPort))
			Expect(err).To(BeNil())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(200))
			body, err := io.ReadAll(resp.Body)
			Expect(err).To(BeNil())

			metrics := string(body)
			Expect(metrics).To(ContainSubstring("edgelift_rg_requests_total"),
				"Request counter should be exported under the configured namespace")
			Expect(metrics).To(ContainSubstring("edgelift_rg_urls_rewritten_total"))
			Expect(metrics).To(ContainSubstring(`host="site-one.test"`),
				"Counters are labeled per tenant")
		})
	})
})

// internalEnvelope mirrors the unified internal API response format.
type internalEnvelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

var _ = Describe("Internal API", func() {
	Context("authentication", func() {
		It("rejects requests without the auth header", func() {
			response := testEnv.InternalGet("/internal/stats", "")
			Expect(response.Error).To(BeNil())

			Expect(response.StatusCode).To(Equal(401))

			var envelope internalEnvelope
			Expect(json.Unmarshal([]byte(response.Body), &envelope)).To(Succeed())
			Expect(envelope.Success).To(BeFalse())
			Expect(envelope.Message).To(Equal("unauthorized"))
		})

		It("rejects requests with a wrong key", func() {
			response := testEnv.InternalGet("/internal/stats", "wrong-key")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(401))
		})
	})

	Context("runtime statistics", func() {
		It("returns collector statistics", func() {
			By("Generating some traffic first")
			testEnv.Fetch("site-one.test", "/gallery.html")

			response := testEnv.InternalGet("/internal/stats", testEnv.Config.Test.InternalAuthKey)
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			var envelope internalEnvelope
			Expect(json.Unmarshal([]byte(response.Body), &envelope)).To(Succeed())
			Expect(envelope.Success).To(BeTrue())

			var stats struct {
				UptimeSeconds     float64 `json:"uptime_seconds"`
				RequestsProcessed uint64  `json:"requests_processed"`
				URLsRewritten     uint64  `json:"urls_rewritten"`
			}
			Expect(json.Unmarshal(envelope.Data, &stats)).To(Succeed())
			Expect(stats.UptimeSeconds).To(BeNumerically(">", 0))
			Expect(stats.RequestsProcessed).To(BeNumerically(">", 0))
			Expect(stats.URLsRewritten).To(BeNumerically(">", 0))
		})
	})

	Context("URL rewrite testing", func() {
		It("judges a URL against every configured host", func() {
			response := testEnv.InternalGet("/internal/rewrite/test?url=https://site-one.test/media/hero.jpg", testEnv.Config.Test.InternalAuthKey)
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			var envelope internalEnvelope
			Expect(json.Unmarshal([]byte(response.Body), &envelope)).To(Succeed())
			Expect(envelope.Success).To(BeTrue())

			var result struct {
				URL         string `json:"url"`
				IsAbsolute  bool   `json:"is_absolute"`
				HostResults []struct {
					HostID      int    `json:"host_id"`
					Host        string `json:"host"`
					Eligibility string `json:"eligibility"`
					EdgeURL     string `json:"edge_url"`
					TrueOrigin  string `json:"true_origin"`
				} `json:"hosts"`
			}
			Expect(json.Unmarshal(envelope.Data, &result)).To(Succeed())
			Expect(result.IsAbsolute).To(BeTrue())
			Expect(result.HostResults).To(HaveLen(4), "All four fixture hosts should be judged")

			verdicts := map[int]string{}
			for _, hr := range result.HostResults {
				verdicts[hr.HostID] = hr.Eligibility
				if hr.HostID == 1 {
					Expect(hr.EdgeURL).To(Equal("https://cdn.site-one.test/site-one.test/media/hero.jpg"))
					Expect(hr.TrueOrigin).To(Equal("https://site-one.test/media/hero.jpg"),
						"Recovering the edge URL should restore the original")
				}
			}
			Expect(verdicts[1]).To(Equal("eligible"))
			Expect(verdicts[2]).To(Equal("domain_not_allowed"),
				"site-one's URL is not in site-two's allowlist")
		})

		It("requires a url parameter", func() {
			response := testEnv.InternalGet("/internal/rewrite/test", testEnv.Config.Test.InternalAuthKey)
			Expect(response.Error).To(BeNil())

			Expect(response.StatusCode).To(Equal(400))

			var envelope internalEnvelope
			Expect(json.Unmarshal([]byte(response.Body), &envelope)).To(Succeed())
			Expect(envelope.Message).To(Equal("missing url parameter"))
		})
	})

	Context("unknown endpoints", func() {
		It("returns 404 for unknown paths", func() {
			response := testEnv.InternalGet("/internal/nope", testEnv.Config.Test.InternalAuthKey)
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(404))
		})
	})
})
