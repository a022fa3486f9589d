package ratelimit_test

import (
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fetchAs proxies a request impersonating the given client IP.
func fetchAs(ip, path string) *TestResponse {
	return testEnv.FetchWithHeaders("limited.test", path, map[string]string{"X-Test-IP": ip})
}

// waitForFreshWindow sleeps until just past the next limiter window boundary
// so a spec's burst cannot straddle one.
func waitForFreshWindow() {
	next := time.Now().Truncate(rateLimitWindow).Add(rateLimitWindow)
	time.Sleep(time.Until(next) + 50*time.Millisecond)
}

// waitForEventLine polls the gateway's event log until a line containing
// marker appears, then returns its tab-separated fields.
func waitForEventLine(marker string) []string {
	var fields []string
	Eventually(func() bool {
		content, err := testEnv.ReadEventLog()
		if err != nil {
			return false
		}
		for _, line := range strings.Split(content, "\n") {
			if strings.Contains(line, marker) {
				fields = strings.Split(line, "\t")
				return true
			}
		}
		return false
	}, 10*time.Second, 200*time.Millisecond).Should(BeTrue(), "expected an event line containing %s", marker)
	return fields
}

var _ = Describe("Rate Limiting", func() {

	Context("when a client exceeds its budget", func() {
		It("serves the full burst then rejects the overflow", func() {
			waitForFreshWindow()

			for i := 0; i < rateLimitRequests; i++ {
				resp := fetchAs("203.0.113.10", "/gallery.html")
				Expect(resp.Error).NotTo(HaveOccurred())
				Expect(resp.StatusCode).To(Equal(200), "request %d should be within budget", i+1)
				Expect(resp.Headers.Get("X-Rewrite-Source")).To(Equal("rewritten"))
			}

			over := fetchAs("203.0.113.10", "/gallery.html")
			Expect(over.StatusCode).To(Equal(429))
			Expect(over.Body).To(Equal("Too Many Requests"))
			Expect(over.Headers.Get("Retry-After")).To(Equal("2"))
		})

		It("keeps rejecting until the window turns over", func() {
			waitForFreshWindow()

			for i := 0; i < rateLimitRequests; i++ {
				fetchAs("203.0.113.20", "/gallery.html")
			}

			for i := 0; i < 3; i++ {
				resp := fetchAs("203.0.113.20", "/gallery.html")
				Expect(resp.StatusCode).To(Equal(429))
			}
		})
	})

	Context("client isolation", func() {
		It("tracks each client address separately", func() {
			waitForFreshWindow()

			By("exhausting the budget for one client")
			for i := 0; i < rateLimitRequests; i++ {
				fetchAs("203.0.113.30", "/gallery.html")
			}
			Expect(fetchAs("203.0.113.30", "/gallery.html").StatusCode).To(Equal(429))

			By("verifying another client is unaffected")
			other := fetchAs("203.0.113.31", "/gallery.html")
			Expect(other.StatusCode).To(Equal(200))
			Expect(other.Headers.Get("X-Rewrite-Source")).To(Equal("rewritten"))
		})
	})

	Context("window turnover", func() {
		It("grants a fresh budget after the boundary", func() {
			waitForFreshWindow()

			for i := 0; i < rateLimitRequests; i++ {
				fetchAs("203.0.113.40", "/gallery.html")
			}
			Expect(fetchAs("203.0.113.40", "/gallery.html").StatusCode).To(Equal(429))

			By("waiting out the current window")
			time.Sleep(rateLimitWindow + 100*time.Millisecond)

			resp := fetchAs("203.0.113.40", "/gallery.html")
			Expect(resp.StatusCode).To(Equal(200))
		})
	})

	Context("when Redis is unavailable", func() {
		It("fails open and serves every request", func() {
			testEnv.MiniRedis.SetError("simulated outage")
			DeferCleanup(func() {
				testEnv.MiniRedis.SetError("")
			})

			waitForFreshWindow()

			for i := 0; i < rateLimitRequests+3; i++ {
				resp := fetchAs("203.0.113.50", "/gallery.html")
				Expect(resp.StatusCode).To(Equal(200), "request %d should pass with Redis down", i+1)
			}
		})
	})

	Context("observability", func() {
		It("emits a rate_limited event for a rejected request", func() {
			waitForFreshWindow()

			for i := 0; i < rateLimitRequests; i++ {
				fetchAs("203.0.113.90", "/gallery.html")
			}
			blocked := fetchAs("203.0.113.90", "/gallery.html?evt=rl-blocked")
			Expect(blocked.StatusCode).To(Equal(429))

			fields := waitForEventLine("evt=rl-blocked")
			Expect(fields).To(HaveLen(9))
			Expect(fields[1]).To(Equal(`"limited.test"`))
			Expect(fields[2]).To(Equal(`"http://limited.test/gallery.html?evt=rl-blocked"`))
			Expect(fields[3]).To(Equal("429"))
			Expect(fields[4]).To(Equal(`"rate_limited"`))
			Expect(fields[7]).To(Equal("-"))
			Expect(fields[8]).To(Equal(`"203.0.113.90"`))
		})

		It("counts rejected requests in metrics", func() {
			waitForFreshWindow()

			for i := 0; i < rateLimitRequests+1; i++ {
				fetchAs("203.0.113.60", "/gallery.html")
			}

			resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", testEnv.Config.Gateway.MetricsPort))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			metricsText := string(body)
			Expect(metricsText).To(ContainSubstring(`edgelift_rg_rate_limited_total{host="limited.test"}`))
			Expect(metricsText).To(ContainSubstring(`edgelift_rg_requests_total{action="rate_limited",host="limited.test",status_range="4xx"}`))
		})
	})
})
