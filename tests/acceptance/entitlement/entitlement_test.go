package entitlement_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Entitlement Verification", func() {

	Context("when the subscription is active", func() {
		It("rewrites media URLs and presents the auth key to the verification service", func() {
			resp := testEnv.Fetch("licensed.test", "/gallery.html")

			Expect(resp.Error).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(200))
			Expect(resp.Headers.Get("X-Rewrite-Source")).To(Equal("rewritten"))
			Expect(resp.Body).To(ContainSubstring("https://cdn.licensed.test/licensed.test/media/hero.jpg"))

			Expect(testEnv.TestServer.EntitlementHits()).To(BeNumerically(">=", 1))
			Expect(testEnv.TestServer.LastEntitlementAuth()).To(Equal(entitlementAuthKey))
		})

		It("caches the verdict so repeated requests skip the verification service", func() {
			first := testEnv.Fetch("licensed.test", "/gallery.html")
			Expect(first.StatusCode).To(Equal(200))
			Expect(testEnv.TestServer.EntitlementHits()).To(Equal(int64(1)))

			for i := 0; i < 3; i++ {
				resp := testEnv.Fetch("licensed.test", "/gallery.html")
				Expect(resp.StatusCode).To(Equal(200))
				Expect(resp.Headers.Get("X-Rewrite-Source")).To(Equal("rewritten"))
			}
			Expect(testEnv.TestServer.EntitlementHits()).To(Equal(int64(1)))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			verdict, err := testEnv.RedisClient.HGetAll(ctx, "ent:21").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(verdict["allowed"]).To(Equal("1"))
			Expect(verdict["checked_at"]).NotTo(BeEmpty())
		})

		It("never checks entitlement for passthrough rules", func() {
			resp := testEnv.Fetch("licensed.test", "/raw/page.html")

			Expect(resp.StatusCode).To(Equal(200))
			Expect(resp.Headers.Get("X-Rewrite-Source")).To(Equal("passthrough"))
			Expect(testEnv.TestServer.EntitlementHits()).To(BeZero())
		})
	})

	Context("when the subscription has lapsed", func() {
		It("serves the page unmodified", func() {
			resp := testEnv.Fetch("expired.test", "/gallery.html")

			Expect(resp.Error).NotTo(HaveOccurred())
			Expect(resp.StatusCode).To(Equal(200))
			Expect(resp.Headers.Get("X-Rewrite-Source")).To(Equal("passthrough"))
			Expect(resp.Headers.Get("X-Rewrite-Count")).To(BeEmpty())
			Expect(resp.Body).To(ContainSubstring(`src="/media/hero.jpg"`))
			Expect(resp.Body).NotTo(ContainSubstring("cdn.expired.test"))
			Expect(resp.Body).NotTo(ContainSubstring("data-edgelift"))
		})

		It("caches the denial with its reason", func() {
			testEnv.Fetch("expired.test", "/gallery.html")
			Expect(testEnv.TestServer.EntitlementHits()).To(Equal(int64(1)))

			testEnv.Fetch("expired.test", "/gallery.html")
			Expect(testEnv.TestServer.EntitlementHits()).To(Equal(int64(1)))

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			verdict, err := testEnv.RedisClient.HGetAll(ctx, "ent:22").Result()
			Expect(err).NotTo(HaveOccurred())
			Expect(verdict["allowed"]).To(Equal("0"))
			Expect(verdict["reason"]).To(Equal("subscription expired"))
		})
	})

	Context("when the verification service is unavailable", func() {
		AfterEach(func() {
			testEnv.TestServer.ResetEntitlement()
		})

		It("honors a stale verdict within the grace window", func() {
			By("priming the verdict cache while the service is up")
			first := testEnv.Fetch("licensed.test", "/gallery.html")
			Expect(first.StatusCode).To(Equal(200))
			Expect(first.Headers.Get("X-Rewrite-Source")).To(Equal("rewritten"))

			By("taking the service down and aging the verdict past its TTL")
			testEnv.TestServer.SetEntitlementDown(true)
			stale := strconv.FormatInt(time.Now().Add(-10*time.Minute).Unix(), 10)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			Expect(testEnv.RedisClient.HSet(ctx, "ent:21", "checked_at", stale).Err()).To(Succeed())

			By("fetching the page again")
			second := testEnv.Fetch("licensed.test", "/gallery.html")
			Expect(second.StatusCode).To(Equal(200))
			Expect(second.Headers.Get("X-Rewrite-Source")).To(Equal("rewritten"))
			Expect(second.Body).To(ContainSubstring("https://cdn.licensed.test/licensed.test/media/hero.jpg"))
		})

		It("disables rewriting when no verdict was ever cached", func() {
			testEnv.TestServer.SetEntitlementDown(true)

			resp := testEnv.Fetch("licensed.test", "/gallery.html")
			Expect(resp.StatusCode).To(Equal(200))
			Expect(resp.Headers.Get("X-Rewrite-Source")).To(Equal("passthrough"))
			Expect(resp.Body).To(ContainSubstring(`src="/media/hero.jpg"`))
			Expect(resp.Body).NotTo(ContainSubstring("cdn.licensed.test"))
		})
	})

	Context("metrics", func() {
		It("counts verdicts by source", func() {
			testEnv.Fetch("licensed.test", "/gallery.html")
			testEnv.Fetch("licensed.test", "/gallery.html")
			testEnv.Fetch("expired.test", "/gallery.html")

			resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/metrics", testEnv.Config.Gateway.MetricsPort))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())

			metricsText := string(body)
			Expect(metricsText).To(ContainSubstring(`edgelift_rg_entitlement_checks_total{host="licensed.test",source="service",verdict="allowed"}`))
			Expect(metricsText).To(ContainSubstring(`edgelift_rg_entitlement_checks_total{host="licensed.test",source="cache",verdict="allowed"}`))
			Expect(metricsText).To(ContainSubstring(`edgelift_rg_entitlement_checks_total{host="expired.test",source="service",verdict="denied"}`))
		})
	})
})
