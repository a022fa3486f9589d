package acceptance_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Context Guard", func() {
	Context("management surfaces", func() {
		It("never rewrites media on management pages", func() {
			response := testEnv.Fetch("site-one.test", "/wp-admin/dashboard.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Headers.Get("X-Rewrite-Source")).To(Equal("passthrough"))
			Expect(response.Body).To(ContainSubstring(`src="/media/admin-chart.png"`),
				"Management page media must not be rewritten")
			Expect(response.Body).NotTo(ContainSubstring("cdn.site-one.test"))
		})

		It("rewrites management pages when the tenant opts in", func() {
			response := testEnv.Fetch("admin-rw.test", "/wp-admin/dashboard.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`src="https://cdn.admin-rw.test/admin-rw.test/media/admin-chart.png"`),
				"allow_management_rewrite should enable rewriting on management pages")
		})
	})

	Context("async sub-requests from management paths", func() {
		It("rewrites anonymous async fragments as visitor traffic", func() {
			response := testEnv.Fetch("site-one.test", "/wp-admin/admin-ajax.php")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`src="https://cdn.site-one.test/site-one.test/media/widget.jpg"`),
				"Anonymous async fragment comes from a visitor page and should be rewritten")
		})

		It("does not rewrite async fragments for authenticated operators", func() {
			response := testEnv.FetchWithHeaders("site-one.test", "/wp-admin/admin-ajax.php", map[string]string{
				"Cookie": "wordpress_logged_in_abc123=admin%7Cexpiry%7Ctoken",
			})
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`src="/media/widget.jpg"`),
				"An authenticated operator's async request is a management operation")
			Expect(response.Body).NotTo(ContainSubstring("cdn.site-one.test"))
		})

		It("treats authenticated async requests as visitor traffic when the tenant opts in", func() {
			response := testEnv.FetchWithHeaders("admin-rw.test", "/wp-admin/admin-ajax.php", map[string]string{
				"Cookie": "wordpress_logged_in_abc123=admin%7Cexpiry%7Ctoken",
			})
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`src="https://cdn.admin-rw.test/admin-rw.test/media/widget.jpg"`),
				"allow_authenticated_visitors should let the fragment rewrite")
		})
	})

	Context("authenticated visitors on regular pages", func() {
		It("still rewrites pages for logged-in users outside management", func() {
			response := testEnv.FetchWithHeaders("site-one.test", "/gallery.html", map[string]string{
				"Cookie": "wordpress_logged_in_abc123=user%7Cexpiry%7Ctoken; theme=dark",
			})
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring("https://cdn.site-one.test/site-one.test/media/hero.jpg"),
				"Being logged in does not make a visitor page unsafe")
		})
	})

	Context("machine-to-machine endpoints", func() {
		It("does not rewrite API responses", func() {
			response := testEnv.Fetch("site-one.test", "/wp-json/embed.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`src="/media/embed-card.jpg"`),
				"API output must not be rewritten even when it is HTML")
		})

		It("does not rewrite cron output", func() {
			response := testEnv.Fetch("site-one.test", "/wp-cron.php")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`src="/media/cron-report.png"`))
		})

		It("does not rewrite RPC responses", func() {
			response := testEnv.Fetch("site-one.test", "/xmlrpc.php")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`src="/media/rpc-banner.jpg"`))
		})
	})

	Context("installation flows", func() {
		It("does not rewrite installer pages", func() {
			response := testEnv.Fetch("site-one.test", "/wp-admin/install.php")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`src="/media/install-logo.png"`))
		})

		It("keeps installer pages unsafe even for tenants allowing management rewrites", func() {
			response := testEnv.Fetch("admin-rw.test", "/wp-admin/install.php")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`src="/media/install-logo.png"`),
				"Installation always wins over management overrides")
			Expect(response.Body).NotTo(ContainSubstring("cdn.admin-rw.test"))
		})
	})

	Context("automation clients", func() {
		It("does not rewrite for CLI tooling user agents", func() {
			response := testEnv.FetchWithHeaders("site-one.test", "/gallery.html", map[string]string{
				"User-Agent": "wp-cli/2.8.1 (php 8.2)",
			})
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Headers.Get("X-Rewrite-Source")).To(Equal("passthrough"))
			Expect(response.Body).To(ContainSubstring(`src="/media/hero.jpg"`),
				"CLI requests see original markup")
		})

		It("does not rewrite for core HTTP client user agents", func() {
			response := testEnv.FetchWithHeaders("site-one.test", "/gallery.html", map[string]string{
				"User-Agent": "WordPress/6.4; https://site-one.test",
			})
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`src="/media/hero.jpg"`))
		})

		It("rewrites for browser user agents", func() {
			response := testEnv.FetchWithHeaders("site-one.test", "/gallery.html", map[string]string{
				"User-Agent": "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36",
			})
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring("https://cdn.site-one.test/site-one.test/media/hero.jpg"))
		})
	})
})
