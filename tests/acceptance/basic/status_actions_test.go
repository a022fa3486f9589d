package acceptance_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("URL Rule Actions", func() {
	Context("status actions", func() {
		It("returns 403 with the configured reason", func() {
			response := testEnv.Fetch("site-one.test", "/private/reports")
			Expect(response.Error).To(BeNil())

			Expect(response.StatusCode).To(Equal(403))
			Expect(response.Body).To(Equal("Forbidden: Private area"),
				"Reason should be appended to the status text")
			Expect(response.Headers.Get("Content-Type")).To(ContainSubstring("text/plain"))
			Expect(response.Headers.Get("X-Rewrite-Action")).To(Equal("status"))
			Expect(response.Headers.Get("X-Matched-Rule")).To(Equal("rule_2:/private/*"))
		})

		It("returns 410 with the bare status text when no reason is set", func() {
			response := testEnv.Fetch("site-one.test", "/gone/old-campaign")
			Expect(response.Error).To(BeNil())

			Expect(response.StatusCode).To(Equal(410))
			Expect(response.Body).To(Equal("Gone"))
			Expect(response.Headers.Get("X-Matched-Rule")).To(Equal("rule_3:/gone/*"))
		})

		It("serves configured redirects with an empty body", func() {
			response := testEnv.Fetch("site-one.test", "/old-path")
			Expect(response.Error).To(BeNil())

			Expect(response.StatusCode).To(Equal(301))
			Expect(response.Headers.Get("Location")).To(Equal("https://site-one.test/new-path"))
			Expect(response.Body).To(BeEmpty(), "Redirect responses carry no body")
			Expect(response.Headers.Get("X-Matched-Rule")).To(Equal("rule_1:/old-path"))
		})
	})

	Context("passthrough rules", func() {
		It("proxies without rewriting under a passthrough path", func() {
			response := testEnv.Fetch("site-one.test", "/raw/page.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Headers.Get("X-Matched-Rule")).To(Equal("rule_5:/raw/*"))
			Expect(response.Headers.Get("X-Rewrite-Source")).To(Equal("passthrough"))
			Expect(response.Body).To(ContainSubstring(`src="/media/generic.jpg"`),
				"Passthrough paths keep original markup")
		})
	})

	Context("query-conditional rules", func() {
		It("applies the rule when the query parameter is present", func() {
			response := testEnv.Fetch("site-one.test", "/search?q=boots&utm_source=newsletter")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Headers.Get("X-Matched-Rule")).To(Equal("rule_0:/search?..."))
			Expect(response.Body).To(ContainSubstring(`src="/media/search-icon.svg"`),
				"Campaign traffic is passed through unrewritten")
		})

		It("skips the rule when the query parameter is absent", func() {
			response := testEnv.Fetch("site-one.test", "/search?q=boots")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Headers.Get("X-Matched-Rule")).To(BeEmpty(),
				"No rule should match without the query parameter")
			Expect(response.Body).To(ContainSubstring("https://cdn.site-one.test/site-one.test/media/search-icon.svg"),
				"Default action rewrites the page")
		})
	})

	Context("upstream status forwarding", func() {
		It("forwards upstream error codes untouched", func() {
			response := testEnv.Fetch("site-one.test", "/status/500")
			Expect(response.Error).To(BeNil())

			Expect(response.StatusCode).To(Equal(500))
			Expect(response.Body).To(Equal("upstream status 500"))
		})

		It("forwards upstream redirects with their Location", func() {
			response := testEnv.Fetch("site-one.test", "/legacy-redirect")
			Expect(response.Error).To(BeNil())

			Expect(response.StatusCode).To(Equal(302))
			Expect(response.Headers.Get("Location")).To(Equal("/gallery.html"))
		})
	})
})
