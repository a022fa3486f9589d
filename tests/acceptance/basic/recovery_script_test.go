package acceptance_test

import (
	"net/http"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Recovery Script", func() {
	Context("serving the script", func() {
		It("serves the script with long-lived caching", func() {
			response := testEnv.Fetch("site-one.test", "/__edgelift/recover.js")
			Expect(response.Error).To(BeNil())

			Expect(response.StatusCode).To(Equal(200))
			Expect(response.Headers.Get("Content-Type")).To(ContainSubstring("javascript"))
			Expect(response.Headers.Get("Cache-Control")).To(Equal("public, max-age=86400"))
			Expect(response.Body).NotTo(BeEmpty())
		})

		It("serves the script regardless of tenant", func() {
			// The script path is reserved gateway-wide, ahead of tenant routing.
			response := testEnv.Fetch("nobody.example", "/__edgelift/recover.js")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))
		})

		It("rejects non-GET methods", func() {
			req, err := http.NewRequest("POST", testEnv.Config.GatewayBaseURL()+"/__edgelift/recover.js", strings.NewReader(""))
			Expect(err).To(BeNil())
			req.Host = "site-one.test"

			resp, err := testEnv.HTTPClient.Do(req)
			Expect(err).To(BeNil())
			defer resp.Body.Close()

			Expect(resp.StatusCode).To(Equal(405))
		})
	})

	Context("injecting the script tag", func() {
		It("injects before the closing head tag on rewritten pages", func() {
			response := testEnv.Fetch("site-one.test", "/gallery.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`<script src="/__edgelift/recover.js" defer></script></head>`),
				"Script tag should sit directly before </head>")
			Expect(strings.Count(response.Body, "/__edgelift/recover.js")).To(Equal(1),
				"Script tag should be injected exactly once")
		})

		It("does not inject on pages where nothing was rewritten", func() {
			response := testEnv.Fetch("site-one.test", "/no-media.html")
			Expect(response.Error).To(BeNil())

			Expect(response.Body).NotTo(ContainSubstring("/__edgelift/recover.js"))
		})

		It("does not inject on unsafe contexts", func() {
			response := testEnv.Fetch("site-one.test", "/wp-admin/dashboard.html")
			Expect(response.Error).To(BeNil())

			Expect(response.Body).NotTo(ContainSubstring("/__edgelift/recover.js"))
		})

		It("honors the tenant's injection opt-out", func() {
			response := testEnv.Fetch("site-two.test", "/gallery.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring("edge.example-cdn.net"),
				"Page should still be rewritten")
			Expect(response.Body).NotTo(ContainSubstring("/__edgelift/recover.js"),
				"inject_recovery_script: false suppresses the tag")
		})
	})
})
