package acceptance_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Tenant Routing", func() {
	Context("when the Host header matches no tenant", func() {
		It("returns 421 Misdirected Request", func() {
			response := testEnv.Fetch("nobody.example", "/gallery.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(421), "Unknown hosts are refused, not proxied")
			Expect(response.Body).To(ContainSubstring("Unknown host"))
		})
	})

	Context("when the tenant is disabled", func() {
		It("proxies the page untouched", func() {
			response := testEnv.Fetch("disabled.test", "/gallery.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200), "Disabled tenants still get their pages")

			Expect(response.Headers.Get("X-Rewrite-Source")).To(Equal("passthrough"))
			Expect(response.Body).To(ContainSubstring(`src="/media/hero.jpg"`),
				"Media URLs must survive unchanged for a disabled tenant")
			Expect(response.Body).NotTo(ContainSubstring("cdn.disabled.test"),
				"Nothing should point at the disabled tenant's edge domain")
		})
	})

	Context("when the tenant is addressed by an alias domain", func() {
		It("resolves relative URLs against the alias, not the primary domain", func() {
			response := testEnv.Fetch("static.site-one.test", "/gallery.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring(`src="https://cdn.site-one.test/static.site-one.test/media/hero.jpg"`),
				"Relative src should carry the alias as its origin host")
			Expect(response.Body).To(ContainSubstring(`src="https://cdn.site-one.test/site-one.test/media/banner.png"`),
				"Absolute URLs keep their own origin host")
		})
	})

	Context("when the Host header carries a port", func() {
		It("routes by hostname alone", func() {
			response := testEnv.Fetch("site-one.test:8080", "/no-media.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200), "Port suffix should not break tenant resolution")
			Expect(response.Body).To(ContainSubstring("<h1>About Us</h1>"))
		})
	})

	Context("upstream failures", func() {
		It("returns 502 when the origin exceeds its fetch timeout", func() {
			// site-two's origin timeout is 2s; the fixture delays for 3s.
			response := testEnv.Fetch("site-two.test", "/slow?delay=3000")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(502),
				"Origin timeout within the request budget surfaces as Bad Gateway")
			Expect(response.Headers.Get("X-Rewrite-Source")).To(Equal("error"))
			Expect(response.Body).To(ContainSubstring("Bad Gateway"))
		})
	})
})
