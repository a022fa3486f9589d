package acceptance_test

import (
	"strconv"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Media URL Rewriting", func() {
	Context("when proxying a page with media elements", func() {
		var body string

		BeforeEach(func() {
			By("Fetching the gallery page through the gateway")
			response := testEnv.Fetch("site-one.test", "/gallery.html")
			Expect(response.Error).To(BeNil(), "Request should succeed")
			Expect(response.StatusCode).To(Equal(200), "Should return 200 OK")
			body = response.Body
		})

		It("rewrites relative image sources to the edge domain", func() {
			Expect(body).To(ContainSubstring(`src="https://cdn.site-one.test/site-one.test/media/hero.jpg"`),
				"Relative src should resolve against the tenant domain and point at the edge")
			Expect(body).NotTo(ContainSubstring(`src="/media/hero.jpg"`),
				"Original relative src should be gone")
		})

		It("rewrites absolute same-origin image URLs", func() {
			Expect(body).To(ContainSubstring(`src="https://cdn.site-one.test/site-one.test/media/banner.png"`),
				"Absolute same-origin src should be rewritten")
		})

		It("rewrites allowlisted sibling domains keeping the origin host in the path", func() {
			Expect(body).To(ContainSubstring(`src="https://cdn.site-one.test/static.site-one.test/assets/logo.svg"`),
				"Sibling domain should be rewritten with its own host as the first path segment")
		})

		It("rewrites every candidate in a srcset list", func() {
			Expect(body).To(ContainSubstring("https://cdn.site-one.test/site-one.test/media/responsive-small.jpg 480w"),
				"First srcset candidate should be rewritten with its descriptor intact")
			Expect(body).To(ContainSubstring("https://cdn.site-one.test/site-one.test/media/responsive-large.jpg 1024w"),
				"Second srcset candidate should be rewritten with its descriptor intact")
			Expect(body).To(ContainSubstring(`src="https://cdn.site-one.test/site-one.test/media/responsive.jpg"`),
				"The src alongside the srcset should be rewritten too")
		})

		It("rewrites source elements inside picture", func() {
			Expect(body).To(ContainSubstring(`srcset="https://cdn.site-one.test/site-one.test/media/art.webp"`),
				"picture > source srcset should be rewritten")
			Expect(body).To(ContainSubstring(`src="https://cdn.site-one.test/site-one.test/media/art.jpg"`),
				"picture > img fallback should be rewritten")
		})

		It("rewrites video posters and nested sources", func() {
			Expect(body).To(ContainSubstring(`poster="https://cdn.site-one.test/site-one.test/media/trailer-poster.jpg"`),
				"Video poster should be rewritten")
			Expect(body).To(ContainSubstring(`src="https://cdn.site-one.test/site-one.test/media/trailer.mp4"`),
				"Video source child should be rewritten")
			Expect(body).To(ContainSubstring(`src="https://cdn.site-one.test/site-one.test/media/podcast.mp3"`),
				"Audio source child should be rewritten")
		})

		It("attaches the recovery descriptor to video and audio elements", func() {
			Expect(strings.Count(body, `data-edgelift-recover="1"`)).To(Equal(2),
				"Exactly the video and audio elements should carry the recovery descriptor")
			Expect(body).To(ContainSubstring(`<audio controls data-edgelift-recover="1">`),
				"Audio without direct src should still get the descriptor, but no marker")
		})

		It("stamps rewritten elements with the marker attribute", func() {
			Expect(body).To(ContainSubstring(`src="https://cdn.site-one.test/site-one.test/media/hero.jpg" alt="Hero" data-edgelift="1"`),
				"Rewritten img should carry the idempotence marker after its original attributes")
		})

		It("leaves external domains untouched", func() {
			Expect(body).To(ContainSubstring(`<img src="https://external.example.org/outside.jpg" alt="External">`),
				"Non-allowlisted domain should survive byte-for-byte")
		})

		It("marks but does not change URLs already pointing at the edge", func() {
			Expect(body).To(ContainSubstring(`src="https://cdn.site-one.test/site-one.test/media/done.jpg" alt="Edge" data-edgelift="1"`),
				"Edge URL should be recognized, left as-is, and marked so it is never double-wrapped")
			Expect(body).NotTo(ContainSubstring("cdn.site-one.test/cdn.site-one.test"),
				"An edge URL must never be wrapped a second time")
		})

		It("skips paths without a media extension", func() {
			Expect(body).To(ContainSubstring(`<img src="/downloads/report" alt="No extension">`),
				"Extension-less path should not be rewritten")
		})

		It("ignores non-media elements entirely", func() {
			Expect(body).To(ContainSubstring(`<a href="/documents/report.pdf">Quarterly report</a>`),
				"Anchors are not media elements, even with a file extension")
		})

		It("preserves markup outside rewritten attributes", func() {
			Expect(body).To(ContainSubstring(`<meta name="page-type" content="gallery">`),
				"Head content should be untouched")
			Expect(body).To(ContainSubstring("<p>Plain paragraph between media elements.</p>"),
				"Text content should be untouched")
		})
	})

	Context("response headers on rewritten pages", func() {
		It("reports the rewrite in diagnostic headers", func() {
			response := testEnv.Fetch("site-one.test", "/gallery.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Headers.Get("X-Rewrite-Source")).To(Equal("rewritten"),
				"Page with rewritten URLs should be labeled rewritten")

			count, err := strconv.Atoi(response.Headers.Get("X-Rewrite-Count"))
			Expect(err).To(BeNil(), "X-Rewrite-Count should be numeric")
			Expect(count).To(BeNumerically(">", 0), "At least one URL should have been rewritten")

			Expect(response.Headers.Values("Vary")).To(ContainElement("Accept-Encoding"),
				"Rewritten responses vary by encoding")
		})

		It("reports an exact count for a page of known size", func() {
			response := testEnv.Fetch("site-one.test", "/large-gallery.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Headers.Get("X-Rewrite-Count")).To(Equal("100"),
				"Each of the 100 images should count exactly once")
		})
	})

	Context("when proxying a page without media", func() {
		It("passes the page through unchanged", func() {
			response := testEnv.Fetch("site-one.test", "/no-media.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Headers.Get("X-Rewrite-Source")).To(Equal("passthrough"),
				"Nothing to rewrite means passthrough")
			Expect(response.Headers.Get("X-Rewrite-Count")).To(BeEmpty(),
				"No count header when nothing was rewritten")
			Expect(response.Body).To(ContainSubstring("<h1>About Us</h1>"))
			Expect(response.Body).NotTo(ContainSubstring("data-edgelift"),
				"No markers on a page with no media")
		})
	})

	Context("when proxying non-HTML content", func() {
		It("passes plain text through untouched", func() {
			response := testEnv.Fetch("site-one.test", "/plain-text.txt")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))
			Expect(response.Headers.Get("X-Rewrite-Source")).To(Equal("passthrough"))
		})

		It("passes JSON through untouched", func() {
			response := testEnv.Fetch("site-one.test", "/api/mock-data")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))
			Expect(response.Headers.Get("X-Rewrite-Source")).To(Equal("passthrough"))
		})
	})

	Context("per-tenant edge domains", func() {
		It("uses the tenant's own edge domain and allowlist", func() {
			By("Fetching the same gallery through the second tenant")
			response := testEnv.Fetch("site-two.test", "/gallery.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			By("Verifying relative URLs resolve against the second tenant")
			Expect(response.Body).To(ContainSubstring(`src="https://edge.example-cdn.net/site-two.test/media/hero.jpg"`),
				"Relative src should resolve against site-two and use its edge domain")

			By("Verifying another tenant's domains are not in this allowlist")
			Expect(response.Body).To(ContainSubstring(`src="http://site-one.test/media/banner.png"`),
				"site-one absolute URL is not allowlisted for site-two and must not change")
			Expect(response.Body).To(ContainSubstring(`src="https://static.site-one.test/assets/logo.svg"`),
				"static.site-one absolute URL is not allowlisted for site-two either")
		})
	})

	Context("rewriting on status codes other than 200", func() {
		It("rewrites an HTML 404 page from the upstream", func() {
			response := testEnv.Fetch("site-one.test", "/missing-page.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200),
				"Fixture serves generic HTML for unknown .html paths")
			Expect(response.Body).To(ContainSubstring("https://cdn.site-one.test/site-one.test/media/generic.jpg"),
				"Generic page media should be rewritten")
		})
	})

	Context("compressed upstream responses", func() {
		It("decompresses, rewrites, and serves a gzip page", func() {
			response := testEnv.FetchWithHeaders("site-one.test", "/gzip/gallery.html", map[string]string{
				"Accept-Encoding": "identity",
			})
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Body).To(ContainSubstring("https://cdn.site-one.test/site-one.test/media/hero.jpg"),
				"Gzip-encoded upstream body should still be rewritten")
			Expect(response.Headers.Get("Content-Encoding")).To(BeEmpty(),
				"Client asked for identity, so the body must be served plain")
		})

		It("re-compresses for clients that accept gzip", func() {
			response := testEnv.Fetch("site-one.test", "/gzip/gallery.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			// The Go transport advertises gzip and transparently decompresses,
			// so a correctly re-compressed body arrives here as readable HTML.
			Expect(response.Body).To(ContainSubstring("https://cdn.site-one.test/site-one.test/media/hero.jpg"))
		})
	})

	Context("Link response headers", func() {
		It("rewrites preload targets in Link headers", func() {
			response := testEnv.Fetch("site-one.test", "/link-preload.html")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			link := response.Headers.Get("Link")
			Expect(link).To(ContainSubstring("<https://cdn.site-one.test/site-one.test/media/preload-hero.jpg>"),
				"Preload target should point at the edge")
			Expect(link).To(ContainSubstring("rel=preload"),
				"Link parameters should survive")
		})
	})

	Context("URL rule scoped rewrite overrides", func() {
		It("applies a rule-level edge domain under its path prefix", func() {
			response := testEnv.Fetch("site-one.test", "/blog/first-post")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Headers.Get("X-Matched-Rule")).To(Equal("rule_4:/blog/*"),
				"Blog rule should be reported")
			Expect(response.Body).To(ContainSubstring("https://blog-cdn.site-one.test/site-one.test/media/post-cover.jpg"),
				"Blog pages rewrite to the blog edge domain")
		})
	})
})
