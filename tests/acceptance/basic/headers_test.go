package acceptance_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// echoedRequest mirrors the JSON the /echo-headers fixture returns.
type echoedRequest struct {
	Method  string              `json:"method"`
	Path    string              `json:"path"`
	Host    string              `json:"host"`
	Headers map[string][]string `json:"headers"`
}

func fetchEcho(host string, headers map[string]string) echoedRequest {
	response := testEnv.FetchWithHeaders(host, "/echo-headers", headers)
	Expect(response.Error).To(BeNil())
	Expect(response.StatusCode).To(Equal(200))

	var echoed echoedRequest
	Expect(json.Unmarshal([]byte(response.Body), &echoed)).To(Succeed(),
		"Echo fixture should return parseable JSON")
	return echoed
}

var _ = Describe("Header Forwarding", func() {
	Context("request headers toward the upstream", func() {
		It("forwards only safelisted client headers", func() {
			echoed := fetchEcho("site-one.test", map[string]string{
				"Accept-Language": "de-DE",
				"X-Custom-Req":    "forward-me",
				"X-Not-Listed":    "drop-me",
			})

			Expect(echoed.Headers["Accept-Language"]).To(Equal([]string{"de-DE"}),
				"Safelisted header should reach the upstream")
			Expect(echoed.Headers["X-Custom-Req"]).To(Equal([]string{"forward-me"}))
			Expect(echoed.Headers).NotTo(HaveKey("X-Not-Listed"),
				"Headers outside the safelist must not leak upstream")
		})

		It("never forwards credentials", func() {
			echoed := fetchEcho("site-one.test", map[string]string{
				"Authorization": "Bearer super-secret",
				"Cookie":        "session=abc",
			})

			Expect(echoed.Headers).NotTo(HaveKey("Authorization"))
			Expect(echoed.Headers).NotTo(HaveKey("Cookie"))
		})

		It("matches safelist entries case-insensitively", func() {
			echoed := fetchEcho("site-one.test", map[string]string{
				"accept-language": "fr-FR",
			})

			Expect(echoed.Headers["Accept-Language"]).To(Equal([]string{"fr-FR"}))
		})

		It("sets standard proxy headers", func() {
			echoed := fetchEcho("site-one.test", nil)

			Expect(echoed.Headers["X-Forwarded-Host"]).To(Equal([]string{"site-one.test"}))
			Expect(echoed.Headers["X-Forwarded-Proto"]).To(Equal([]string{"http"}))
			Expect(echoed.Headers["X-Forwarded-For"]).NotTo(BeEmpty(),
				"Client address should be forwarded")
		})

		It("forwards the client's user agent", func() {
			echoed := fetchEcho("site-one.test", map[string]string{
				"User-Agent": "acceptance-probe/1.0",
			})

			Expect(echoed.Headers["User-Agent"]).To(Equal([]string{"acceptance-probe/1.0"}))
		})

		It("virtual-hosts the upstream on the domain the client used", func() {
			echoed := fetchEcho("site-one.test", nil)
			Expect(echoed.Host).To(Equal("site-one.test"))

			aliased := fetchEcho("static.site-one.test", nil)
			Expect(aliased.Host).To(Equal("static.site-one.test"),
				"Alias domains keep their own name toward the upstream")
			Expect(aliased.Headers["X-Forwarded-Host"]).To(Equal([]string{"static.site-one.test"}))
		})
	})

	Context("response headers toward the client", func() {
		It("forwards default-safe and tenant-added headers", func() {
			response := testEnv.Fetch("site-one.test", "/response-headers?X-Site-Header=hello")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			Expect(response.Headers.Get("X-Site-Header")).To(Equal("hello"),
				"safe_response_add entries should be forwarded")
			Expect(response.Headers.Get("Cache-Control")).To(Equal("max-age=60"))
			Expect(response.Headers.Get("ETag")).To(Equal(`"fixture-etag-1"`))
		})

		It("drops upstream headers outside the safelist", func() {
			response := testEnv.Fetch("site-one.test", "/response-headers")
			Expect(response.Error).To(BeNil())

			Expect(response.Headers.Get("X-Upstream-Secret")).To(BeEmpty(),
				"Unlisted upstream headers must not reach the client")
		})

		It("drops security-sensitive headers even when safelisted", func() {
			response := testEnv.Fetch("site-one.test", "/response-headers")
			Expect(response.Error).To(BeNil())

			// X-Api-Key is in site-one's safe_response_add, but the deny
			// list takes precedence.
			Expect(response.Headers.Get("X-Api-Key")).To(BeEmpty())
		})
	})
})
