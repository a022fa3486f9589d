package acceptance_test

import (
	"strconv"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// waitForEventLine polls the event log until a line containing marker appears
// and returns its tab-separated fields.
func waitForEventLine(marker string) []string {
	var line string

	Eventually(func() bool {
		content, err := testEnv.ReadEventLog()
		if err != nil {
			return false
		}
		for _, l := range strings.Split(content, "\n") {
			if strings.Contains(l, marker) {
				line = l
				return true
			}
		}
		return false
	}, 10*time.Second, 200*time.Millisecond).Should(BeTrue(), "event line with marker %s should appear in the log", marker)

	return strings.Split(line, "\t")
}

var _ = Describe("Event Logging", func() {
	Context("rewritten pages", func() {
		It("logs a rewrite event with the default template fields", func() {
			response := testEnv.Fetch("site-one.test", "/gallery.html?evt=rewrite-probe")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			fields := waitForEventLine("evt=rewrite-probe")
			Expect(fields).To(HaveLen(9), "Default template has nine tab-separated fields")

			Expect(fields[0]).To(MatchRegexp(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}\.\d{3}Z$`),
				"Timestamps are ISO 8601 with millisecond precision")
			Expect(fields[1]).To(Equal(`"site-one.test"`))
			Expect(fields[2]).To(Equal(`"http://site-one.test/gallery.html?evt=rewrite-probe"`))
			Expect(fields[3]).To(Equal("200"))
			Expect(fields[4]).To(Equal(`"rewrite"`))

			serveTime, err := strconv.ParseFloat(fields[5], 64)
			Expect(err).To(BeNil())
			Expect(serveTime).To(BeNumerically(">", 0))

			originTime, err := strconv.ParseFloat(fields[6], 64)
			Expect(err).To(BeNil())
			Expect(originTime).To(BeNumerically(">", 0))

			rewritten, err := strconv.Atoi(fields[7])
			Expect(err).To(BeNil())
			Expect(rewritten).To(BeNumerically(">", 0))

			Expect(fields[8]).To(Equal(`"127.0.0.1"`))
		})
	})

	Context("passthrough pages", func() {
		It("logs a passthrough event without rewrite detail", func() {
			response := testEnv.Fetch("site-one.test", "/raw/page.html?evt=passthrough-probe")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(200))

			fields := waitForEventLine("evt=passthrough-probe")
			Expect(fields).To(HaveLen(9))
			Expect(fields[4]).To(Equal(`"passthrough"`))
			Expect(fields[7]).To(Equal("-"), "No rewrite metrics exist for passthrough requests")
		})
	})

	Context("status rule responses", func() {
		It("logs a status event with the configured code", func() {
			response := testEnv.Fetch("site-one.test", "/private/reports?evt=status-probe")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(403))

			fields := waitForEventLine("evt=status-probe")
			Expect(fields).To(HaveLen(9))
			Expect(fields[3]).To(Equal("403"))
			Expect(fields[4]).To(Equal(`"status"`))
			Expect(fields[7]).To(Equal("-"))
		})
	})

	Context("failed requests", func() {
		It("logs an error event for unknown tenants", func() {
			response := testEnv.Fetch("nobody.example", "/page.html?evt=error-probe")
			Expect(response.Error).To(BeNil())
			Expect(response.StatusCode).To(Equal(421))

			fields := waitForEventLine("evt=error-probe")
			Expect(fields).To(HaveLen(9))
			Expect(fields[1]).To(Equal(`"nobody.example"`),
				"Requests that matched no tenant keep the name the client asked for")
			Expect(fields[3]).To(Equal("421"))
			Expect(fields[4]).To(Equal(`"error"`))
		})
	})
})
