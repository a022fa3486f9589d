package acceptance_test

import (
	"os/exec"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const configTestFixture = "tests/integration/fixtures/configtest-url-tester/rewrite-gateway.yaml"
const configTestInvalidFixture = "tests/integration/fixtures/configtest-url-tester/invalid_config.yaml"

// createConfigTestCommand creates a command for config validation testing.
// It sets the working directory to the project root to ensure go.mod is accessible.
func createConfigTestCommand(args ...string) *exec.Cmd {
	cmdArgs := append([]string{"run", "./cmd/rewrite-gateway"}, args...)
	cmd := exec.Command("go", cmdArgs...)

	// Set working directory to project root (three levels up from tests/acceptance/basic)
	cmd.Dir = "../../.."

	return cmd
}

var _ = Describe("Config Validation", func() {
	Context("when running validation only", func() {
		It("should succeed with valid configuration", func() {
			cmd := createConfigTestCommand("-c", configTestFixture, "-t")
			output, err := cmd.CombinedOutput()

			Expect(err).NotTo(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("syntax is ok"))
			Expect(string(output)).To(ContainSubstring("configuration test is successful"))
		})

		It("should fail with invalid configuration", func() {
			cmd := createConfigTestCommand("-c", configTestInvalidFixture, "-t")
			output, err := cmd.CombinedOutput()

			Expect(err).To(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("Configuration validation FAILED"))
			Expect(string(output)).To(ContainSubstring("invalid server.listen"))
		})

		It("should return exit code 1 for invalid config", func() {
			cmd := createConfigTestCommand("-c", configTestInvalidFixture, "-t")
			err := cmd.Run()

			Expect(err).To(HaveOccurred())
			exitErr, ok := err.(*exec.ExitError)
			Expect(ok).To(BeTrue())
			Expect(exitErr.ExitCode()).To(Equal(1))
		})
	})

	Context("when testing URLs", func() {
		It("should show the edge round trip for a media URL", func() {
			cmd := createConfigTestCommand("-c", configTestFixture, "-t", "https://example.com/media/photo.jpg")
			output, err := cmd.CombinedOutput()

			Expect(err).NotTo(HaveOccurred())
			outputStr := string(output)
			Expect(outputStr).To(ContainSubstring("=== Host: example.com (host_id: 1) ==="))
			Expect(outputStr).To(ContainSubstring("Matched Pattern: (default)"))
			Expect(outputStr).To(ContainSubstring("Action: rewrite"))
			Expect(outputStr).To(ContainSubstring("Rewrite: enabled (edge domain: static-cdn.example.com)"))
			Expect(outputStr).To(ContainSubstring("Eligibility: eligible"))
			Expect(outputStr).To(ContainSubstring("Edge URL: https://static-cdn.example.com/example.com/media/photo.jpg"))
			Expect(outputStr).To(ContainSubstring("Recovered Origin: https://example.com/media/photo.jpg"))
		})

		It("should judge the URL under every configured host", func() {
			cmd := createConfigTestCommand("-c", configTestFixture, "-t", "https://example.com/media/photo.jpg")
			output, err := cmd.CombinedOutput()

			Expect(err).NotTo(HaveOccurred())
			outputStr := string(output)
			Expect(outputStr).To(ContainSubstring("=== Host: shop.example.com (host_id: 2) ==="))
			Expect(outputStr).To(ContainSubstring("Eligibility: domain_not_allowed"),
				"example.com is not in shop.example.com's allow-list")
		})

		It("should show status action details for admin URLs", func() {
			cmd := createConfigTestCommand("-c", configTestFixture, "-t", "https://example.com/admin/users")
			output, err := cmd.CombinedOutput()

			Expect(err).NotTo(HaveOccurred())
			outputStr := string(output)
			Expect(outputStr).To(ContainSubstring("Matched Pattern: /admin/*"))
			Expect(outputStr).To(ContainSubstring("Action: status_403"))
			Expect(outputStr).To(ContainSubstring("Response: 403 Forbidden"))
			Expect(outputStr).To(ContainSubstring("Reason: Admin area"))
		})

		It("should mark page URLs as unsupported for rewriting", func() {
			cmd := createConfigTestCommand("-c", configTestFixture, "-t", "https://example.com/blog/post-1")
			output, err := cmd.CombinedOutput()

			Expect(err).NotTo(HaveOccurred())
			outputStr := string(output)
			Expect(outputStr).To(ContainSubstring("Matched Pattern: /blog/*"))
			Expect(outputStr).To(ContainSubstring("Action: rewrite"))
			Expect(outputStr).To(ContainSubstring("Eligibility: unsupported_extension"))
			Expect(outputStr).NotTo(ContainSubstring("Edge URL:"),
				"Page URLs have no media extension and stay on the origin")
		})

		It("should test relative URLs across all hosts", func() {
			cmd := createConfigTestCommand("-c", configTestFixture, "-t", "/media/photo.jpg")
			output, err := cmd.CombinedOutput()

			Expect(err).NotTo(HaveOccurred())
			outputStr := string(output)
			Expect(outputStr).To(ContainSubstring("Testing URL: /media/photo.jpg"))
			Expect(outputStr).To(ContainSubstring("Checking across 2 hosts"))
			Expect(outputStr).To(ContainSubstring("=== Host: example.com"))
			Expect(outputStr).To(ContainSubstring("=== Host: shop.example.com"))
			Expect(outputStr).To(ContainSubstring("Edge URL: https://shop-cdn.example.com/shop.example.com/media/photo.jpg"),
				"Relative URLs are anchored on each host's own domain")
		})
	})

	Context("when testing pattern matching", func() {
		It("should match wildcard patterns recursively", func() {
			cmd := createConfigTestCommand("-c", configTestFixture, "-t", "https://example.com/admin/users/edit/42")
			output, err := cmd.CombinedOutput()

			Expect(err).NotTo(HaveOccurred())
			Expect(string(output)).To(ContainSubstring("Matched Pattern: /admin/*"))
			Expect(string(output)).To(ContainSubstring("Action: status_403"))
		})
	})
})
