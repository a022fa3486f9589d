package configtest

import (
	"fmt"

	"github.com/valyala/fasthttp"

	"github.com/edgelift/gateway/pkg/types"
)

// PrintURLTestResult prints URL test results for the -t command line mode
func PrintURLTestResult(result *URLTestResult) {
	if result.Error != "" {
		fmt.Printf("\nERROR: %s\n", result.Error)
		return
	}

	if result.IsAbsolute {
		fmt.Println()
	} else {
		fmt.Printf("\nTesting URL: %s\n", result.URL)
		fmt.Printf("Checking across %d hosts...\n", len(result.HostResults))
	}

	for i := range result.HostResults {
		printHostTestResult(&result.HostResults[i])
	}
}

// printHostTestResult prints the verdict for a single host
func printHostTestResult(result *HostTestResult) {
	fmt.Printf("\n=== Host: %s (host_id: %d) ===\n", result.Host, result.HostID)
	fmt.Printf("URL: %s\n", result.TestedURL)

	if result.MatchedPattern != "" {
		fmt.Printf("Matched Pattern: %s\n", result.MatchedPattern)
	} else {
		fmt.Println("Matched Pattern: (default)")
	}

	fmt.Printf("Action: %s\n", result.Action)

	if result.Config != nil && types.URLRuleAction(result.Action).IsStatusAction() {
		printStatusConfig(result)
		return
	}

	if !result.RewriteEnabled {
		fmt.Println("Rewrite: disabled")
		return
	}

	fmt.Printf("Rewrite: enabled (edge domain: %s)\n", result.EdgeDomain)
	fmt.Printf("Eligibility: %s\n", result.Eligibility)

	if result.EdgeURL != "" {
		fmt.Printf("Edge URL: %s\n", result.EdgeURL)
		fmt.Printf("Recovered Origin: %s\n", result.TrueOrigin)
	}
}

// printStatusConfig prints status action configuration
func printStatusConfig(result *HostTestResult) {
	fmt.Printf("Response: %d %s\n", result.Config.Status.Code, fasthttp.StatusMessage(result.Config.Status.Code))

	if result.Config.Status.Reason != "" {
		fmt.Printf("Reason: %s\n", result.Config.Status.Reason)
	}

	if len(result.Config.Status.Headers) > 0 {
		fmt.Println("Headers:")
		for key, value := range result.Config.Status.Headers {
			fmt.Printf("  - %s: %s\n", key, value)
		}
	}
}
