package config

import "sort"

// UAAliases maps alias names to automation User-Agent patterns.
// Aliases let hosts reference curated groups of automation clients in
// context.automation_ua lists instead of maintaining raw pattern arrays.
// Alias references are written with a "$" prefix, e.g. "$CMSTools".
var UAAliases = map[string][]string{
	"WPCLI": {
		"*wp-cli*",
		"WP-CLI/*",
	},
	"WordPressCore": {
		// Self-requests issued by the platform's HTTP layer (cron
		// spawns, pingbacks, REST loopbacks).
		"WordPress/*",
	},
	"DrushCLI": {
		"*drush*",
	},
	"ComposerTools": {
		"Composer/*",
		"*packagist*",
	},
	"HTTPLibraries": {
		"curl/*",
		"Wget/*",
		"*python-requests*",
		"*python-urllib*",
		"Go-http-client/*",
		"*okhttp*",
		"Java/*",
	},
	"Monitoring": {
		"*UptimeRobot/*",
		"*Pingdom*",
		"*StatusCake*",
		"*Site24x7*",
		"*checkly*",
		"~^Better ?Uptime",
	},
	"DeployTools": {
		"*Jenkins*",
		"*GitHub-Hookshot*",
		"*GitLab*",
	},

	// Composite aliases - reference other aliases with $ prefix (single
	// level nesting).
	"CMSTools": {
		"$WPCLI",
		"$WordPressCore",
		"$DrushCLI",
	},
	"NonBrowser": {
		"$HTTPLibraries",
		"$Monitoring",
		"$DeployTools",
	},
}

// GetUAAlias returns the User-Agent patterns for a given alias name.
// Returns the patterns and true if the alias exists, nil and false otherwise.
func GetUAAlias(name string) ([]string, bool) {
	patterns, exists := UAAliases[name]
	return patterns, exists
}

// GetAvailableUAAliases returns a sorted list of all available alias names.
func GetAvailableUAAliases() []string {
	if len(UAAliases) == 0 {
		return []string{}
	}

	aliases := make([]string, 0, len(UAAliases))
	for name := range UAAliases {
		aliases = append(aliases, name)
	}
	sort.Strings(aliases)
	return aliases
}
