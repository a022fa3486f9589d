package config

import (
	"fmt"
	"strings"
)

const maxAliasNestingDepth = 1

// ExpandUAAliases expands alias references (prefixed with $) in an
// automation_ua pattern array to their underlying patterns from UAAliases.
// Supports composite aliases that reference other aliases (single level
// nesting). Collects ALL unknown aliases before returning error for better UX.
func ExpandUAAliases(patterns []string, context string) ([]string, error) {
	return expandPatternsWithNesting(patterns, 0, context)
}

// expandPatternsWithNesting expands patterns that may contain alias references.
// Supports single level of nesting (composite aliases referencing base aliases).
func expandPatternsWithNesting(patterns []string, depth int, context string) ([]string, error) {
	if len(patterns) == 0 {
		return patterns, nil
	}

	if depth > maxAliasNestingDepth {
		return nil, fmt.Errorf("alias nesting exceeds maximum depth of %d in %s", maxAliasNestingDepth, context)
	}

	expandedPatterns := []string{}
	unknownAliases := []string{}

	for _, pattern := range patterns {
		if strings.HasPrefix(pattern, "$") {
			aliasName := strings.TrimPrefix(pattern, "$")

			aliasPatterns, exists := GetUAAlias(aliasName)
			if !exists {
				unknownAliases = append(unknownAliases, pattern)
				continue
			}

			// Check if alias contains nested references (composite alias)
			if containsAliasReferences(aliasPatterns) {
				nestedExpanded, err := expandPatternsWithNesting(aliasPatterns, depth+1, context)
				if err != nil {
					return nil, err
				}
				expandedPatterns = append(expandedPatterns, nestedExpanded...)
			} else {
				expandedPatterns = append(expandedPatterns, aliasPatterns...)
			}
		} else {
			expandedPatterns = append(expandedPatterns, pattern)
		}
	}

	if len(unknownAliases) > 0 {
		return nil, buildUnknownAliasesError(unknownAliases, context)
	}

	return expandedPatterns, nil
}

// containsAliasReferences checks if any pattern in the slice starts with $
func containsAliasReferences(patterns []string) bool {
	for _, p := range patterns {
		if strings.HasPrefix(p, "$") {
			return true
		}
	}
	return false
}

// buildUnknownAliasesError creates error message for multiple unknown aliases
func buildUnknownAliasesError(unknownAliases []string, context string) error {
	availableAliases := GetAvailableUAAliases()

	var aliasesStr string
	if len(unknownAliases) == 1 {
		aliasesStr = fmt.Sprintf("unknown UA alias %q", unknownAliases[0])
	} else {
		quotedAliases := make([]string, len(unknownAliases))
		for i, alias := range unknownAliases {
			quotedAliases[i] = fmt.Sprintf("%q", alias)
		}
		aliasesStr = fmt.Sprintf("unknown UA aliases %s", strings.Join(quotedAliases, ", "))
	}

	var hint string
	if len(availableAliases) == 0 {
		hint = "\n\nNo UA aliases are currently defined"
	} else {
		const maxDisplayed = 5
		displayed := availableAliases
		remaining := 0

		if len(availableAliases) > maxDisplayed {
			displayed = availableAliases[:maxDisplayed]
			remaining = len(availableAliases) - maxDisplayed
		}

		aliasesWithPrefix := make([]string, len(displayed))
		for i, alias := range displayed {
			aliasesWithPrefix[i] = "$" + alias
		}

		hint = "\n\nAvailable aliases: " + strings.Join(aliasesWithPrefix, ", ")
		if remaining > 0 {
			hint += fmt.Sprintf(" ... and %d more", remaining)
		}
	}

	return fmt.Errorf("%s at %s%s", aliasesStr, context, hint)
}
