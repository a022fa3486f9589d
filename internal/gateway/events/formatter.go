package events

import (
	"fmt"
	"strings"
	"time"
)

// TemplateFormatter formats RequestEvent using a template string
type TemplateFormatter struct {
	template     string
	placeholders []placeholder
}

type placeholder struct {
	raw       string   // e.g., "{rewrite.urls_rewritten}"
	fieldPath []string // e.g., ["rewrite", "urls_rewritten"]
	start     int
	end       int
}

// validFields contains all known placeholder names
var validFields = map[string]bool{
	"timestamp":               true,
	"request_id":              true,
	"host":                    true,
	"host_id":                 true,
	"url":                     true,
	"event_type":              true,
	"user_agent":              true,
	"client_ip":               true,
	"matched_rule":            true,
	"status_code":             true,
	"page_size":               true,
	"serve_time":              true,
	"origin_time":             true,
	"entitlement_source":      true,
	"error_type":              true,
	"error_message":           true,
	"rg_instance_id":          true,
	"rewrite.urls_rewritten":  true,
	"rewrite.urls_skipped":    true,
	"rewrite.unsafe_context":  true,
	"rewrite.signals":         true,
	"rewrite.script_injected": true,
	"rewrite.duration":        true,
}

// NewTemplateFormatter parses and validates the template.
// Returns error if any placeholder is unknown or template is empty.
func NewTemplateFormatter(template string) (*TemplateFormatter, error) {
	if template == "" {
		return nil, fmt.Errorf("template cannot be empty")
	}

	placeholders, err := parsePlaceholders(template)
	if err != nil {
		return nil, err
	}

	return &TemplateFormatter{
		template:     template,
		placeholders: placeholders,
	}, nil
}

// parsePlaceholders extracts and validates all placeholders from the template
func parsePlaceholders(template string) ([]placeholder, error) {
	var placeholders []placeholder
	i := 0

	for i < len(template) {
		// Find opening brace
		start := strings.Index(template[i:], "{")
		if start == -1 {
			break
		}
		start += i

		// Find closing brace
		end := strings.Index(template[start:], "}")
		if end == -1 {
			return nil, fmt.Errorf("unclosed placeholder at position %d", start)
		}
		end += start

		// Extract field name (without braces)
		fieldName := template[start+1 : end]
		if fieldName == "" {
			return nil, fmt.Errorf("empty placeholder at position %d", start)
		}

		// Validate field name
		if !validFields[fieldName] {
			return nil, fmt.Errorf("unknown placeholder {%s}", fieldName)
		}

		// Parse field path (e.g., "rewrite.urls_rewritten" -> ["rewrite", "urls_rewritten"])
		fieldPath := strings.Split(fieldName, ".")

		placeholders = append(placeholders, placeholder{
			raw:       template[start : end+1],
			fieldPath: fieldPath,
			start:     start,
			end:       end + 1,
		})

		i = end + 1
	}

	return placeholders, nil
}

// Template returns the original template string
func (f *TemplateFormatter) Template() string {
	return f.template
}

// Placeholders returns the parsed placeholders (for testing)
func (f *TemplateFormatter) Placeholders() []placeholder {
	return f.placeholders
}

// Format renders the event using the template
func (f *TemplateFormatter) Format(event *RequestEvent) string {
	if len(f.placeholders) == 0 {
		return f.template
	}

	result := f.template
	// Process placeholders in reverse order to maintain correct positions
	for i := len(f.placeholders) - 1; i >= 0; i-- {
		p := f.placeholders[i]
		value := f.getFieldValue(event, p.fieldPath)
		result = result[:p.start] + value + result[p.end:]
	}

	return result
}

// getFieldValue retrieves and formats a field value from the event
func (f *TemplateFormatter) getFieldValue(event *RequestEvent, fieldPath []string) string {
	if len(fieldPath) == 0 {
		return "-"
	}

	// Handle nested rewrite fields
	if fieldPath[0] == "rewrite" {
		if event.Rewrite == nil {
			return "-"
		}
		if len(fieldPath) < 2 {
			return "-"
		}
		return f.getRewriteFieldValue(event.Rewrite, fieldPath[1])
	}

	// Handle top-level fields
	return f.getTopLevelFieldValue(event, fieldPath[0])
}

// getTopLevelFieldValue retrieves and formats a top-level field
func (f *TemplateFormatter) getTopLevelFieldValue(event *RequestEvent, field string) string {
	switch field {
	case "timestamp":
		return formatTime(event.CreatedAt)
	case "request_id":
		return formatString(event.RequestID)
	case "host":
		return formatString(event.Host)
	case "host_id":
		return formatInt(event.HostID)
	case "url":
		return formatString(event.URL)
	case "event_type":
		return formatString(event.EventType)
	case "user_agent":
		return formatString(event.UserAgent)
	case "client_ip":
		return formatString(event.ClientIP)
	case "matched_rule":
		return formatString(event.MatchedRule)
	case "status_code":
		return formatInt(event.StatusCode)
	case "page_size":
		return formatInt64(event.PageSize)
	case "serve_time":
		return formatFloat(event.ServeTime)
	case "origin_time":
		return formatFloat(event.OriginTime)
	case "entitlement_source":
		return formatString(event.EntitlementSource)
	case "error_type":
		return formatString(event.ErrorType)
	case "error_message":
		return formatString(event.ErrorMessage)
	case "rg_instance_id":
		return formatString(event.RgInstanceID)
	default:
		return "-"
	}
}

// getRewriteFieldValue retrieves and formats a rewrite metrics field
func (f *TemplateFormatter) getRewriteFieldValue(rw *RewriteMetricsEvent, field string) string {
	switch field {
	case "urls_rewritten":
		return formatInt(rw.URLsRewritten)
	case "urls_skipped":
		return formatInt(rw.URLsSkipped)
	case "unsafe_context":
		return formatBool(rw.UnsafeContext)
	case "signals":
		return formatString(rw.Signals)
	case "script_injected":
		return formatBool(rw.ScriptInjected)
	case "duration":
		return formatFloat(rw.Duration)
	default:
		return "-"
	}
}

// escapeString escapes special characters in a string for log output
func escapeString(s string) string {
	escaped := strings.ReplaceAll(s, "\\", "\\\\")
	escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
	escaped = strings.ReplaceAll(escaped, "\n", "\\n")
	escaped = strings.ReplaceAll(escaped, "\t", "\\t")
	escaped = strings.ReplaceAll(escaped, "\r", "\\r")
	return escaped
}

// formatString formats a string value with quotes and escaping
func formatString(s string) string {
	if s == "" {
		return "-"
	}
	return "\"" + escapeString(s) + "\""
}

// formatInt formats an integer
func formatInt(i int) string {
	return fmt.Sprintf("%d", i)
}

// formatInt64 formats an int64
func formatInt64(i int64) string {
	return fmt.Sprintf("%d", i)
}

// formatFloat formats a float64 with 3 decimal places
func formatFloat(f float64) string {
	return fmt.Sprintf("%.3f", f)
}

// formatBool formats a boolean
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// formatTime formats a time in ISO 8601 format
func formatTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z")
}
