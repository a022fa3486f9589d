package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEvent() *RequestEvent {
	return &RequestEvent{
		RequestID:         "req-123",
		Host:              "example.com",
		HostID:            7,
		URL:               "https://example.com/blog/post",
		EventType:         "rewrite",
		UserAgent:         "Mozilla/5.0",
		ClientIP:          "203.0.113.9",
		MatchedRule:       "/blog/*",
		StatusCode:        200,
		PageSize:          14523,
		ServeTime:         0.182,
		OriginTime:        0.094,
		EntitlementSource: "cache",
		CreatedAt:         time.Date(2025, 6, 15, 10, 30, 45, 123000000, time.UTC),
		RgInstanceID:      "rg-01",
		Rewrite: &RewriteMetricsEvent{
			URLsRewritten:  12,
			URLsSkipped:    3,
			UnsafeContext:  false,
			Signals:        "",
			ScriptInjected: true,
			Duration:       0.002,
		},
	}
}

func TestNewTemplateFormatter_Valid(t *testing.T) {
	f, err := NewTemplateFormatter("{timestamp}\t{host}\t{status_code}")
	require.NoError(t, err)
	assert.Len(t, f.Placeholders(), 3)
	assert.Equal(t, "{timestamp}\t{host}\t{status_code}", f.Template())
}

func TestNewTemplateFormatter_Errors(t *testing.T) {
	tests := []struct {
		name     string
		template string
		errText  string
	}{
		{"empty template", "", "template cannot be empty"},
		{"unknown placeholder", "{no_such_field}", "unknown placeholder {no_such_field}"},
		{"unclosed placeholder", "{host} {status_code", "unclosed placeholder"},
		{"empty placeholder", "{}", "empty placeholder"},
		{"unknown nested field", "{rewrite.no_such}", "unknown placeholder"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewTemplateFormatter(tt.template)
			require.Error(t, err)
			assert.Nil(t, f)
			assert.Contains(t, err.Error(), tt.errText)
		})
	}
}

func TestFormat_TopLevelFields(t *testing.T) {
	event := sampleEvent()

	tests := []struct {
		template string
		expected string
	}{
		{"{timestamp}", "2025-06-15T10:30:45.123Z"},
		{"{request_id}", `"req-123"`},
		{"{host}", `"example.com"`},
		{"{host_id}", "7"},
		{"{url}", `"https://example.com/blog/post"`},
		{"{event_type}", `"rewrite"`},
		{"{user_agent}", `"Mozilla/5.0"`},
		{"{client_ip}", `"203.0.113.9"`},
		{"{matched_rule}", `"/blog/*"`},
		{"{status_code}", "200"},
		{"{page_size}", "14523"},
		{"{serve_time}", "0.182"},
		{"{origin_time}", "0.094"},
		{"{entitlement_source}", `"cache"`},
		{"{error_type}", "-"},
		{"{error_message}", "-"},
		{"{rg_instance_id}", `"rg-01"`},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			f, err := NewTemplateFormatter(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.Format(event))
		})
	}
}

func TestFormat_RewriteFields(t *testing.T) {
	event := sampleEvent()

	tests := []struct {
		template string
		expected string
	}{
		{"{rewrite.urls_rewritten}", "12"},
		{"{rewrite.urls_skipped}", "3"},
		{"{rewrite.unsafe_context}", "false"},
		{"{rewrite.signals}", "-"},
		{"{rewrite.script_injected}", "true"},
		{"{rewrite.duration}", "0.002"},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			f, err := NewTemplateFormatter(tt.template)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, f.Format(event))
		})
	}
}

func TestFormat_NilRewriteBlock(t *testing.T) {
	event := sampleEvent()
	event.Rewrite = nil

	f, err := NewTemplateFormatter("{rewrite.urls_rewritten}\t{rewrite.script_injected}")
	require.NoError(t, err)
	assert.Equal(t, "-\t-", f.Format(event))
}

func TestFormat_UnsafeContextSignals(t *testing.T) {
	event := sampleEvent()
	event.Rewrite.UnsafeContext = true
	event.Rewrite.Signals = "management,async"
	event.Rewrite.URLsRewritten = 0

	f, err := NewTemplateFormatter("{rewrite.unsafe_context} {rewrite.signals} {rewrite.urls_rewritten}")
	require.NoError(t, err)
	assert.Equal(t, `true "management,async" 0`, f.Format(event))
}

func TestFormat_CompositeTemplate(t *testing.T) {
	event := sampleEvent()

	f, err := NewTemplateFormatter("{timestamp}\t{host}\t{url}\t{status_code}\t{event_type}")
	require.NoError(t, err)

	expected := "2025-06-15T10:30:45.123Z\t\"example.com\"\t\"https://example.com/blog/post\"\t200\t\"rewrite\""
	assert.Equal(t, expected, f.Format(event))
}

func TestFormat_LiteralTextPreserved(t *testing.T) {
	event := sampleEvent()

	f, err := NewTemplateFormatter("host={host} status={status_code} done")
	require.NoError(t, err)
	assert.Equal(t, `host="example.com" status=200 done`, f.Format(event))
}

func TestFormat_EscapesSpecialCharacters(t *testing.T) {
	event := sampleEvent()
	event.UserAgent = "bad\"agent\twith\nnewline"

	f, err := NewTemplateFormatter("{user_agent}")
	require.NoError(t, err)
	assert.Equal(t, `"bad\"agent\twith\nnewline"`, f.Format(event))
}

func TestFormat_EmptyStringsAsDash(t *testing.T) {
	event := &RequestEvent{CreatedAt: time.Now()}

	f, err := NewTemplateFormatter("{host}\t{client_ip}\t{matched_rule}")
	require.NoError(t, err)
	assert.Equal(t, "-\t-\t-", f.Format(event))
}

func TestFormat_NoPlaceholders(t *testing.T) {
	f, err := NewTemplateFormatter("static line")
	require.NoError(t, err)
	assert.Equal(t, "static line", f.Format(sampleEvent()))
}

func TestDefaultTemplate_IsValid(t *testing.T) {
	f, err := NewTemplateFormatter(defaultTemplate)
	require.NoError(t, err)

	line := f.Format(sampleEvent())
	assert.Contains(t, line, `"example.com"`)
	assert.Contains(t, line, "200")
	assert.Contains(t, line, "12")
}
