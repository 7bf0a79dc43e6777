package llm

import "testing"

func TestSanitizeJSON(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		expected string
	}{
		{
			name:     "plain object untouched",
			raw:      `{"a": 1}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "fenced with language tag",
			raw:      "```json\n{\"a\": 1}\n```",
			expected: `{"a": 1}`,
		},
		{
			name:     "fenced without language tag",
			raw:      "```\n[1, 2]\n```",
			expected: `[1, 2]`,
		},
		{
			name:     "leading chatter trimmed",
			raw:      `Here is the result: {"a": 1}`,
			expected: `{"a": 1}`,
		},
		{
			name:     "trailing chatter trimmed",
			raw:      `{"a": 1} Hope that helps!`,
			expected: `{"a": 1}`,
		},
		{
			name:     "raw newline inside string becomes space",
			raw:      "{\"a\": \"line one\nline two\"}",
			expected: `{"a": "line one line two"}`,
		},
		{
			name:     "array payload",
			raw:      `the list: ["x", "y"] done`,
			expected: `["x", "y"]`,
		},
		{
			name:     "no json at all passes through",
			raw:      "sorry, I cannot do that",
			expected: "sorry, I cannot do that",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeJSON(tt.raw); got != tt.expected {
				t.Errorf("SanitizeJSON(%q) = %q, want %q", tt.raw, got, tt.expected)
			}
		})
	}
}

func TestDecodeJSON(t *testing.T) {
	var out struct {
		Sentiment float64 `json:"sentiment"`
	}
	raw := "```json\n{\"sentiment\": -0.6}\n```"
	if err := DecodeJSON(raw, &out); err != nil {
		t.Fatalf("DecodeJSON failed: %v", err)
	}
	if out.Sentiment != -0.6 {
		t.Errorf("sentiment = %v, want -0.6", out.Sentiment)
	}

	if err := DecodeJSON("not json at all", &out); err == nil {
		t.Error("expected error for unparseable response")
	}
}
