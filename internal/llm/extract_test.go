package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractJSONObject(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    string
		wantErr error
	}{
		{
			name: "plain object",
			raw:  `{"sentiment":"BULLISH"}`,
			want: `{"sentiment":"BULLISH"}`,
		},
		{
			name: "fenced json",
			raw:  "```json\n{\"confidence\": 7}\n```",
			want: `{"confidence": 7}`,
		},
		{
			name: "prose around object",
			raw:  "Here is my analysis:\n{\"a\": {\"b\": 1}} Hope this helps {\"c\":2}",
			want: `{"a": {"b": 1}}`,
		},
		{
			name: "braces inside strings",
			raw:  `{"summary": "guidance {raised} to \"}\" levels", "x": 1}`,
			want: `{"summary": "guidance {raised} to \"}\" levels", "x": 1}`,
		},
		{
			name:    "no object",
			raw:     "I cannot help with that.",
			wantErr: ErrNoJSONObject,
		},
		{
			name:    "truncated",
			raw:     `{"sentiment": "BULLISH", "confidence": `,
			wantErr: ErrUnbalancedJSON,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractJSONObject(tt.raw)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, "{}", StripCodeFences("```\n{}\n```"))
	assert.Equal(t, "no fences", StripCodeFences("  no fences  "))
}
