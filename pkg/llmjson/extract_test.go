package llmjson

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summaryShape struct {
	Summary   string `json:"summary"`
	KeyPoints []struct {
		Point      string `json:"point"`
		Importance int    `json:"importance"`
	} `json:"keyPoints"`
}

func TestExtract_FencedWithCommentsAndTrailingCommas(t *testing.T) {
	response := "Sure! Here is the result:\n\n```json\n{\n" +
		"  // overall summary\n" +
		"  \"summary\": \"Cells are the basic unit of life.\",\n" +
		"  \"keyPoints\": [\n" +
		"    {\"point\": \"Cells divide by mitosis\", \"importance\": 4,},\n" +
		"    /* lower priority */\n" +
		"    {\"point\": \"See https://example.org//cells\", \"importance\": 2},\n" +
		"  ],\n" +
		"}\n```\nLet me know if you need more."

	result := Extract(response)
	require.True(t, result.Found)
	assert.Equal(t, "fenced_json", result.Strategy)

	var out summaryShape
	require.NoError(t, result.Decode(&out))
	assert.Equal(t, "Cells are the basic unit of life.", out.Summary)
	require.Len(t, out.KeyPoints, 2)
	assert.Equal(t, 4, out.KeyPoints[0].Importance)
	assert.Equal(t, "See https://example.org//cells", out.KeyPoints[1].Point)
}

func TestExtract_NoBraces(t *testing.T) {
	result := Extract("I'm sorry, I cannot summarize this content.")
	assert.False(t, result.Found)
	assert.Equal(t, NotFound, result)
}

func TestExtract_Strategies(t *testing.T) {
	tests := []struct {
		name     string
		response string
		strategy string
		summary  string
	}{
		{
			name:     "unlabeled fence",
			response: "```\n{\"summary\": \"from fence\"}\n```",
			strategy: "fenced_object",
			summary:  "from fence",
		},
		{
			name:     "bare object with prose",
			response: "Result: {\"summary\": \"bare\", \"keyPoints\": []} hope this helps",
			strategy: "outer_braces",
			summary:  "bare",
		},
		{
			name:     "stray closing brace after object",
			response: `Here {"summary":"a"} and then } stray`,
			strategy: "brace_regex",
			summary:  "a",
		},
		{
			name:     "label in upper case",
			response: "```JSON\n{\"summary\": \"upper\"}\n```",
			strategy: "fenced_json",
			summary:  "upper",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Extract(tt.response)
			require.True(t, result.Found)
			assert.Equal(t, tt.strategy, result.Strategy)

			var out summaryShape
			require.NoError(t, result.Decode(&out))
			assert.Equal(t, tt.summary, out.Summary)
		})
	}
}

func TestExtract_ArrayIsNotAnObject(t *testing.T) {
	result := Extract("```json\n[1, 2, 3]\n```")
	assert.False(t, result.Found)
}

func TestExtract_MultiLineStringNeedsAggressiveClean(t *testing.T) {
	response := "{\"summary\": \"line one\nline two\twith tab\"}"

	result := Extract(response)
	require.True(t, result.Found)

	var out summaryShape
	require.NoError(t, result.Decode(&out))
	assert.Equal(t, "line one\nline two\twith tab", out.Summary)
}

func TestClean(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "whitespace inside strings is kept",
			in:   "{\n  \"summary\":   \"a    b\"\n}",
			want: `{ "summary": "a    b" }`,
		},
		{
			name: "comment markers inside strings are kept",
			in:   `{"url": "http://x/*y*/", "n": 1 // trailing`,
			want: `{"url": "http://x/*y*/", "n": 1`,
		},
		{
			name: "escaped quote does not end the string",
			in:   `{"q": "say \"hi\", //not a comment", }`,
			want: `{"q": "say \"hi\", //not a comment" }`,
		},
		{
			name: "trailing commas in arrays and objects",
			in:   `{"a": [1, 2, ], "b": {"c": 3,},}`,
			want: `{"a": [1, 2 ], "b": {"c": 3}}`,
		},
		{
			name: "unterminated block comment",
			in:   `{"a": 1} /* dangling`,
			want: `{"a": 1}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Clean(tt.in))
		})
	}
}

func TestCleanAggressive_DropsControlCharacters(t *testing.T) {
	in := "\uFEFF{\"summary\": \"bell\x07 here\"}\x00"
	assert.Equal(t, `{"summary": "bell here"}`, CleanAggressive(in))
}

func TestCleanAggressive_BackslashBeforeRawControl(t *testing.T) {
	in := "{\"summary\": \"line one\\\nline two\\\tend\\\x01\"}"

	cleaned := CleanAggressive(in)
	require.True(t, json.Valid([]byte(cleaned)), cleaned)

	var got struct {
		Summary string `json:"summary"`
	}
	require.NoError(t, json.Unmarshal([]byte(cleaned), &got))
	assert.Equal(t, "line one\nline two\tend\x01", got.Summary)

	result := Extract(in)
	require.True(t, result.Found)
}
