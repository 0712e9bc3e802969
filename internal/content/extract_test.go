// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package content

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []Segment
	}{
		{
			name:  "empty",
			input: "",
			want:  nil,
		},
		{
			name:  "exec block with output",
			input: "```python-exec\nprint(1)\n---OUTPUT---\n1\n```",
			want:  []Segment{CodeWithOutput("python", "print(1)", "1")},
		},
		{
			name:  "exec block without delimiter",
			input: "```python-exec\nprint(2)\n```",
			want:  []Segment{Code("python", "print(2)")},
		},
		{
			name:  "exec block splits on first delimiter",
			input: "```python-exec\na\n---OUTPUT---\nb\n---OUTPUT---\nc\n```",
			want:  []Segment{CodeWithOutput("python", "a", "b\n---OUTPUT---\nc")},
		},
		{
			name:  "tagged fence between prose",
			input: "Here:\n```go\nfmt.Println()\n```\nDone.",
			want: []Segment{
				Prose("Here:\n"),
				Code("go", "fmt.Println()"),
				Prose("Done."),
			},
		},
		{
			name:  "info string extras ignored",
			input: "```python title=x\npass\n```",
			want:  []Segment{Code("python", "pass")},
		},
		{
			name:  "untagged fence is prose",
			input: "```\nplain\n```",
			want:  []Segment{Prose("```\nplain\n```")},
		},
		{
			name:  "unterminated fence is prose and not merged",
			input: "text\n```python\nx = 1",
			want:  []Segment{Prose("text\n"), Prose("```python\nx = 1")},
		},
		{
			name:  "whitespace prose kept",
			input: "```go\nx\n```\n\n```go\ny\n```",
			want:  []Segment{Code("go", "x"), Prose("\n"), Code("go", "y")},
		},
		{
			name:  "indented fence in list item",
			input: "1. Run this:\n\n    ```python\n    y = x^2 + 1\n    # step two\n    ```\n",
			want: []Segment{
				Prose("1. Run this:\n\n"),
				Code("python", "y = x^2 + 1\n# step two"),
			},
		},
		{
			name:  "body indented past the fence keeps the extra",
			input: "  ```go\n  if x {\n      y()\n  }\n  ```",
			want:  []Segment{Code("go", "if x {\n    y()\n}")},
		},
		{
			name:  "longer closing fence closes",
			input: "```sql\nselect 1\n`````\n",
			want:  []Segment{Code("sql", "select 1")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Extract(tt.input))
		})
	}
}

func TestExtract_PrefixesNeverEmitPartialCode(t *testing.T) {
	doc := "Analysis:\n```python-exec\nimport pandas as pd\nprint(df.head())\n---OUTPUT---\n   a  b\n0  1  2\n```\nThat is the head."
	closeEnd := strings.LastIndex(doc, "```") + 3

	for i := 0; i <= len(doc); i++ {
		prefix := doc[:i]
		var code int
		require.NotPanics(t, func() {
			for _, seg := range Extract(prefix) {
				if seg.IsCode() {
					code++
				}
			}
		})
		if i < closeEnd {
			assert.Zero(t, code, "prefix %d emitted code before the fence closed", i)
		} else {
			assert.Equal(t, 1, code, "prefix %d", i)
		}
	}
}

func TestExtract_OfNormalizedStream(t *testing.T) {
	raw := `Here is the result:\n` + "```python-exec" + `\nprint(2+2)\n---OUTPUT---\n4\n` + "```"
	segs := Extract(Normalize(raw))

	require.Len(t, segs, 2)
	assert.Equal(t, Prose("Here is the result:\n"), segs[0])
	assert.Equal(t, CodeWithOutput("python", "print(2+2)", "4"), segs[1])
}

func TestReplaceImagePayloads(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			"markdown image",
			"Chart:\n![chart](data:image/png;base64,iVBORw0KGgo=)\nend",
			"Chart:\n[Successful code generation]\nend",
		},
		{
			"bare data uri",
			"see data:image/jpeg;base64,AAAA/+== end",
			"see [Successful code generation] end",
		},
		{
			"plain output kept",
			"   a  b\n0  1  2",
			"   a  b\n0  1  2",
		},
		{
			"remote image kept",
			"![x](https://example.com/x.png)",
			"![x](https://example.com/x.png)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ReplaceImagePayloads(tt.input))
		})
	}
}

func TestSegment_DisplayOutput(t *testing.T) {
	seg := CodeWithOutput("python", "plot()", "![p](data:image/png;base64,QUJD)")
	assert.Equal(t, ImagePlaceholder, seg.DisplayOutput())
	assert.Equal(t, "code", seg.Kind.String())
	assert.Equal(t, "prose", Prose("x").Kind.String())
}
