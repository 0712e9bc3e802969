// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package content

import "strings"

// block is a run of lines that is either prose or a fenced code span.
// Concatenating every block's text reproduces the input exactly.
type block struct {
	text   string
	code   bool
	closed bool
	info   string
	body   string
}

// language returns the first word of the fence info string.
func (b block) language() string {
	if fields := strings.Fields(b.info); len(fields) > 0 {
		return fields[0]
	}
	return ""
}

// scanBlocks pairs opening and closing backtick fences line by line. An
// opening fence without a closing one extends to the end of s.
func scanBlocks(s string) []block {
	if s == "" {
		return nil
	}

	var (
		blocks []block
		cur    strings.Builder
		body   strings.Builder
		inCode bool
		marker int
		indent int
		info   string
	)

	for _, line := range strings.SplitAfter(s, "\n") {
		if line == "" {
			continue
		}
		if !inCode {
			if n, ind, inf, ok := openingFence(line); ok {
				if cur.Len() > 0 {
					blocks = append(blocks, block{text: cur.String()})
					cur.Reset()
				}
				inCode, marker, indent, info = true, n, ind, inf
				body.Reset()
			}
			cur.WriteString(line)
			continue
		}

		cur.WriteString(line)
		if closingFence(line, marker) {
			blocks = append(blocks, block{
				text:   cur.String(),
				code:   true,
				closed: true,
				info:   info,
				body:   body.String(),
			})
			cur.Reset()
			inCode = false
			continue
		}
		body.WriteString(dedent(line, indent))
	}

	if cur.Len() > 0 {
		blocks = append(blocks, block{
			text: cur.String(),
			code: inCode,
			info: info,
			body: body.String(),
		})
	}
	return blocks
}

// openingFence reports whether line opens a fence at any indent, returning
// the backtick count, the indent width and the info string.
func openingFence(line string) (int, int, string, bool) {
	trimmed := strings.TrimRight(line, "\r\n")
	rest := strings.TrimLeft(trimmed, " \t")
	n := 0
	for n < len(rest) && rest[n] == '`' {
		n++
	}
	if n < 3 {
		return 0, 0, "", false
	}
	info := strings.TrimSpace(rest[n:])
	if strings.Contains(info, "`") {
		return 0, 0, "", false
	}
	return n, len(trimmed) - len(rest), info, true
}

// closingFence reports whether line is a bare run of at least marker
// backticks, at any indent.
func closingFence(line string, marker int) bool {
	t := strings.TrimSpace(line)
	return len(t) >= marker && strings.Trim(t, "`") == ""
}

// dedent removes up to n leading blanks from line.
func dedent(line string, n int) string {
	i := 0
	for i < n && i < len(line) && (line[i] == ' ' || line[i] == '\t') {
		i++
	}
	return line[i:]
}

// mapProse applies fn to every prose block and leaves code blocks,
// including unterminated ones, untouched.
func mapProse(s string, fn func(string) string) string {
	blocks := scanBlocks(s)
	if len(blocks) == 1 && !blocks[0].code {
		return fn(s)
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, blk := range blocks {
		if blk.code {
			b.WriteString(blk.text)
			continue
		}
		b.WriteString(fn(blk.text))
	}
	return b.String()
}

// mapOutsideMath applies fn to the text between "$$" display-math blocks.
// Lines inside a block, or after an unmatched opening "$$", are left as-is.
func mapOutsideMath(s string, fn func(string) string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	var chunk []string
	inMath := false

	flush := func() {
		if chunk != nil {
			out = append(out, fn(strings.Join(chunk, "\n")))
			chunk = nil
		}
	}

	for _, line := range lines {
		if strings.TrimSpace(line) == "$$" {
			if !inMath {
				flush()
			}
			out = append(out, line)
			inMath = !inMath
			continue
		}
		if inMath {
			out = append(out, line)
			continue
		}
		chunk = append(chunk, line)
	}
	flush()
	return strings.Join(out, "\n")
}
