// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package content

import (
	"regexp"
	"strings"
)

// Stage is one named string transform of the normalization pipeline.
type Stage struct {
	Name  string
	Apply func(string) string
}

// Stages is the normalization pipeline in execution order. Later stages
// rely on earlier ones: table and math repair expect real line breaks and
// no color codes.
var Stages = []Stage{
	{Name: "unescape-newlines", Apply: UnescapeNewlines},
	{Name: "strip-color", Apply: StripColor},
	{Name: "heading-breaks", Apply: HeadingBreaks},
	{Name: "repair-tables", Apply: RepairTables},
	{Name: "math-delimiters", Apply: MathDelimiters},
}

// maxPasses bounds the fixpoint loop in Normalize.
const maxPasses = 8

// Normalize runs Stages over raw until the text stops changing.
func Normalize(raw string) string {
	if raw == "" {
		return ""
	}
	out := raw
	for i := 0; i < maxPasses; i++ {
		next := out
		for _, stage := range Stages {
			next = stage.Apply(next)
		}
		if next == out {
			break
		}
		out = next
	}
	return out
}

// =============================================================================
// STAGE 1: UNESCAPE NEWLINES
// =============================================================================

// texNCommands are TeX control words starting with "n". A literal "\n"
// that begins one of them is math, not an escaped line break.
var texNCommands = map[string]bool{
	"nabla": true, "natural": true, "ne": true, "nearrow": true, "neg": true,
	"neq": true, "newcommand": true, "newline": true, "nexists": true,
	"ngeq": true, "ni": true, "nleq": true, "nmid": true, "noindent": true,
	"nolimits": true, "normalsize": true, "not": true, "notin": true,
	"nsubseteq": true, "nu": true, "nwarrow": true,
}

// UnescapeNewlines turns literal "\n" and "\r\n" sequences into line breaks
// and folds CRLF to LF. Text that already has line breaks is only unescaped
// outside code fences.
func UnescapeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if !strings.Contains(s, `\n`) {
		return s
	}
	if !strings.Contains(s, "\n") {
		return unescapeLiteral(s)
	}
	return mapProse(s, unescapeLiteral)
}

func unescapeLiteral(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		switch next := s[i+1]; {
		case next == '\\':
			b.WriteString(`\\`)
			i++
		case next == 'r' && strings.HasPrefix(s[i:], `\r\n`):
			b.WriteByte('\n')
			i += 3
		case next == 'n' && !texCommandAt(s[i+1:]):
			b.WriteByte('\n')
			i++
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func texCommandAt(s string) bool {
	n := 0
	for n < len(s) && isASCIILetter(s[n]) {
		n++
	}
	return texNCommands[s[:n]]
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// =============================================================================
// STAGE 2: STRIP COLOR
// =============================================================================

var (
	ansiColorRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	spanColorRe = regexp.MustCompile(`(?i)<span[^>]*color[^>]*>|</span>`)
	fontTagRe   = regexp.MustCompile(`(?i)<font[^>]*>|</font>`)
)

// StripColor removes terminal color escapes everywhere and inline HTML
// color markup outside code fences.
func StripColor(s string) string {
	s = untilStable(s, func(v string) string {
		return ansiColorRe.ReplaceAllString(v, "")
	})
	return mapProse(s, func(p string) string {
		return untilStable(p, func(v string) string {
			v = spanColorRe.ReplaceAllString(v, "")
			return fontTagRe.ReplaceAllString(v, "")
		})
	})
}

// untilStable applies a shrinking transform until it is a no-op.
func untilStable(s string, fn func(string) string) string {
	for {
		next := fn(s)
		if next == s {
			return s
		}
		s = next
	}
}

// =============================================================================
// STAGE 3: HEADING BREAKS
// =============================================================================

var (
	headingLineRe  = regexp.MustCompile(`^ {0,3}#{1,6}(?:[ \t]|$)`)
	ruleLineRe     = regexp.MustCompile(`^ {0,3}(?:-{3,}|\*{3,}|_{3,})[ \t]*$`)
	gluedHeadingRe = regexp.MustCompile(`([.!?:])[ \t]*(#{2,6}[ \t])`)
)

// HeadingBreaks separates headings and horizontal rules from the prose they
// were glued to, either on the previous line or after sentence punctuation
// on the same line. Lines inside $$ blocks are left as-is.
func HeadingBreaks(s string) string {
	return mapProse(s, func(p string) string {
		return mapOutsideMath(p, headingBreaks)
	})
}

func headingBreaks(s string) string {
	lines := strings.Split(s, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if !strings.Contains(line, "`") && !isTableRow(line) {
			line = gluedHeadingRe.ReplaceAllString(line, "$1\n\n$2")
		}
		for _, part := range strings.Split(line, "\n") {
			marker := headingLineRe.MatchString(part) || ruleLineRe.MatchString(part)
			if marker && len(out) > 0 && strings.TrimSpace(out[len(out)-1]) != "" {
				out = append(out, "")
			}
			out = append(out, part)
		}
	}
	return strings.Join(out, "\n")
}

// =============================================================================
// STAGE 4: REPAIR TABLES
// =============================================================================

func isTableRow(line string) bool {
	return strings.HasPrefix(strings.TrimSpace(line), "|")
}

// RepairTables splits rows that were glued together ("| a | b || c | d |")
// and drops a single blank line between two table rows. Two or more blank
// lines still end the table.
func RepairTables(s string) string {
	return mapProse(s, repairTables)
}

func repairTables(s string) string {
	var rows []string
	for _, line := range strings.Split(s, "\n") {
		if isTableRow(line) && !strings.Contains(line, "`") {
			rows = append(rows, splitGluedRows(line)...)
			continue
		}
		rows = append(rows, line)
	}

	out := make([]string, 0, len(rows))
	for i, line := range rows {
		if strings.TrimSpace(line) == "" && i > 0 && i+1 < len(rows) &&
			isTableRow(rows[i-1]) && isTableRow(rows[i+1]) {
			continue
		}
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

func splitGluedRows(line string) []string {
	indent := line[:len(line)-len(strings.TrimLeft(line, " \t"))]
	var rows []string
	rest := line
	for {
		idx := strings.Index(rest, "||")
		if idx < 0 {
			break
		}
		rows = append(rows, rest[:idx+1])
		rest = indent + rest[idx+1:]
	}
	rows = append(rows, rest)
	if len(rows) == 1 || !uniformRows(rows) {
		return []string{line}
	}
	return rows
}

// uniformRows reports whether every row is closed by a pipe and all rows
// have the same number of cells, at least two. "| a || c |" is one row
// with an empty cell.
func uniformRows(rows []string) bool {
	cells := cellCount(rows[0])
	if cells < 2 {
		return false
	}
	for _, row := range rows {
		if !strings.HasSuffix(strings.TrimSpace(row), "|") || cellCount(row) != cells {
			return false
		}
	}
	return true
}

func cellCount(row string) int {
	t := strings.TrimSpace(row)
	t = strings.TrimSuffix(strings.TrimPrefix(t, "|"), "|")
	return strings.Count(t, "|") + 1
}

// =============================================================================
// STAGE 5: MATH DELIMITERS
// =============================================================================

var (
	displayMathRe = regexp.MustCompile(`(?s)\\\[(.+?)\\\]`)
	inlineMathRe  = regexp.MustCompile(`\\\((.+?)\\\)`)
	bracketLineRe = regexp.MustCompile(`^\s*\[(.+?)\]\s*$`)
	texCommandRe  = regexp.MustCompile(`\\[a-zA-Z]+`)
	scriptRe      = regexp.MustCompile(`[\^_]`)
	textMacroRe   = regexp.MustCompile(`\\(?:text|textbf|textit|mathrm|mathbf|mathit|operatorname|mbox)\{[^}]*\}`)
	proseWordRe   = regexp.MustCompile(`[A-Za-z]{2,}`)
	listItemRe    = regexp.MustCompile(`^\s*(?:[-*+]|\d+[.)])\s`)
)

// MathDelimiters rewrites TeX delimiters into the dollar forms the markdown
// renderer understands:
//
//	\[ ... \]          -> $$ block
//	\( ... \)          -> $...$
//	[ \sum_i x_i ]     -> $$ block (whole-line brackets with TeX inside)
//	x^2 + y^2 = z^2    -> $x^2 + y^2 = z^2$
//
// Lines inside existing $$ blocks are never rewritten.
func MathDelimiters(s string) string {
	return mapProse(s, func(p string) string {
		p = mapOutsideMath(p, rewriteEscapedMath)
		return mapOutsideMath(p, rewriteMathLines)
	})
}

func rewriteEscapedMath(s string) string {
	s = displayMathRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := strings.TrimSpace(m[2 : len(m)-2])
		if inner == "" || strings.ContainsAny(inner, "`$") {
			return m
		}
		return "\n$$\n" + inner + "\n$$\n"
	})
	return inlineMathRe.ReplaceAllStringFunc(s, func(m string) string {
		inner := strings.TrimSpace(m[2 : len(m)-2])
		if inner == "" || strings.ContainsAny(inner, "`$") {
			return m
		}
		return "$" + inner + "$"
	})
}

func rewriteMathLines(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if strings.ContainsAny(line, "$`") {
			continue
		}
		if m := bracketLineRe.FindStringSubmatch(line); m != nil {
			inner := strings.TrimSpace(m[1])
			if texCommandRe.MatchString(inner) || scriptRe.MatchString(inner) {
				lines[i] = "$$\n" + inner + "\n$$"
				continue
			}
		}
		if looksLikeMath(line) {
			lines[i] = "$" + strings.TrimSpace(line) + "$"
		}
	}
	return strings.Join(lines, "\n")
}

// looksLikeMath reports whether a line is bare math: it has a TeX command
// or a sub/superscript in a relation, and no prose words once commands and
// \text{...} groups are removed.
func looksLikeMath(line string) bool {
	t := strings.TrimSpace(line)
	if t == "" || isTableRow(t) || headingLineRe.MatchString(t) ||
		listItemRe.MatchString(line) || strings.HasPrefix(t, ">") ||
		strings.Contains(t, "://") || strings.Contains(t, `:\`) {
		return false
	}

	hasCommand := texCommandRe.MatchString(t)
	hasRelation := scriptRe.MatchString(t) && strings.ContainsAny(t, "=<>")
	if !hasCommand && !hasRelation {
		return false
	}

	bare := textMacroRe.ReplaceAllString(t, "")
	bare = texCommandRe.ReplaceAllString(bare, "")
	return !proseWordRe.MatchString(bare)
}
