// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package content

import (
	"regexp"
	"strings"
)

const (
	// ExecLanguage tags a fence holding executed code followed by its
	// captured output.
	ExecLanguage = "python-exec"

	// OutputDelimiter is the line separating source from output inside an
	// ExecLanguage fence.
	OutputDelimiter = "---OUTPUT---"

	// ImagePlaceholder replaces inline image payloads in execution output.
	ImagePlaceholder = "[Successful code generation]"
)

// SegmentKind distinguishes prose from code.
type SegmentKind int

const (
	SegmentProse SegmentKind = iota
	SegmentCode
)

func (k SegmentKind) String() string {
	if k == SegmentCode {
		return "code"
	}
	return "prose"
}

// Segment is one piece of a rendered message. Prose segments carry Text;
// code segments carry Language, Source and, for executed code, Output.
type Segment struct {
	Kind      SegmentKind
	Text      string
	Language  string
	Source    string
	Output    string
	HasOutput bool
}

// Prose returns a prose segment.
func Prose(text string) Segment {
	return Segment{Kind: SegmentProse, Text: text}
}

// Code returns a code segment without output.
func Code(language, source string) Segment {
	return Segment{Kind: SegmentCode, Language: language, Source: source}
}

// CodeWithOutput returns a code segment carrying execution output.
func CodeWithOutput(language, source, output string) Segment {
	return Segment{Kind: SegmentCode, Language: language, Source: source, Output: output, HasOutput: true}
}

// IsCode reports whether the segment is code.
func (s Segment) IsCode() bool {
	return s.Kind == SegmentCode
}

// DisplayOutput returns Output with inline image payloads replaced.
func (s Segment) DisplayOutput() string {
	return ReplaceImagePayloads(s.Output)
}

// Extract splits normalized text into ordered segments.
//
// Language-tagged fences become code. A python-exec fence is split on the
// first OutputDelimiter line into source and output. Untagged fences,
// unterminated fences and all other text stay prose, in source order.
// Whitespace-only prose is kept and adjacent prose is not merged, so
// joining every segment's raw text reproduces the input's layout.
func Extract(normalized string) []Segment {
	var segs []Segment
	for _, b := range scanBlocks(normalized) {
		lang := b.language()
		if !b.code || !b.closed || lang == "" {
			segs = append(segs, Prose(b.text))
			continue
		}
		segs = append(segs, codeSegment(lang, b.body))
	}
	return segs
}

func codeSegment(lang, body string) Segment {
	if !strings.EqualFold(lang, ExecLanguage) {
		return Code(lang, strings.TrimSuffix(body, "\n"))
	}
	source, output, ok := splitExecBody(body)
	if !ok {
		return Code("python", strings.TrimSpace(body))
	}
	return CodeWithOutput("python", strings.TrimSpace(source), strings.TrimSpace(output))
}

func splitExecBody(body string) (string, string, bool) {
	offset := 0
	for _, line := range strings.SplitAfter(body, "\n") {
		if strings.TrimSpace(line) == OutputDelimiter {
			return body[:offset], body[offset+len(line):], true
		}
		offset += len(line)
	}
	return body, "", false
}

var (
	markdownImageRe = regexp.MustCompile(`!\[[^\]]*\]\(data:image/[^;]+;base64,[^)]*\)`)
	dataImageURIRe  = regexp.MustCompile(`data:image/[A-Za-z0-9.+-]+;base64,[A-Za-z0-9+/]+=*`)
)

// ReplaceImagePayloads swaps base64 image payloads, as markdown images or
// bare data URIs, for ImagePlaceholder.
func ReplaceImagePayloads(output string) string {
	output = markdownImageRe.ReplaceAllString(output, ImagePlaceholder)
	return dataImageURIRe.ReplaceAllString(output, ImagePlaceholder)
}
