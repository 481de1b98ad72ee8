package parser

import "strings"

// Section is one blank-line-delimited block of a document.
type Section struct {
	Offset int    // byte offset of Text in the document
	Text   string // shares memory with the document
}

// SplitSections partitions input on runs of blank lines. Whitespace-only
// partitions, such as the one after a trailing blank line, are dropped.
func SplitSections(input string) []Section {
	var sections []Section
	prev := 0
	for _, m := range sectionDelimiter.FindAllStringIndex(input, -1) {
		sections = appendSection(sections, input, prev, m[0])
		prev = m[1]
	}
	return appendSection(sections, input, prev, len(input))
}

func appendSection(sections []Section, input string, start, end int) []Section {
	text := input[start:end]
	if strings.TrimSpace(text) == "" {
		return sections
	}
	return append(sections, Section{Offset: start, Text: text})
}
