package chunk

import (
	"context"
	"regexp"
	"strings"
)

var (
	// Matches ATX headers: # Title .. ###### Title
	headerPattern = regexp.MustCompile(`^(#{1,6})\s+(.+?)\s*$`)

	// Matches frontmatter: ---\n...\n---
	frontmatterPattern = regexp.MustCompile(`(?s)^---\n(.+?)\n---\n*`)

	// Matches a fenced code block's opening or closing line (``` or ~~~,
	// with an optional info string on the opening line).
	fencePattern = regexp.MustCompile("^(```|~~~)")

	// Splits a paragraph into sentence-ish units on a sentence terminator
	// followed by whitespace.
	sentenceSplit = regexp.MustCompile(`(?:[.!?])\s+`)

	frontmatterLine = regexp.MustCompile(`^\s*([A-Za-z0-9_-]+)\s*:\s*(.*?)\s*$`)
)

// MarkdownChunker implements heading-scoped Markdown chunking (spec §4.2).
type MarkdownChunker struct {
	opts Options
}

// NewMarkdownChunker returns a chunker with spec-default bounds.
func NewMarkdownChunker() *MarkdownChunker {
	return NewMarkdownChunkerWithOptions(Options{})
}

// NewMarkdownChunkerWithOptions returns a chunker honoring a config's
// ChunkingConfig, falling back to spec defaults for zero fields.
func NewMarkdownChunkerWithOptions(opts Options) *MarkdownChunker {
	if opts.MaxTokens == 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.OverlapTokens == 0 {
		opts.OverlapTokens = DefaultOverlapTokens
	}
	return &MarkdownChunker{opts: opts}
}

// rawSection is a heading-delimited span of the post-frontmatter source,
// before token-bounding splits are applied.
type rawSection struct {
	headingPath []string
	text        string
	startOffset int
	endOffset   int
}

// Chunk splits a Markdown file into chunks and its frontmatter, per spec §4.2.
func (c *MarkdownChunker) Chunk(ctx context.Context, file *FileInput) ([]*Chunk, *Frontmatter, error) {
	content := string(file.Content)
	if strings.TrimSpace(content) == "" {
		return nil, nil, nil
	}

	var fm *Frontmatter
	body := content
	if m := frontmatterPattern.FindStringSubmatch(content); m != nil {
		fm = parseFrontmatter(m[1])
		body = content[len(m[0]):]
	}

	sections := parseSections(body)

	var chunks []*Chunk
	ordinal := 0
	for _, sec := range sections {
		trimmed := strings.TrimSpace(sec.text)
		if trimmed == "" {
			continue // empty sections produce no chunk
		}
		for _, sub := range c.splitSection(trimmed) {
			chunks = append(chunks, &Chunk{
				ID:          generateChunkID(file.Path, ordinal),
				FilePath:    file.Path,
				Ordinal:     ordinal,
				HeadingPath: sec.headingPath,
				Text:        sub,
				StartOffset: sec.startOffset,
				EndOffset:   sec.endOffset,
				Tokens:      estimateTokens(sub),
			})
			ordinal++
		}
	}

	return chunks, fm, nil
}

// parseSections walks the body line by line, opaque to headings found
// inside fenced code blocks, and groups lines under the nearest preceding
// heading of any level (or under an empty heading path for leading
// content when the file has no headings at all, or content appears
// before its first heading).
func parseSections(body string) []rawSection {
	lines := strings.Split(body, "\n")
	stack := make([]string, 6) // index 0 = H1 .. 5 = H6

	var sections []rawSection
	var cur strings.Builder
	var curPath []string
	offset := 0
	sectionStart := 0
	inFence := false

	flush := func(end int) {
		sections = append(sections, rawSection{
			headingPath: append([]string(nil), curPath...),
			text:        cur.String(),
			startOffset: sectionStart,
			endOffset:   end,
		})
		cur.Reset()
	}

	for i, line := range lines {
		lineStart := offset
		offset += len(line) + 1

		if fencePattern.MatchString(strings.TrimSpace(line)) {
			inFence = !inFence
			cur.WriteString(line)
			cur.WriteString("\n")
			continue
		}

		if !inFence {
			if m := headerPattern.FindStringSubmatch(line); m != nil {
				if cur.Len() > 0 || len(sections) > 0 || i > 0 {
					flush(lineStart)
				}
				level := len(m[1])
				title := strings.TrimSpace(m[2])
				stack[level-1] = title
				for j := level; j < 6; j++ {
					stack[j] = ""
				}
				var path []string
				for j := 0; j < level; j++ {
					if stack[j] != "" {
						path = append(path, stack[j])
					}
				}
				curPath = path
				sectionStart = lineStart
				continue
			}
		}

		cur.WriteString(line)
		cur.WriteString("\n")
	}
	flush(len(body))

	return sections
}

// splitSection returns a single slice for a section that already fits the
// token bound, or sentence-boundary-aware sliding window slices (512
// tokens, 50-token overlap) for an oversized one. Fenced code blocks are
// never split across a window boundary.
func (c *MarkdownChunker) splitSection(text string) []string {
	if estimateTokens(text) <= c.opts.MaxTokens {
		return []string{text}
	}

	units := splitIntoUnits(text)
	return packWindows(units, c.opts.MaxTokens, c.opts.OverlapTokens)
}

// splitIntoUnits breaks section text into sentence- or paragraph-sized
// pieces, keeping each fenced code block as one atomic unit so a window
// boundary never lands inside a fence.
func splitIntoUnits(text string) []string {
	paragraphs := strings.Split(text, "\n\n")

	var units []string
	var fenceBuf strings.Builder
	inFence := false

	for _, para := range paragraphs {
		fenceCount := strings.Count(para, "```") + strings.Count(para, "~~~")
		switch {
		case inFence:
			fenceBuf.WriteString("\n\n")
			fenceBuf.WriteString(para)
			if fenceCount%2 == 1 {
				units = append(units, fenceBuf.String())
				fenceBuf.Reset()
				inFence = false
			}
		case fenceCount%2 == 1:
			inFence = true
			fenceBuf.WriteString(para)
		default:
			for _, s := range sentenceSplit.Split(para, -1) {
				s = strings.TrimSpace(s)
				if s != "" {
					units = append(units, s)
				}
			}
		}
	}
	if inFence && fenceBuf.Len() > 0 {
		units = append(units, fenceBuf.String())
	}
	return units
}

// packWindows groups units into token-bounded windows with a trailing
// overlap of roughly overlapTokens carried into the start of the next
// window, preserving unit boundaries (and therefore fence boundaries).
func packWindows(units []string, maxTokens, overlapTokens int) []string {
	if len(units) == 0 {
		return nil
	}

	var windows []string
	var cur []string
	curTokens := 0

	flush := func() {
		if len(cur) == 0 {
			return
		}
		windows = append(windows, strings.Join(cur, " "))
	}

	for _, u := range units {
		ut := estimateTokens(u)
		if curTokens > 0 && curTokens+ut > maxTokens {
			flush()
			cur = overlapTail(cur, overlapTokens)
			curTokens = 0
			for _, t := range cur {
				curTokens += estimateTokens(t)
			}
		}
		cur = append(cur, u)
		curTokens += ut
	}
	flush()

	return windows
}

// overlapTail returns the trailing units of a window whose combined token
// count is closest to (without exceeding) overlapTokens, to seed the next
// window's leading overlap.
func overlapTail(units []string, overlapTokens int) []string {
	var tail []string
	total := 0
	for i := len(units) - 1; i >= 0; i-- {
		t := estimateTokens(units[i])
		if total+t > overlapTokens && len(tail) > 0 {
			break
		}
		tail = append([]string{units[i]}, tail...)
		total += t
	}
	return tail
}

// parseFrontmatter extracts flat key: value pairs from a frontmatter
// block. Nested structures are not modeled; a value is kept as its raw
// scalar string.
func parseFrontmatter(raw string) *Frontmatter {
	values := make(map[string]string)
	for _, line := range strings.Split(raw, "\n") {
		if m := frontmatterLine.FindStringSubmatch(line); m != nil {
			values[m[1]] = strings.Trim(m[2], `"'`)
		}
	}
	return &Frontmatter{Raw: raw, Values: values}
}
