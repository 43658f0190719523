package recovery

import "strings"

type scanState int

const (
	stateNormal scanState = iota
	stateString
	stateEscape
)

// scanBalanced finds the bracket that closes the one at text[start].
// Brackets inside double-quoted literals are ignored and backslash escapes
// inside literals are honoured. It returns the index of the closing bracket,
// or -1 if the region never closes.
func scanBalanced(text string, start int) int {
	open := text[start]
	var closer byte
	switch open {
	case '{':
		closer = '}'
	case '[':
		closer = ']'
	default:
		return -1
	}

	depth := 0
	state := stateNormal
	for i := start; i < len(text); i++ {
		c := text[i]
		switch state {
		case stateEscape:
			state = stateString
		case stateString:
			switch c {
			case '\\':
				state = stateEscape
			case '"':
				state = stateNormal
			}
		default:
			switch c {
			case '"':
				state = stateString
			case open:
				depth++
			case closer:
				depth--
				if depth == 0 {
					return i
				}
			}
		}
	}
	return -1
}

// eachCandidate calls fn with every balanced region that opens with the
// given bracket, in order of its opening position, until fn returns true.
// Regions may overlap: an inner region is still offered when its enclosing
// one is rejected.
func eachCandidate(text string, open byte, fn func(region string) bool) bool {
	for i := 0; i < len(text); i++ {
		if text[i] != open {
			continue
		}
		if end := scanBalanced(text, i); end > i && fn(text[i:end+1]) {
			return true
		}
	}
	return false
}

const fence = "```"

// fencedBlock is one triple-backtick block. Start and End bound the whole
// block including its delimiters; Inner is the content after the info line.
type fencedBlock struct {
	Start, End int
	Inner      string
}

// fencedBlocks locates triple-backtick blocks. A block opens only where a
// fence starts a line, so backticks quoted mid-sentence or inside a JSON
// string are not fences. It closes at the next fence outside a string
// literal, falling back to the next fence that starts a line. An
// unterminated block runs to the end of the text, which covers responses
// cut off by a token limit.
func fencedBlocks(text string) []fencedBlock {
	var blocks []fencedBlock
	pos := 0
	for {
		open := lineFence(text, pos)
		if open < 0 {
			return blocks
		}

		// Skip the info string (e.g. "json") up to the end of the line.
		bodyStart := open + len(fence)
		if nl := strings.IndexByte(text[bodyStart:], '\n'); nl >= 0 {
			info := strings.TrimSpace(text[bodyStart : bodyStart+nl])
			if !strings.ContainsAny(info, "{[") {
				bodyStart += nl + 1
			}
		}

		closeAt := closingFence(text, bodyStart)
		if closeAt < 0 {
			closeAt = lineFence(text, bodyStart)
		}
		if closeAt < 0 {
			blocks = append(blocks, fencedBlock{Start: open, End: len(text), Inner: text[bodyStart:]})
			return blocks
		}
		blocks = append(blocks, fencedBlock{
			Start: open,
			End:   closeAt + len(fence),
			Inner: text[bodyStart:closeAt],
		})
		pos = closeAt + len(fence)
	}
}

// lineFence returns the index of the first fence at or after from that is
// preceded on its line only by spaces or tabs, or -1.
func lineFence(text string, from int) int {
	for from < len(text) {
		rel := strings.Index(text[from:], fence)
		if rel < 0 {
			return -1
		}
		at := from + rel
		lineStart := strings.LastIndexByte(text[:at], '\n') + 1
		if strings.Trim(text[lineStart:at], " \t") == "" {
			return at
		}
		from = at + len(fence)
	}
	return -1
}

// closingFence returns the index of the first fence at or after from that
// lies outside a double-quoted literal, or -1.
func closingFence(text string, from int) int {
	state := stateNormal
	for i := from; i < len(text); i++ {
		c := text[i]
		switch state {
		case stateEscape:
			state = stateString
		case stateString:
			switch c {
			case '\\':
				state = stateEscape
			case '"':
				state = stateNormal
			}
		default:
			switch {
			case c == '"':
				state = stateString
			case strings.HasPrefix(text[i:], fence):
				return i
			}
		}
	}
	return -1
}

// withoutFences returns text with every fenced block replaced by a newline.
func withoutFences(text string, blocks []fencedBlock) string {
	if len(blocks) == 0 {
		return text
	}
	var b strings.Builder
	last := 0
	for _, blk := range blocks {
		b.WriteString(text[last:blk.Start])
		b.WriteByte('\n')
		last = blk.End
	}
	b.WriteString(text[last:])
	return b.String()
}
