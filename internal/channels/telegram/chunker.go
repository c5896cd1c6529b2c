package telegram

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxMessageLength is Telegram's hard limit on a single sendMessage text.
const MaxMessageLength = 4096

// Chunk splits text into pieces no longer than maxLength, preferring to
// break at a paragraph, then a sentence, then a word boundary, in that
// order, and avoiding paragraph, line and sentence breaks inside an open
// fenced code block; a fenced block longer than maxLength is still split.
// A break never falls inside a multi-byte rune.
func Chunk(text string, maxLength int) []string {
	if maxLength <= 0 {
		maxLength = MaxMessageLength
	}
	if text == "" {
		return nil
	}
	if len(text) <= maxLength {
		return []string{text}
	}

	var chunks []string
	remaining := text

	for len(remaining) > maxLength {
		breakIdx := findBreakPoint(remaining, maxLength)
		if breakIdx <= 0 {
			breakIdx = maxLength
		}
		for breakIdx > 0 && !utf8.RuneStart(remaining[breakIdx]) {
			breakIdx--
		}
		if breakIdx == 0 {
			breakIdx = maxLength
		}

		chunk := strings.TrimRightFunc(remaining[:breakIdx], unicode.IsSpace)
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		remaining = strings.TrimLeftFunc(remaining[breakIdx:], unicode.IsSpace)
	}

	if remaining = strings.TrimSpace(remaining); remaining != "" {
		chunks = append(chunks, remaining)
	}

	return chunks
}

func findBreakPoint(text string, maxLength int) int {
	window := text[:maxLength]
	inCodeBlock, codeBlockStart := codeBlockStateAt(window)

	if idx := lastIndexRespectingCode(window, "\n\n", inCodeBlock, codeBlockStart); idx > 0 {
		return idx + 1
	}
	if idx := lastIndexRespectingCode(window, "\n", inCodeBlock, codeBlockStart); idx > 0 {
		return idx + 1
	}
	for _, ending := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
		if idx := strings.LastIndex(window, ending); idx > 0 && (!inCodeBlock || idx < codeBlockStart) {
			return idx + 1
		}
	}
	if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx > 0 {
		return idx
	}
	return maxLength
}

func lastIndexRespectingCode(text, sep string, inCodeBlock bool, codeBlockStart int) int {
	idx := strings.LastIndex(text, sep)
	if idx <= 0 {
		return -1
	}
	if inCodeBlock && idx >= codeBlockStart {
		if codeBlockStart > 0 {
			return strings.LastIndex(text[:codeBlockStart], sep)
		}
		return -1
	}
	return idx
}

// codeBlockStateAt reports whether text ends inside an open ``` or ~~~
// fence, and where that fence began, so a break can be steered before it.
func codeBlockStateAt(text string) (bool, int) {
	var inBlock bool
	var blockStart int
	i := 0
	for i < len(text) {
		if i+2 < len(text) {
			fence := text[i : i+3]
			if fence == "```" || fence == "~~~" {
				if !inBlock {
					inBlock = true
					blockStart = i
				} else if i == 0 || text[i-1] == '\n' {
					inBlock = false
				}
				for i < len(text) && text[i] != '\n' {
					i++
				}
				continue
			}
		}
		i++
	}
	return inBlock, blockStart
}
