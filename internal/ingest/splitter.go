package ingest

import "strings"

// defaultSeparators is the ordered list tried when splitting: paragraph
// breaks first, then line breaks, sentence punctuation, commas, spaces, and
// finally individual characters as a last resort.
var defaultSeparators = []string{"\n\n", "\n", ".", "!", "?", ",", " ", ""}

// Splitter recursively splits text into chunks of at most chunkSize
// characters, re-applying chunkOverlap characters of trailing context at
// each chunk boundary. The earliest separator in the list that occurs in the
// text wins; pieces still over the size limit are re-split with the
// remaining separators.
type Splitter struct {
	chunkSize    int
	chunkOverlap int
	separators   []string
}

// NewSplitter builds a splitter. chunkOverlap must be smaller than
// chunkSize; config validation enforces that before we get here.
func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	return &Splitter{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split chunks text. Chunks are trimmed of surrounding whitespace; empty
// chunks are dropped.
func (s *Splitter) Split(text string) []string {
	return s.splitText(text, s.separators)
}

func (s *Splitter) splitText(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var remaining []string
	for i, sep := range separators {
		if sep == "" {
			separator, remaining = "", nil
			break
		}
		if strings.Contains(text, sep) {
			separator, remaining = sep, separators[i+1:]
			break
		}
	}

	splits := splitKeepSeparator(text, separator)

	var final []string
	var good []string
	for _, piece := range splits {
		if len(piece) < s.chunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good)...)
			good = nil
		}
		if len(remaining) == 0 {
			// No finer separator left; emit oversized piece as-is.
			final = append(final, strings.TrimSpace(piece))
		} else {
			final = append(final, s.splitText(piece, remaining)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good)...)
	}
	return final
}

// splitKeepSeparator splits text on sep, attaching the separator to the
// start of the following piece so that joining pieces reproduces the
// original text. An empty separator splits into individual runes.
func splitKeepSeparator(text, sep string) []string {
	if sep == "" {
		parts := make([]string, 0, len(text))
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	raw := strings.Split(text, sep)
	out := make([]string, 0, len(raw))
	for i, p := range raw {
		if i == 0 {
			if p != "" {
				out = append(out, p)
			}
			continue
		}
		out = append(out, sep+p)
	}
	return out
}

// merge packs consecutive pieces into chunks of at most chunkSize
// characters. When a chunk is emitted, trailing pieces totalling at most
// chunkOverlap characters are carried into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var chunks []string
	var current []string
	total := 0

	for _, piece := range pieces {
		if total+len(piece) > s.chunkSize && total > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for len(current) > 0 && (total > s.chunkOverlap || total+len(piece) > s.chunkSize) {
				total -= len(current[0])
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += len(piece)
	}
	if chunk := strings.TrimSpace(strings.Join(current, "")); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}
