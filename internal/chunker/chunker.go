// Package chunker splits extracted document text into bounded, overlapping
// passages ready for embedding.
package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// Config controls the chunking behaviour.
type Config struct {
	ChunkSize int // Maximum passage length, in characters.
	Overlap   int // Characters of trailing context carried into the next passage.
}

// Chunker splits text into passages under a Config.
type Chunker struct {
	cfg Config
}

// New returns a Chunker with the given configuration. A zero ChunkSize
// becomes 1000; a zero Overlap becomes 200 only when ChunkSize is then
// 1000, and otherwise stays 0.
func New(cfg Config) (*Chunker, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 1000
	}
	if cfg.Overlap == 0 && cfg.ChunkSize == 1000 {
		cfg.Overlap = 200
	}
	if cfg.ChunkSize <= cfg.Overlap || cfg.Overlap < 0 {
		return nil, fmt.Errorf("chunker: chunk_size (%d) must be greater than overlap (%d)", cfg.ChunkSize, cfg.Overlap)
	}
	return &Chunker{cfg: cfg}, nil
}

// Chunk splits text into an ordered sequence of passages per the
// paragraph-first greedy algorithm: paragraphs that fit are emitted whole;
// paragraphs that don't are split on sentence boundaries, then word
// boundaries, then hard-split at ChunkSize. Consecutive passages share an
// overlap-wide prefix/suffix.
func (c *Chunker) Chunk(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	paragraphs := splitParagraphs(text)
	var passages []string
	var carry string

	for _, para := range paragraphs {
		if utf8.RuneCountInString(para) <= c.cfg.ChunkSize {
			c.emit(para, &passages, &carry)
			continue
		}
		for _, sentence := range splitSentences(para) {
			if utf8.RuneCountInString(sentence) <= c.cfg.ChunkSize {
				c.emit(sentence, &passages, &carry)
				continue
			}
			for _, word := range splitWords(sentence, c.cfg.ChunkSize) {
				c.emit(word, &passages, &carry)
			}
		}
	}
	return passages
}

// emit appends text (possibly split further) as one or more passages,
// prefixing the carried overlap from the previous passage.
func (c *Chunker) emit(text string, passages *[]string, carry *string) {
	body := *carry + text
	*carry = ""
	for utf8.RuneCountInString(body) > c.cfg.ChunkSize {
		cut := hardSplitPoint(body, c.cfg.ChunkSize)
		head, rest := splitAtRune(body, cut)
		*passages = append(*passages, head)
		body = overlapSuffix(head, c.cfg.Overlap) + rest
	}
	if body != "" {
		*passages = append(*passages, body)
		*carry = overlapSuffix(body, c.cfg.Overlap)
	}
}

// hardSplitPoint returns the rune offset to cut at, preferring the last
// whitespace boundary within limit but falling back to a hard cut so a
// single run of non-whitespace longer than limit still makes progress.
func hardSplitPoint(text string, limit int) int {
	runes := []rune(text)
	if len(runes) <= limit {
		return len(runes)
	}
	window := runes[:limit]
	for i := len(window) - 1; i > 0; i-- {
		switch window[i] {
		case ' ', '\t', '\n':
			return i + 1
		}
	}
	return limit
}

// splitAtRune splits text after the nth rune, returning the head and the
// remainder. Cutting on rune boundaries keeps multi-byte UTF-8 sequences
// (e.g. accented letters, CJK text) intact in both halves.
func splitAtRune(text string, n int) (string, string) {
	runes := []rune(text)
	if n >= len(runes) {
		return text, ""
	}
	return string(runes[:n]), string(runes[n:])
}

// overlapSuffix returns the trailing n characters of text, or all of text
// if it is shorter than n.
func overlapSuffix(text string, n int) string {
	if n <= 0 || text == "" {
		return ""
	}
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[len(r)-n:])
}

// splitParagraphs splits text on blank-line boundaries.
func splitParagraphs(text string) []string {
	raw := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// splitSentences is a simple sentence tokenizer: it splits on
// period/question-mark/exclamation followed by whitespace or end of string.
func splitSentences(text string) []string {
	var sentences []string
	var cur strings.Builder

	runes := []rune(text)
	for i := 0; i < len(runes); i++ {
		cur.WriteRune(runes[i])
		if runes[i] == '.' || runes[i] == '?' || runes[i] == '!' {
			if i+1 >= len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				s := strings.TrimSpace(cur.String())
				if s != "" {
					sentences = append(sentences, s)
				}
				cur.Reset()
			}
		}
	}
	if cur.Len() > 0 {
		if s := strings.TrimSpace(cur.String()); s != "" {
			sentences = append(sentences, s)
		}
	}
	return sentences
}

// splitWords splits text on word boundaries into fragments no longer than
// limit characters; a single word longer than limit is hard-split.
func splitWords(text string, limit int) []string {
	words := strings.Fields(text)
	var out []string
	var cur strings.Builder
	curLen := 0
	for _, w := range words {
		wLen := utf8.RuneCountInString(w)
		if wLen > limit {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
				curLen = 0
			}
			wr := []rune(w)
			for len(wr) > limit {
				out = append(out, string(wr[:limit]))
				wr = wr[limit:]
			}
			if len(wr) > 0 {
				cur.WriteString(string(wr))
				curLen = len(wr)
			}
			continue
		}
		candidate := curLen
		if candidate > 0 {
			candidate++ // space
		}
		candidate += wLen
		if candidate > limit && cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
			curLen = 0
		}
		if cur.Len() > 0 {
			cur.WriteString(" ")
			curLen++
		}
		cur.WriteString(w)
		curLen += wLen
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}
