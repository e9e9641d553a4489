// Package chunk splits document text into retrieval-sized chunks.
//
// Chunking is paragraph-preserving: text is split into paragraphs on
// newlines, blank paragraphs are dropped, and paragraphs are greedily
// accumulated into a running buffer until the next paragraph would push the
// buffer past the size budget. A chunk boundary therefore never falls inside
// a paragraph.
//
// POLICY: a single paragraph longer than the budget becomes its own chunk
// exceeding the budget. Paragraphs are never split mid-way; retrieval
// quality depends on chunks being self-contained units of meaning, and an
// oversize paragraph is still one unit.
package chunk

import "strings"

// Split splits text into chunks of at most size characters (except for the
// oversize-paragraph case documented above). Size is a character budget
// counted in bytes, matching len().
func Split(text string, size int) []string {
	var (
		chunks  []string
		current strings.Builder
	)

	flush := func() {
		if c := strings.TrimSpace(current.String()); c != "" {
			chunks = append(chunks, c)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		// +1 accounts for the separating space between paragraphs.
		if current.Len() == 0 {
			current.WriteString(para)
		} else if current.Len()+1+len(para) <= size {
			current.WriteByte(' ')
			current.WriteString(para)
		} else {
			flush()
			current.WriteString(para)
		}
	}
	flush()

	return chunks
}
