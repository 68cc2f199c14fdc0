package telegram

import "unicode"

// MaxChunkRunes is the per-message size limit applied to outgoing text.
const MaxChunkRunes = 4000

// SplitText breaks text into ordered chunks of at most maxRunes runes,
// preferring to cut on whitespace so words stay intact. The whitespace
// rune at a cut point is dropped; all other content is preserved.
func SplitText(text string, maxRunes int) []string {
	if text == "" {
		return nil
	}
	if maxRunes <= 0 {
		maxRunes = MaxChunkRunes
	}

	runes := []rune(text)
	var out []string
	start := 0
	for start < len(runes) {
		end := start + maxRunes
		if end >= len(runes) {
			out = append(out, string(runes[start:]))
			break
		}
		cut := end
		if !unicode.IsSpace(runes[end]) {
			// Walk back to the last whitespace within range; if the whole
			// chunk is one unbroken run, cut mid-word at the limit.
			for i := end - 1; i > start; i-- {
				if unicode.IsSpace(runes[i]) {
					cut = i
					break
				}
			}
		}
		out = append(out, string(runes[start:cut]))
		if cut < len(runes) && unicode.IsSpace(runes[cut]) {
			cut++
		}
		start = cut
	}
	return out
}
