package parser

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 200  // characters
)

// cut-point preference, strongest first
var separators = [][]rune{
	[]rune("\n\n"),
	[]rune("\n"),
	[]rune(". "),
	[]rune("? "),
	[]rune("! "),
	[]rune(" "),
}

// Splitter cuts text into overlapping chunks measured in characters (runes).
type Splitter struct {
	chunkSize    int
	chunkOverlap int
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = defaultChunkSize
		chunkOverlap = defaultChunkOverlap
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 2
	}
	return &Splitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}
}

// Split returns chunks of at most chunkSize characters. Each chunk after the first
// begins with the last chunkOverlap characters of its predecessor, so dropping those
// prefixes and concatenating gives back the input.
func (s *Splitter) Split(content string) []string {
	return chunkContent(content, s.chunkSize, s.chunkOverlap)
}

func chunkContent(content string, maxChars, overlapChars int) []string {
	runes := []rune(content)
	n := len(runes)
	if n == 0 {
		return nil
	}
	if n <= maxChars {
		return []string{content}
	}

	var chunks []string
	start := 0
	for {
		end := start + maxChars
		if end >= n {
			return append(chunks, string(runes[start:]))
		}
		end = breakPoint(runes, start, end, overlapChars)
		chunks = append(chunks, string(runes[start:end]))
		start = end - overlapChars
	}
}

// breakPoint picks the cut in (start, end]. A separator is only used when the chunk
// keeps at least half its maximum length and more than the overlap, so every step advances.
func breakPoint(runes []rune, start, end, overlapChars int) int {
	minEnd := start + max((end-start)/2, overlapChars+1)
	for _, sep := range separators {
		for i := end - len(sep); i >= start && i+len(sep) >= minEnd; i-- {
			if hasPrefixAt(runes, i, sep) {
				return i + len(sep)
			}
		}
	}
	return end
}

func hasPrefixAt(runes []rune, i int, sep []rune) bool {
	if i+len(sep) > len(runes) {
		return false
	}
	for j, r := range sep {
		if runes[i+j] != r {
			return false
		}
	}
	return true
}
