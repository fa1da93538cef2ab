package cache

import (
	"fmt"
)

// SentenceID identifies one sentence of one chapter of one book.
// Its string form, B001C000S000, is the audio cache key.
type SentenceID struct {
	Book     int
	Chapter  int
	Sentence int
}

func (id SentenceID) String() string {
	return fmt.Sprintf("B%03dC%03dS%03d", id.Book, id.Chapter, id.Sentence)
}

// ParseSentenceID parses the form produced by SentenceID.String.
func ParseSentenceID(s string) (SentenceID, error) {
	var id SentenceID
	n, err := fmt.Sscanf(s, "B%3dC%3dS%3d", &id.Book, &id.Chapter, &id.Sentence)
	if err != nil || n != 3 {
		return SentenceID{}, fmt.Errorf("invalid sentence id %q: want B###C###S###", s)
	}
	if id.Book < 0 || id.Chapter < 0 || id.Sentence < 0 || id.String() != s {
		return SentenceID{}, fmt.Errorf("invalid sentence id %q: want B###C###S###", s)
	}
	return id, nil
}
