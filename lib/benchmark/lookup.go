package benchmark

import (
	"errors"
	"fmt"

	"github.com/antzucaro/matchr"
)

const DefaultThreshold = 0.9

var ErrInvalidCode = errors.New("invalid benchmark code")
var ErrNoMatch = errors.New("no matching benchmark")

type Match struct {
	Code       string
	Exact      bool
	Similarity float64
}

// Lookup finds `query` in `codes`, falling back to the most similar code
// (jaro-winkler) if it is at least `threshold` similar.
func Lookup(query string, codes []string, threshold float64) (Match, error) {
	code, ok := NormalizeCode(query)
	if !ok {
		return Match{}, fmt.Errorf("%w: '%s'", ErrInvalidCode, query)
	}

	for _, c := range codes {
		if c == code {
			return Match{Code: c, Exact: true, Similarity: 1}, nil
		}
	}

	var best Match
	for _, c := range codes {
		similarity := matchr.JaroWinkler(code, c, false)
		if similarity > best.Similarity {
			best = Match{Code: c, Similarity: similarity}
		}
	}
	if best.Code == "" || best.Similarity < threshold {
		return Match{}, fmt.Errorf("%w for '%s'", ErrNoMatch, code)
	}
	return best, nil
}
