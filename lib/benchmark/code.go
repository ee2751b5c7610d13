package benchmark

import (
	"regexp"
	"strings"
)

// subject, grade (number, K plus number, or a letter), strand, standard and benchmark number
var codePattern = regexp.MustCompile(`^[A-Z]{2,3}\.(?:\d{1,3}|K\d{1,2}|[A-Z])\.[A-Z]{1,3}\.\d+\.\d+$`)

var separatorRegex = regexp.MustCompile(`[-_ ]`)

// NormalizeCode turns user input like "ma-k-nso 1_1" into "MA.K.NSO.1.1",
// false is returned if the result is not a benchmark code.
func NormalizeCode(query string) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(query))
	code = separatorRegex.ReplaceAllString(code, ".")
	if !codePattern.MatchString(code) {
		return "", false
	}
	return code, true
}

func IsCode(s string) bool {
	return codePattern.MatchString(s)
}
