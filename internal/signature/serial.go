package signature

import (
	"regexp"
	"strings"
)

var serialRe = regexp.MustCompile(`#?\s*(\d+)\s*/\s*(\d+)`)

// SerialFragment extracts a normalized n/d print-run marker ("12/99") from a
// title. The second return is false when the title carries no fragment.
func SerialFragment(title string) (string, bool) {
	m := serialRe.FindStringSubmatch(strings.ToLower(title))
	if m == nil {
		return "", false
	}
	return m[1] + "/" + m[2], true
}
