package engine

import (
	"fmt"
	"regexp"
)

var titleLabel = regexp.MustCompile(`^(.+?)\s*\(`)

// FormatTitle renders the conventional group title "<label> (<count>)".
func FormatTitle(label string, count int) string {
	return fmt.Sprintf("%s (%d)", label, count)
}

// ParseTitleLabel recovers the label preceding the "(" of a group title.
func ParseTitleLabel(title string) (string, bool) {
	m := titleLabel.FindStringSubmatch(title)
	if m == nil {
		return "", false
	}
	return m[1], true
}
