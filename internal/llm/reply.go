package llm

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// quoteChars are stripped from both ends of a reply line.
const quoteChars = "`\"'“”‘’"

// CleanReply extracts a formula from raw model output: the text is NFKC
// normalised, code fences are dropped, and the first non-empty line is
// returned without surrounding quotes or backticks.
func CleanReply(raw string) string {
	text := norm.NFKC.String(raw)
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "```") {
			continue
		}
		line = strings.TrimSpace(strings.Trim(line, quoteChars))
		if line != "" {
			return line
		}
	}
	return ""
}
