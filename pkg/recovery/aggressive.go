package recovery

import (
	"regexp"
	"strings"
)

var smartQuotes = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"„", `"`,
	"‟", `"`,
	"″", `"`,
	"‘", "'",
	"’", "'",
	"‚", "'",
	"‛", "'",
	"′", "'",
)

const typographicQuotes = "“”„‟″‘’‚‛′"

var (
	backslashRun   = regexp.MustCompile(`\\{3,}`)
	doubleEncoding = regexp.MustCompile(`[{\[,:]\s*\\"`)
)

// aggressiveRepair normalizes typographic quotes, undoes a layer of string
// encoding when the structure itself is escaped, collapses runs of
// backslashes and then reapplies the structural and escape repairs.
func aggressiveRepair(s string) string {
	s = smartQuotes.Replace(s)
	if doubleEncoding.MatchString(s) {
		s = strings.ReplaceAll(s, `\"`, `"`)
		s = strings.TrimSpace(s)
		if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
			s = s[1 : len(s)-1]
		}
	}
	s = backslashRun.ReplaceAllString(s, `\\`)
	return repairBackslashes(repairStructure(s))
}
