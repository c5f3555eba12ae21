package zonefile

import (
	"fmt"
	"strconv"
	"strings"
)

// rdataRule turns the rdata tokens of one record type into the stored
// content string and, where the type has one, a separate priority.
type rdataRule struct {
	minTokens int
	build     func(tokens []string, origin string) (content string, priority int, err error)
}

var rdataRules = map[string]rdataRule{
	"MX":    {2, buildExchange},
	"KX":    {2, buildExchange},
	"SRV":   {4, buildSRV},
	"SOA":   {7, buildSOA},
	"NS":    {1, buildTarget},
	"CNAME": {1, buildTarget},
	"PTR":   {1, buildTarget},
	"DNAME": {1, buildTarget},
	"AFSDB": {1, buildAFSDB},
	"TXT":   {1, buildTXT},
	"SPF":   {1, buildTXT},
	"CAA":   {3, buildCAA},
	"NAPTR": {6, buildNAPTR},
}

var defaultRule = rdataRule{1, buildVerbatim}

// buildContent applies the rule for rtype. The error explains why the line
// is unusable.
func buildContent(rtype string, tokens []string, origin string) (string, int, error) {
	rule, ok := rdataRules[rtype]
	if !ok {
		rule = defaultRule
	}
	if len(tokens) < rule.minTokens {
		return "", 0, fmt.Errorf("not enough data for %s record", rtype)
	}
	return rule.build(tokens, origin)
}

func parsePriority(token string) (int, error) {
	prio, err := strconv.Atoi(token)
	if err != nil || prio < 0 {
		return 0, fmt.Errorf("invalid priority %q", token)
	}
	return prio, nil
}

func buildExchange(tokens []string, origin string) (string, int, error) {
	prio, err := parsePriority(tokens[0])
	if err != nil {
		return "", 0, err
	}
	return makeAbsolute(tokens[1], origin), prio, nil
}

// SRV content is "weight port target", priority is kept apart.
func buildSRV(tokens []string, origin string) (string, int, error) {
	prio, err := parsePriority(tokens[0])
	if err != nil {
		return "", 0, err
	}
	target := makeAbsolute(tokens[3], origin)
	return tokens[1] + " " + tokens[2] + " " + target, prio, nil
}

func buildSOA(tokens []string, origin string) (string, int, error) {
	fields := make([]string, 7)
	fields[0] = makeAbsolute(tokens[0], origin)
	fields[1] = makeAbsolute(tokens[1], origin)
	copy(fields[2:], tokens[2:7])
	return strings.Join(fields, " "), 0, nil
}

func buildTarget(tokens []string, origin string) (string, int, error) {
	return makeAbsolute(tokens[0], origin), 0, nil
}

// AFSDB has a subtype in front of the hostname. Without it the single token
// is treated as the hostname.
func buildAFSDB(tokens []string, origin string) (string, int, error) {
	if len(tokens) < 2 {
		return buildTarget(tokens, origin)
	}
	prio, err := parsePriority(tokens[0])
	if err != nil {
		return "", 0, err
	}
	return makeAbsolute(tokens[1], origin), prio, nil
}

func buildTXT(tokens []string, _ string) (string, int, error) {
	return quoteSegments(strings.Join(tokens, " ")), 0, nil
}

func buildCAA(tokens []string, _ string) (string, int, error) {
	value := strings.Join(tokens[2:], " ")
	return tokens[0] + " " + tokens[1] + " " + value, 0, nil
}

func buildNAPTR(tokens []string, origin string) (string, int, error) {
	fields := make([]string, 6)
	copy(fields, tokens[:5])
	fields[5] = makeAbsolute(tokens[5], origin)
	return strings.Join(fields, " "), 0, nil
}

func buildVerbatim(tokens []string, _ string) (string, int, error) {
	return strings.Join(tokens, " "), 0, nil
}

// quoteSegments re-reads TXT rdata as character-strings and wraps every
// segment, quoted or bare, in double quotes. Backslash escapes inside quoted
// segments are kept as written.
func quoteSegments(raw string) string {
	var parts []string
	i := 0
	for i < len(raw) {
		for i < len(raw) && (raw[i] == ' ' || raw[i] == '\t') {
			i++
		}
		if i >= len(raw) {
			break
		}

		var part strings.Builder
		if raw[i] == '"' {
			i++
			for i < len(raw) && raw[i] != '"' {
				if raw[i] == '\\' && i+1 < len(raw) {
					part.WriteByte(raw[i])
					i++
				}
				part.WriteByte(raw[i])
				i++
			}
			i++ // Closing quote
		} else {
			for i < len(raw) && raw[i] != ' ' && raw[i] != '\t' {
				part.WriteByte(raw[i])
				i++
			}
		}
		parts = append(parts, `"`+part.String()+`"`)
	}
	return strings.Join(parts, " ")
}

// QuoteTXT turns arbitrary text into a single quoted TXT character-string.
// Quotes and backslashes are escaped, other control characters use the
// \DDD form.
func QuoteTXT(text string) string {
	var b strings.Builder
	b.WriteByte('"')
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case c == '"' || c == '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		case c < ' ' || c == 0x7f:
			fmt.Fprintf(&b, "\\%03d", c)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// makeAbsolute qualifies name against origin and returns it in canonical
// form without the trailing dot. "@" and "" stand for the origin itself.
func makeAbsolute(name, origin string) string {
	if name == "" || name == "@" {
		return origin
	}
	if strings.HasSuffix(name, ".") {
		return strings.TrimRight(name, ".")
	}
	if origin == "" {
		return name
	}
	return name + "." + origin
}
