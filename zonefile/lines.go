package zonefile

import "strings"

// logicalLine is one record or directive after parenthesized groups have
// been folded. Num is the physical line number where it started.
type logicalLine struct {
	Num  int
	Text string
}

// stripComment cuts the line at the first ';' that is not inside a quoted
// string.
func stripComment(line string) string {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inQuote {
				i++ // Escaped character, including \"
			}
		case '"':
			inQuote = !inQuote
		case ';':
			if !inQuote {
				return line[:i]
			}
		}
	}
	return line
}

// parenBalance counts unquoted '(' minus unquoted ')'.
func parenBalance(line string) (balance int, sawClose bool) {
	inQuote := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inQuote {
				i++
			}
		case '"':
			inQuote = !inQuote
		case '(':
			if !inQuote {
				balance++
			}
		case ')':
			if !inQuote {
				balance--
				sawClose = true
			}
		}
	}
	return balance, sawClose
}

// stripParens removes grouping parentheses, leaving quoted ones alone.
func stripParens(line string) string {
	if !strings.ContainsAny(line, "()") {
		return line
	}
	var b strings.Builder
	b.Grow(len(line))
	inQuote := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch c {
		case '\\':
			if inQuote && i+1 < len(line) {
				b.WriteByte(c)
				i++
				c = line[i]
			}
		case '"':
			inQuote = !inQuote
		case '(', ')':
			if !inQuote {
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}

// foldLines strips comments from every physical line and joins parenthesized
// groups into single logical lines. An unterminated group is flushed as-is
// at end of input.
func foldLines(content string) []logicalLine {
	physical := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	result := make([]logicalLine, 0, len(physical))
	var buffer strings.Builder
	depth := 0
	start := 0

	for i, raw := range physical {
		line := stripComment(raw)
		balance, sawClose := parenBalance(line)

		if depth > 0 {
			buffer.WriteByte(' ')
			buffer.WriteString(strings.TrimSpace(line))
			depth += balance
			if depth <= 0 || sawClose {
				result = append(result, logicalLine{Num: start, Text: stripParens(buffer.String())})
				buffer.Reset()
				depth = 0
			}
			continue
		}

		if balance > 0 {
			start = i + 1
			depth = balance
			// Keep leading whitespace, it decides owner name inheritance
			buffer.WriteString(strings.TrimRight(line, " \t"))
			continue
		}

		result = append(result, logicalLine{Num: i + 1, Text: stripParens(line)})
	}

	if buffer.Len() > 0 {
		result = append(result, logicalLine{Num: start, Text: stripParens(buffer.String())})
	}
	return result
}

// tokenize splits on unquoted whitespace. Quoted sections stay inside their
// token together with their quotes and escapes.
func tokenize(line string) []string {
	var tokens []string
	var current strings.Builder
	inQuote := false
	inToken := false

	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '\\' && inQuote && i+1 < len(line):
			current.WriteByte(c)
			i++
			current.WriteByte(line[i])
		case c == '"':
			inQuote = !inQuote
			inToken = true
			current.WriteByte(c)
		case (c == ' ' || c == '\t') && !inQuote:
			if inToken {
				tokens = append(tokens, current.String())
				current.Reset()
				inToken = false
			}
		default:
			inToken = true
			current.WriteByte(c)
		}
	}
	if inToken {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func hasLeadingBlank(line string) bool {
	return line != "" && (line[0] == ' ' || line[0] == '\t')
}
