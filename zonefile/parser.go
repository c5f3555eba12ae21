// Package zonefile translates between BIND zone file text and the flat
// record rows (name, type, content, ttl, prio) the rest of zoneport stores.
//
// Parsing is tolerant: lines that cannot be used are skipped and reported
// as warnings, never as errors. Generation never fails either.
package zonefile

import (
	"errors"
	"fmt"
	"strings"
)

// Parser reads BIND zone files. A Parser has no mutable state and may be
// shared between goroutines.
type Parser struct {
	autoTTL int
}

// NewParser returns a parser that stores records with TTL 1 (Cloudflare's
// "automatic") using autoTTL instead.
func NewParser(autoTTL int) *Parser {
	return &Parser{autoTTL: autoTTL}
}

var (
	errNoOwner     = errors.New("no owner name to inherit")
	errUnparseable = errors.New("could not parse record")
)

// parseState is threaded through a single forward pass over the lines.
type parseState struct {
	origin       string
	originSet    bool
	defaultTTL   int
	previousName string
	hasPrevious  bool
}

// Parse converts zone file text into records. It never fails; skipped lines
// are listed in the result's warnings.
func (p *Parser) Parse(content string) *ParsedZoneFile {
	state := parseState{defaultTTL: DefaultTTL}
	result := &ParsedZoneFile{
		records:  make([]ParsedRecord, 0),
		warnings: make([]string, 0),
	}

	for _, line := range foldLines(content) {
		trimmed := strings.TrimSpace(line.Text)
		if trimmed == "" {
			continue
		}

		if trimmed[0] == '$' {
			if warning := state.directive(trimmed); warning != "" {
				result.warnings = append(result.warnings, fmt.Sprintf("Line %d: %s, skipped", line.Num, warning))
			}
			continue
		}

		record, err := state.record(line.Text)
		if err != nil {
			result.warnings = append(result.warnings, fmt.Sprintf("Line %d: %s, skipped", line.Num, capitalize(err.Error())))
			continue
		}

		if record.TTL == 1 {
			record.TTL = p.autoTTL
		}
		state.previousName = record.Name
		state.hasPrevious = true
		result.records = append(result.records, record)
	}

	result.origin = state.origin
	if !state.originSet {
		result.origin = InferOrigin(result.records)
	}
	result.defaultTTL = state.defaultTTL
	return result
}

// directive applies $ORIGIN and $TTL. Anything else is reported back.
func (s *parseState) directive(line string) string {
	parts := strings.Fields(line)
	name := strings.ToUpper(parts[0])

	switch name {
	case "$ORIGIN":
		s.originSet = true
		s.origin = ""
		if len(parts) > 1 {
			s.origin = strings.TrimRight(parts[1], ".")
		}
		return ""
	case "$TTL":
		s.defaultTTL = DefaultTTL
		if len(parts) > 1 {
			s.defaultTTL = ParseTTL(parts[1])
		}
		return ""
	}
	return fmt.Sprintf("Unsupported directive %q", name)
}

// record parses one logical line of the form
// [name] [ttl] [class] type rdata... with ttl and class in either order.
func (s *parseState) record(line string) (ParsedRecord, error) {
	inherit := hasLeadingBlank(line)
	tokens := tokenize(strings.TrimSpace(line))
	if len(tokens) < 2 {
		return ParsedRecord{}, errUnparseable
	}

	pos := 0
	var name string
	if inherit {
		switch {
		case s.hasPrevious:
			name = s.previousName
		case s.origin != "":
			name = s.origin
		default:
			return ParsedRecord{}, errNoOwner
		}
	} else {
		name = makeAbsolute(tokens[0], s.origin)
		pos++
	}

	ttl := -1
	foundClass := false
	for i := 0; i < 2 && pos < len(tokens); i++ {
		token := tokens[pos]
		if !foundClass && strings.EqualFold(token, "IN") {
			foundClass = true
			pos++
			continue
		}
		if ttl < 0 && IsTTL(token) {
			ttl = ParseTTL(token)
			pos++
			continue
		}
		break
	}
	if ttl < 0 {
		ttl = s.defaultTTL
	}

	if pos >= len(tokens) {
		return ParsedRecord{}, errUnparseable
	}
	rtype := strings.ToUpper(tokens[pos])
	pos++
	if !knownTypes[rtype] {
		return ParsedRecord{}, fmt.Errorf("unknown record type %q", rtype)
	}

	rdata := tokens[pos:]
	if len(rdata) == 0 {
		return ParsedRecord{}, fmt.Errorf("missing data for %s record", rtype)
	}

	content, priority, err := buildContent(rtype, rdata, s.origin)
	if err != nil {
		return ParsedRecord{}, err
	}
	return NewParsedRecord(name, ttl, rtype, content, priority), nil
}

// InferOrigin guesses the zone origin for files without $ORIGIN: the longest
// label suffix shared by every record name, lowercased. A suffix of a single
// label (a bare TLD) does not count. Returns "" when there is no such
// suffix.
func InferOrigin(records []ParsedRecord) string {
	if len(records) == 0 {
		return ""
	}

	var common []string
	for i, record := range records {
		labels := strings.Split(strings.ToLower(strings.TrimRight(record.Name, ".")), ".")
		if i == 0 {
			common = labels
			continue
		}
		n := 0
		for n < len(common) && n < len(labels) &&
			common[len(common)-1-n] == labels[len(labels)-1-n] {
			n++
		}
		common = common[len(common)-n:]
		if len(common) < 2 {
			return ""
		}
	}

	if len(common) < 2 {
		return ""
	}
	return strings.Join(common, ".")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
