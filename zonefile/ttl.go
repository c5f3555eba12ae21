package zonefile

import (
	"regexp"
	"strconv"
	"strings"
)

// MaxTTL is the largest TTL a record can carry (RFC 2181). Larger values
// are clamped.
const MaxTTL = 1<<31 - 1

var ttlToken = regexp.MustCompile(`(?i)^(\d+[smhdwy]?)+$`)

var ttlUnits = map[byte]int{
	's': 1,
	'm': 60,
	'h': 3600,
	'd': 86400,
	'w': 604800,
	'y': 31536000,
}

// IsTTL reports whether token can stand in the TTL position of a record,
// either bare seconds or BIND unit notation such as 1h30m.
func IsTTL(token string) bool {
	return ttlToken.MatchString(token)
}

// ParseTTL converts a TTL token into seconds. Units are case-insensitive
// and summed; a trailing number without unit counts as seconds. Characters
// that are not digits or known units are ignored along with the number
// preceding them. The result is clamped to MaxTTL.
func ParseTTL(value string) int {
	value = strings.ToLower(strings.TrimSpace(value))
	if n, err := strconv.Atoi(value); err == nil && n >= 0 {
		return min(n, MaxTTL)
	}

	total := 0
	current := 0
	haveDigits := false
	for i := 0; i < len(value); i++ {
		c := value[i]
		if c >= '0' && c <= '9' {
			// Saturate, anything past MaxTTL is clamped anyway
			current = min(current*10+int(c-'0'), MaxTTL+1)
			haveDigits = true
			continue
		}
		if mult, ok := ttlUnits[c]; ok {
			total = addTTL(total, current, mult)
		}
		current = 0
		haveDigits = false
	}
	if haveDigits {
		total = addTTL(total, current, 1)
	}
	return total
}

func addTTL(total, n, mult int) int {
	if n > (MaxTTL-total)/mult {
		return MaxTTL
	}
	return total + n*mult
}
