package zonefile

import (
	"fmt"
	"strings"

	"github.com/miekg/dns"
)

// RR converts a stored row into a wire-ready record. Types miekg/dns cannot
// read from text (ALIAS, for one) return an error.
func (r Record) RR() (dns.RR, error) {
	if _, ok := dns.StringToType[strings.ToUpper(r.Type)]; !ok {
		return nil, fmt.Errorf("unsupported record type: %s", r.Type)
	}
	rr, err := dns.NewRR(FormatLine(r))
	if err != nil {
		return nil, fmt.Errorf("invalid %s record %s: %w", r.Type, r.Name, err)
	}
	if rr == nil {
		return nil, fmt.Errorf("empty %s record %s", r.Type, r.Name)
	}
	return rr, nil
}

// FromRR maps a miekg/dns record back into the stored row convention,
// running its presentation rdata through the same rules the parser uses.
// Types the parser would skip are rejected.
func FromRR(rr dns.RR) (Record, error) {
	hdr := rr.Header()
	rtype, ok := dns.TypeToString[hdr.Rrtype]
	if !ok {
		return Record{}, fmt.Errorf("unknown record type %d", hdr.Rrtype)
	}
	if !IsKnownType(rtype) {
		return Record{}, fmt.Errorf("unsupported record type: %s", rtype)
	}

	full := rr.String()
	rdata := strings.TrimPrefix(full, hdr.String())
	if rdata == full {
		// Header rendered differently, skip name, ttl, class and type
		fields := tokenize(full)
		if len(fields) < 4 {
			return Record{}, fmt.Errorf("malformed %s record", rtype)
		}
		rdata = strings.Join(fields[4:], " ")
	}

	content, prio, err := buildContent(rtype, tokenize(strings.TrimSpace(rdata)), "")
	if err != nil {
		return Record{}, err
	}
	return Record{
		Name:    strings.TrimRight(hdr.Name, "."),
		Type:    rtype,
		Content: content,
		TTL:     int(hdr.Ttl),
		Prio:    prio,
	}, nil
}
