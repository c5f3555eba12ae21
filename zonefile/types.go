package zonefile

import "strings"

// Default TTL used when a zone has no $TTL directive and no SOA record.
const DefaultTTL = 86400

// DefaultAutoTTL replaces the Cloudflare TTL=1 "automatic" marker unless
// configured otherwise.
const DefaultAutoTTL = 300

var knownTypes = map[string]bool{
	"A": true, "AAAA": true, "AFSDB": true, "ALIAS": true, "APL": true,
	"CAA": true, "CDNSKEY": true, "CDS": true, "CERT": true, "CNAME": true,
	"CSYNC": true, "DHCID": true, "DLV": true, "DNAME": true, "DNSKEY": true,
	"DS": true, "EUI48": true, "EUI64": true, "HINFO": true, "HTTPS": true,
	"IPSECKEY": true, "KEY": true, "KX": true, "LOC": true, "MX": true,
	"NAPTR": true, "NID": true, "NS": true, "NSEC": true, "NSEC3": true,
	"NSEC3PARAM": true, "OPENPGPKEY": true, "PTR": true, "RP": true,
	"RRSIG": true, "SMIMEA": true, "SOA": true, "SPF": true, "SRV": true,
	"SSHFP": true, "SVCB": true, "TKEY": true, "TLSA": true, "TSIG": true,
	"TXT": true, "URI": true, "ZONEMD": true,
}

// IsKnownType reports whether rtype (any case) is a record type the parser
// accepts.
func IsKnownType(rtype string) bool {
	return knownTypes[strings.ToUpper(rtype)]
}

// Export sections, in output order. Everything else goes under "Other".
var sectionOrder = []string{"SOA", "NS", "MX", "A", "AAAA", "CNAME", "TXT", "SRV", "CAA"}

// ParsedRecord is one resource record read from zone file text.
type ParsedRecord struct {
	Name     string `json:"name" yaml:"name"`
	TTL      int    `json:"ttl" yaml:"ttl"`
	Type     string `json:"type" yaml:"type"`
	Content  string `json:"content" yaml:"content"`
	Priority int    `json:"priority" yaml:"priority"`
}

// NewParsedRecord builds a record in canonical form: the owner name never
// ends with a dot.
func NewParsedRecord(name string, ttl int, rtype, content string, priority int) ParsedRecord {
	return ParsedRecord{
		Name:     strings.TrimRight(name, "."),
		TTL:      ttl,
		Type:     rtype,
		Content:  content,
		Priority: priority,
	}
}

// Row converts the parsed record into a storage row.
func (r ParsedRecord) Row() Record {
	return Record{Name: r.Name, Type: r.Type, Content: r.Content, TTL: r.TTL, Prio: r.Priority}
}

// ParsedZoneFile is the result of a single Parse call.
type ParsedZoneFile struct {
	origin     string
	defaultTTL int
	records    []ParsedRecord
	warnings   []string
}

// Origin returns the zone origin without a trailing dot, or "" when the
// file neither declared nor implied one.
func (z *ParsedZoneFile) Origin() string {
	return z.origin
}

func (z *ParsedZoneFile) DefaultTTL() int {
	return z.defaultTTL
}

// Records returns a copy of the parsed records in file order.
func (z *ParsedZoneFile) Records() []ParsedRecord {
	out := make([]ParsedRecord, len(z.records))
	copy(out, z.records)
	return out
}

func (z *ParsedZoneFile) RecordCount() int {
	return len(z.records)
}

// Warnings lists the lines that were skipped, in file order.
func (z *ParsedZoneFile) Warnings() []string {
	out := make([]string, len(z.warnings))
	copy(out, z.warnings)
	return out
}

// Record is a stored record row as consumed by the generator. Name is
// canonical and Prio is kept apart from Content for MX, SRV, KX, AFSDB.
type Record struct {
	Name    string `json:"name" yaml:"name"`
	Type    string `json:"type" yaml:"type"`
	Content string `json:"content" yaml:"content"`
	TTL     int    `json:"ttl" yaml:"ttl"`
	Prio    int    `json:"prio,omitempty" yaml:"prio,omitempty"`
}
