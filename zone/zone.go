package zone

import (
	"strings"
	"time"

	"github.com/bensku/zoneport/zonefile"
)

type Zone struct {
	Id          string      `json:"id"`
	Records     []DnsRecord `json:"records"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// Rows returns the zone content in the form the zone file generator takes.
func (z *Zone) Rows() []zonefile.Record {
	rows := make([]zonefile.Record, len(z.Records))
	for i, record := range z.Records {
		rows[i] = record.Record
	}
	return rows
}

// Lookup returns the records with the given owner name and type.
func (z *Zone) Lookup(name, rtype string) []DnsRecord {
	name = CanonicalName(name)
	var found []DnsRecord
	for _, record := range z.Records {
		if CanonicalName(record.Name) == name && strings.EqualFold(record.Type, rtype) {
			found = append(found, record)
		}
	}
	return found
}

// CanonicalName lowercases a domain name and removes its trailing dot.
// Zone ids are always canonical.
func CanonicalName(name string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(name), "."))
}
