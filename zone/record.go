package zone

import (
	"strings"

	"github.com/bensku/zoneport/zonefile"
	"github.com/google/uuid"
)

type DnsRecord struct {
	// Id of this record, must be unique within zone
	Id string `json:"id"`

	// Underlying record row
	zonefile.Record
}

// NewRecord wraps a row with its content-derived id.
func NewRecord(record zonefile.Record) DnsRecord {
	return DnsRecord{Id: RecordId(record), Record: record}
}

// RecordId derives a stable id from owner name, type and content, so the
// same record imported twice maps to the same id. TTL and prio are not part
// of the identity.
func RecordId(record zonefile.Record) string {
	key := strings.ToLower(strings.TrimRight(record.Name, ".")) + "|" +
		strings.ToUpper(record.Type) + "|" + record.Content
	return uuid.NewSHA1(uuid.NameSpaceDNS, []byte(key)).String()
}

// Same reports whether two records have equal name, type and content.
func Same(a, b zonefile.Record) bool {
	return strings.EqualFold(strings.TrimRight(a.Name, "."), strings.TrimRight(b.Name, ".")) &&
		strings.EqualFold(a.Type, b.Type) &&
		a.Content == b.Content
}
