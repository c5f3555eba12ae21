package zonefile

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// Generator renders stored records as a BIND zone file that pdnsutil
// load-zone and Cloudflare's importer accept.
type Generator struct {
	// Now stamps the export header, time.Now when nil.
	Now func() time.Time
}

// Generate renders records with the current time in the header.
func Generate(zoneName string, records []Record) string {
	return (&Generator{}).Generate(zoneName, records)
}

// Generate renders records grouped by type: SOA, NS, MX, A, AAAA, CNAME,
// TXT, SRV, CAA and then everything else. Input order is kept within a
// group.
func (g *Generator) Generate(zoneName string, records []Record) string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	zoneName = strings.TrimRight(zoneName, ".")

	var b strings.Builder
	fmt.Fprintf(&b, "; Zone: %s\n", zoneName)
	fmt.Fprintf(&b, "; Exported: %s\n", now().UTC().Format("2006-01-02 15:04:05 MST"))
	b.WriteString(";\n")

	defaultTTL := DefaultTTL
	for _, record := range records {
		if strings.EqualFold(record.Type, "SOA") {
			defaultTTL = record.TTL
			break
		}
	}
	fmt.Fprintf(&b, "$ORIGIN %s\n", dns.Fqdn(zoneName))
	fmt.Fprintf(&b, "$TTL %d\n\n", defaultTTL)

	sections := make(map[string][]Record, len(sectionOrder))
	var other []Record
	for _, record := range records {
		rtype := strings.ToUpper(record.Type)
		if isSection(rtype) {
			sections[rtype] = append(sections[rtype], record)
		} else {
			other = append(other, record)
		}
	}

	for _, rtype := range sectionOrder {
		writeSection(&b, rtype+" Records", sections[rtype])
	}
	writeSection(&b, "Other Records", other)

	return b.String()
}

func isSection(rtype string) bool {
	for _, s := range sectionOrder {
		if s == rtype {
			return true
		}
	}
	return false
}

func writeSection(b *strings.Builder, title string, records []Record) {
	if len(records) == 0 {
		return
	}
	fmt.Fprintf(b, "; %s\n", title)
	for _, record := range records {
		b.WriteString(FormatLine(record))
		b.WriteByte('\n')
	}
	b.WriteByte('\n')
}

// FormatLine renders one record as "<name.> <ttl> IN <type> <rdata>".
func FormatLine(record Record) string {
	rtype := strings.ToUpper(record.Type)
	return dns.Fqdn(record.Name) + " " + strconv.Itoa(record.TTL) + " IN " + rtype + " " + formatContent(rtype, record)
}

// formatContent is the inverse of the parser's rdata rules. Stored content
// that does not have the expected shape is written unchanged.
func formatContent(rtype string, record Record) string {
	content := record.Content
	switch rtype {
	case "MX", "KX", "AFSDB":
		return strconv.Itoa(record.Prio) + " " + dns.Fqdn(content)
	case "SRV":
		fields := strings.Fields(content)
		if len(fields) < 3 {
			return content
		}
		fields[2] = dns.Fqdn(fields[2])
		return strconv.Itoa(record.Prio) + " " + strings.Join(fields, " ")
	case "NS", "CNAME", "PTR", "DNAME":
		return dns.Fqdn(content)
	case "SOA":
		fields := strings.Fields(content)
		if len(fields) < 7 {
			return content
		}
		fields[0] = dns.Fqdn(fields[0])
		fields[1] = dns.Fqdn(fields[1])
		return strings.Join(fields, " ")
	case "NAPTR":
		fields := strings.Fields(content)
		if len(fields) < 6 {
			return content
		}
		fields[5] = dns.Fqdn(fields[5])
		return strings.Join(fields, " ")
	}
	return content
}
