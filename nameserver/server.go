package nameserver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/bensku/zoneport/zone"
	"github.com/miekg/dns"
)

type Server struct {
	zones *zone.ZoneServer
	dns   *dns.Server
}

// served is a zone converted to wire records once per update.
type served struct {
	origin  string
	records []dns.RR
}

func compile(z *zone.Zone) *served {
	s := &served{origin: dns.Fqdn(z.Id)}
	for _, record := range z.Records {
		rr, err := record.RR()
		if err != nil {
			slog.Warn("record cannot be served", "zoneId", z.Id, "recordId", record.Id, "error", err)
			continue
		}
		s.records = append(s.records, rr)
	}
	return s
}

// owned returns all records at exactly name.
func (s *served) owned(name string) []dns.RR {
	var found []dns.RR
	for _, rr := range s.records {
		if strings.EqualFold(rr.Header().Name, name) {
			found = append(found, rr)
		}
	}
	return found
}

// lookup finds the records for name, falling back to the closest wildcard
// while walking up to the zone apex. A name that exists stops the walk. The
// apex always exists.
func (s *served) lookup(name string) (records []dns.RR, exists bool) {
	if found := s.owned(name); len(found) > 0 || strings.EqualFold(name, s.origin) {
		return found, true
	}
	labels := dns.SplitDomainName(name)
	for i := 1; i < len(labels); i++ {
		parent := dns.Fqdn(strings.Join(labels[i:], "."))
		if len(parent) < len(s.origin) {
			break
		}
		if found := s.owned("*." + parent); len(found) > 0 {
			return found, true
		}
		if len(s.owned(parent)) > 0 {
			break
		}
	}
	return nil, false
}

func (s *served) soa() []dns.RR {
	for _, rr := range s.owned(s.origin) {
		if rr.Header().Rrtype == dns.TypeSOA {
			return []dns.RR{rr}
		}
	}
	return nil
}

func matches(rr dns.RR, qtype uint16) bool {
	return qtype == dns.TypeANY || rr.Header().Rrtype == qtype
}

// answer builds the authoritative reply for a query against one zone.
func (s *served) answer(r *dns.Msg) *dns.Msg {
	m := new(dns.Msg)
	m.SetReply(r)
	m.Authoritative = true

	for _, q := range r.Question {
		slog.Debug("incoming query", "query", q.Name, "type", dns.TypeToString[q.Qtype])
		records, exists := s.lookup(q.Name)
		if !exists {
			m.Rcode = dns.RcodeNameError
			m.Ns = s.soa()
			continue
		}

		var answers, cnames []dns.RR
		for _, record := range records {
			if matches(record, q.Qtype) {
				answers = append(answers, record)
			} else if record.Header().Rrtype == dns.TypeCNAME {
				cnames = append(cnames, record)
			}
		}
		if len(answers) == 0 {
			answers = cnames
		}
		if len(answers) == 0 {
			// Name exists without this type
			m.Ns = s.soa()
		}
		for _, record := range answers {
			// Create a new record with the queried name
			newRecord := dns.Copy(record)
			newRecord.Header().Name = q.Name
			m.Answer = append(m.Answer, newRecord)
		}
	}
	return m
}

func New(ctx context.Context, listenAddr string, primary zone.ZoneStorage, fallback zone.ZoneStorage) *Server {
	handler := dns.NewServeMux()

	onZoneUpdated := func(name string, z *zone.Zone) {
		if z == nil {
			// Previously existing zone was removed, clear handler
			handler.HandleRemove(dns.Fqdn(name))
			return
		}
		// New zone was loaded or existing zone was updated (=replaced)
		s := compile(z)
		handler.HandleRemove(s.origin) // Remove old handler (no-op if it doesn't exist)
		handler.HandleFunc(s.origin, func(w dns.ResponseWriter, m *dns.Msg) {
			err := w.WriteMsg(s.answer(m))
			if err != nil {
				slog.Debug("failed to write DNS response", "error", err)
			}
		})
	}

	server := Server{
		zones: zone.NewZoneServer(ctx, primary, fallback, onZoneUpdated),
		dns:   &dns.Server{Addr: listenAddr, Net: "udp", Handler: handler},
	}

	// Shutdown the DNS server when context is done
	go func() {
		<-ctx.Done()
		server.zones.Close()
		server.dns.Shutdown()
	}()

	go func() {
		slog.Info("starting DNS server", "addr", listenAddr)
		err := server.dns.ListenAndServe()
		if err != nil {
			slog.Error("DNS server failed to start", "error", err)
		}
	}()

	return &server
}
