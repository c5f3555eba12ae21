package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/bensku/zoneport/importer"
	"github.com/bensku/zoneport/zone"
	"github.com/bensku/zoneport/zonefile"
	"github.com/miekg/dns"
)

// acmeTTL is used for the TXT records written through the acme-dns API.
const acmeTTL = 60

// maxRecordBody bounds single record and acme-dns update requests.
const maxRecordBody = 64 << 10

type acmeUpdate struct {
	Subdomain string `json:"subdomain"`
	Txt       string `json:"txt"`
}

type acmeResponse struct {
	Txt string `json:"txt"`
}

type api struct {
	storage  zone.ZoneStorage
	importer *importer.Importer
}

func writeJSON(w http.ResponseWriter, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		slog.Error("failed to serialize response", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(data)
}

// readBody reads at most limit bytes of the request body. On failure the
// response has been written and ok is false.
func readBody(w http.ResponseWriter, r *http.Request, limit int64) (body []byte, ok bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, limit))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, fmt.Sprintf("request body exceeds %d bytes", limit), http.StatusRequestEntityTooLarge)
			return nil, false
		}
		slog.Error("failed to read request body", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return body, true
}

// storageError maps storage errors to HTTP status codes.
func storageError(w http.ResponseWriter, msg string, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, zone.ErrZoneNotFound):
		status = http.StatusNotFound
	case errors.Is(err, zone.ErrZoneExists):
		status = http.StatusConflict
	case errors.Is(err, zone.ErrInvalidId), errors.Is(err, zone.ErrInvalidZone), errors.Is(err, zone.ErrUnsupportedType):
		status = http.StatusBadRequest
	default:
		slog.Error(msg, "error", err)
	}
	http.Error(w, err.Error(), status)
}

func pathZone(r *http.Request) string {
	return zone.CanonicalName(r.PathValue("zone"))
}

func (a *api) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := a.storage.ListZones(r.Context())
	if err != nil {
		storageError(w, "failed to list zones", err)
		return
	}
	writeJSON(w, zones)
}

func (a *api) addZone(w http.ResponseWriter, r *http.Request) {
	err := a.storage.AddZone(r.Context(), pathZone(r))
	if err != nil {
		storageError(w, "failed to add zone", err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (a *api) deleteZone(w http.ResponseWriter, r *http.Request) {
	err := a.storage.DeleteZone(r.Context(), pathZone(r))
	if err != nil {
		storageError(w, "failed to delete zone", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) getZone(w http.ResponseWriter, r *http.Request) {
	loaded, err := a.storage.Load(r.Context(), pathZone(r))
	if err != nil {
		storageError(w, "failed to load zone", err)
		return
	}
	writeJSON(w, loaded)
}

func (a *api) exportZone(w http.ResponseWriter, r *http.Request) {
	loaded, err := a.storage.Load(r.Context(), pathZone(r))
	if err != nil {
		storageError(w, "failed to load zone", err)
		return
	}
	w.Header().Set("Content-Type", "text/dns")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", loaded.Id+".zone"))
	io.WriteString(w, zonefile.Generate(loaded.Id, loaded.Rows()))
}

func (a *api) importZone(w http.ResponseWriter, r *http.Request) {
	mode, err := importer.ParseMode(r.URL.Query().Get("mode"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	conflict, err := importer.ParseConflictStrategy(r.URL.Query().Get("conflict"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// One byte over the limit lets Prepare report the size error
	body, ok := readBody(w, r, int64(a.importer.MaxSize())+1)
	if !ok {
		return
	}
	preview, err := a.importer.Prepare(string(body))
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, importer.ErrTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		http.Error(w, err.Error(), status)
		return
	}

	result, err := a.importer.Execute(r.Context(), preview, importer.Options{
		Mode:     mode,
		Conflict: conflict,
		ZoneName: pathZone(r),
	})
	if err != nil {
		storageError(w, "failed to import zone", err)
		return
	}
	writeJSON(w, result)
}

// parseRecord reads one record in zone file syntax, relative names are
// completed with the zone name.
func parseRecord(zoneId string, text string) (zonefile.Record, error) {
	parser := dns.NewZoneParser(strings.NewReader(text), dns.Fqdn(zoneId), "")
	rr, ok := parser.Next()
	if err := parser.Err(); err != nil {
		return zonefile.Record{}, err
	}
	if !ok {
		return zonefile.Record{}, errors.New("no record given")
	}
	return zonefile.FromRR(rr)
}

func (a *api) putRecord(w http.ResponseWriter, r *http.Request) {
	zoneId := pathZone(r)
	recordId := r.PathValue("record")

	body, ok := readBody(w, r, maxRecordBody)
	if !ok {
		return
	}
	record, err := parseRecord(zoneId, string(body))
	if err != nil {
		slog.Debug("failed to parse record", "error", err)
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	err = a.storage.Patch(r.Context(), zoneId, zone.DnsRecord{
		Id:     recordId,
		Record: record,
	})
	if err != nil {
		storageError(w, "failed to patch record", err)
		return
	}
}

func (a *api) deleteRecord(w http.ResponseWriter, r *http.Request) {
	err := a.storage.Delete(r.Context(), pathZone(r), r.PathValue("record"))
	if err != nil {
		storageError(w, "failed to delete record", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *api) acmeHealth(w http.ResponseWriter, r *http.Request) {
	_, err := a.storage.LastUpdated(r.Context(), pathZone(r))
	if err != nil {
		storageError(w, "acme-dns health check failed", err)
		return
	}
}

func (a *api) acmeUpdate(w http.ResponseWriter, r *http.Request) {
	zoneId := pathZone(r)

	body, ok := readBody(w, r, maxRecordBody)
	if !ok {
		return
	}
	var update acmeUpdate
	err := json.Unmarshal(body, &update)
	if err != nil || update.Subdomain == "" {
		http.Error(w, "invalid acme-dns update", http.StatusBadRequest)
		return
	}

	name := update.Subdomain
	if !strings.HasSuffix(name, ".") {
		name += "." + zoneId
	}
	err = a.storage.Patch(r.Context(), zoneId, zone.DnsRecord{
		Id:     "acme-" + zone.CanonicalName(update.Subdomain),
		Record: zonefile.Record{
			Name:    zone.CanonicalName(name),
			Type:    "TXT",
			Content: zonefile.QuoteTXT(update.Txt),
			TTL:     acmeTTL,
		},
	})
	if err != nil {
		storageError(w, "failed to store acme-dns update", err)
		return
	}
	writeJSON(w, acmeResponse{Txt: update.Txt})
}

// NewHandler returns the admin API with API key authentication.
func NewHandler(storage zone.ZoneStorage, imp *importer.Importer, apiKeys []string) http.Handler {
	a := &api{storage: storage, importer: imp}
	mux := http.NewServeMux()

	// Zone listing and manipulation
	mux.HandleFunc("GET /api/v1/zone", a.listZones)
	mux.HandleFunc("GET /api/v1/zone/{zone}", a.getZone)
	mux.HandleFunc("PUT /api/v1/zone/{zone}", a.addZone)
	mux.HandleFunc("DELETE /api/v1/zone/{zone}", a.deleteZone)

	// Zone files
	mux.HandleFunc("GET /api/v1/zone/{zone}/export", a.exportZone)
	mux.HandleFunc("POST /api/v1/zone/{zone}/import", a.importZone)

	// DNS record manipulation
	mux.HandleFunc("PUT /api/v1/zone/{zone}/{record}", a.putRecord)
	mux.HandleFunc("DELETE /api/v1/zone/{zone}/{record}", a.deleteRecord)

	// acme-dns compatibility
	mux.HandleFunc("GET /api/v1/zone/{zone}/acme/health", a.acmeHealth)
	mux.HandleFunc("POST /api/v1/zone/{zone}/acme/update", a.acmeUpdate)

	return withAuth(mux, apiKeys)
}

func New(ctx context.Context, addr string,
	storage zone.ZoneStorage, imp *importer.Importer, apiKeys []string) {
	server := &http.Server{
		Addr:    addr,
		Handler: NewHandler(storage, imp, apiKeys),
	}
	go func() {
		slog.Info("starting admin API", "addr", addr)
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("admin API failed", "error", err)
		}
	}()

	go func() {
		<-ctx.Done()
		server.Close()
	}()
}
