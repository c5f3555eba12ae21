package zone_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bensku/zoneport/zone"
	"github.com/bensku/zoneport/zonefile"
)

// bump moves a zone file's mtime forward so the next refresh sees a change
// even within the filesystem timestamp granularity.
func bump(t *testing.T, storage *zone.FileStorage, zoneId string) {
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(filepath.Join(storage.Path, zoneId+".zone"), future, future); err != nil {
		t.Fatal(err)
	}
}

type updates struct {
	lock  sync.Mutex
	zones map[string]*zone.Zone
}

func (u *updates) record(zoneId string, z *zone.Zone) {
	u.lock.Lock()
	defer u.lock.Unlock()
	u.zones[zoneId] = z
}

func (u *updates) get(zoneId string) (*zone.Zone, bool) {
	u.lock.Lock()
	defer u.lock.Unlock()
	z, ok := u.zones[zoneId]
	return z, ok
}

func loaded(server *zone.ZoneServer, zoneId string) *zone.Zone {
	server.ZoneLock.RLock()
	defer server.ZoneLock.RUnlock()
	return server.Zones[zoneId]
}

func TestZoneServer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	primary, err := zone.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	fallback, err := zone.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	for _, zoneId := range []string{"example.com", "sub.example.com", "stale.example"} {
		if err := primary.AddZone(ctx, zoneId); err != nil {
			t.Fatal(err)
		}
	}
	// Only in fallback, should be pruned
	if err := fallback.AddZone(ctx, "stale.example.org"); err != nil {
		t.Fatal(err)
	}
	if err := primary.Patch(ctx, "example.com", zone.NewRecord(zonefile.Record{Name: "www.example.com", Type: "A", Content: "192.0.2.1", TTL: 300})); err != nil {
		t.Fatal(err)
	}

	seen := &updates{zones: make(map[string]*zone.Zone)}
	server := zone.NewZoneServer(ctx, primary, fallback, seen.record)
	defer server.Close()

	for _, zoneId := range []string{"example.com", "sub.example.com", "stale.example"} {
		if z, ok := seen.get(zoneId); !ok || z == nil {
			t.Fatal("listener not called for", zoneId)
		}
	}

	// Primary content was mirrored to fallback, stale fallback zones pruned
	mirrored, err := fallback.Load(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(mirrored.Records) != 1 || mirrored.Records[0].Name != "www.example.com" {
		t.Fatal("zone was not mirrored", mirrored.Records)
	}
	if ok, _ := zone.HasZone(ctx, fallback, "stale.example.org"); ok {
		t.Fatal("stale fallback zone was not pruned")
	}

	// Changes are picked up on refresh
	if err := primary.Patch(ctx, "example.com", zone.NewRecord(zonefile.Record{Name: "mail.example.com", Type: "A", Content: "192.0.2.2", TTL: 300})); err != nil {
		t.Fatal(err)
	}
	bump(t, primary, "example.com")
	if err := primary.DeleteZone(ctx, "stale.example"); err != nil {
		t.Fatal(err)
	}
	if err := server.Refresh(); err != nil {
		t.Fatal(err)
	}

	updated, _ := seen.get("example.com")
	if updated == nil || len(updated.Records) != 2 {
		t.Fatal("updated zone was not delivered", updated)
	}
	if removed, ok := seen.get("stale.example"); !ok || removed != nil {
		t.Fatal("removal was not delivered", removed)
	}
	if loaded(server, "stale.example") != nil {
		t.Fatal("removed zone still served")
	}
	if ok, _ := zone.HasZone(ctx, fallback, "stale.example"); ok {
		t.Fatal("removed zone still in fallback")
	}
}

func TestZoneServerFallback(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Primary points at a directory that is gone, so listing fails
	dir := t.TempDir()
	primary, err := zone.NewFileStorage(filepath.Join(dir, "primary"))
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(primary.Path); err != nil {
		t.Fatal(err)
	}

	fallback, err := zone.NewFileStorage(filepath.Join(dir, "fallback"))
	if err != nil {
		t.Fatal(err)
	}
	if err := fallback.AddZone(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	if err := fallback.Patch(ctx, "example.com", zone.NewRecord(zonefile.Record{Name: "example.com", Type: "A", Content: "192.0.2.1", TTL: 300})); err != nil {
		t.Fatal(err)
	}

	server := zone.NewZoneServer(ctx, primary, fallback, nil)
	defer server.Close()

	found := loaded(server, "example.com")
	if found == nil || len(found.Records) != 1 {
		t.Fatal("zone was not loaded from fallback", found)
	}
	if found.LastUpdated.Unix() != 0 {
		t.Fatal("fallback copy must be replaced by primary later", found.LastUpdated)
	}
}
