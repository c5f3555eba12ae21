package zone_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bensku/zoneport/zone"
	"github.com/bensku/zoneport/zonefile"
	"github.com/google/go-cmp/cmp"
)

func TestFileStorage(t *testing.T) {
	storage, err := zone.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	// Empty storage
	zones, err := storage.ListZones(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(zones) != 0 {
		t.Fatal("nothing saved yet, zones should be empty", zones)
	}
	_, err = storage.Load(ctx, "example.com")
	if !errors.Is(err, zone.ErrZoneNotFound) {
		t.Fatal("missing zone should not load", err)
	}
	err = storage.Patch(ctx, "example.com", zone.NewRecord(zonefile.Record{Name: "example.com", Type: "A", Content: "127.0.0.1", TTL: 300}))
	if !errors.Is(err, zone.ErrZoneNotFound) {
		t.Fatal("patching a missing zone should fail", err)
	}

	// Zone creation
	err = storage.AddZone(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	err = storage.AddZone(ctx, "example.com")
	if !errors.Is(err, zone.ErrZoneExists) {
		t.Fatal("zone was created twice", err)
	}
	zones, _ = storage.ListZones(ctx)
	if diff := cmp.Diff([]string{"example.com"}, zones); diff != "" {
		t.Fatalf("zones mismatch (-want +got):\n%s", diff)
	}

	// Add some records
	apex := zone.DnsRecord{
		Id:     "record",
		Record: zonefile.Record{Name: "example.com", Type: "A", Content: "127.0.0.1", TTL: 300},
	}
	err = storage.Patch(ctx, "example.com", apex)
	if err != nil {
		t.Fatal(err)
	}
	www := zone.NewRecord(zonefile.Record{Name: "www.example.com", Type: "A", Content: "127.0.0.1", TTL: 1})
	err = storage.Patch(ctx, "example.com", www)
	if err != nil {
		t.Fatal(err)
	}
	mx := zone.NewRecord(zonefile.Record{Name: "example.com", Type: "MX", Content: "mail.example.com", TTL: 3600, Prio: 10})
	err = storage.Patch(ctx, "example.com", mx)
	if err != nil {
		t.Fatal(err)
	}

	// Load to see if it worked
	testZone, err := storage.Load(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(testZone.Records) != 3 {
		t.Fatal("record count should be 3, is", len(testZone.Records))
	}
	byId := make(map[string]zone.DnsRecord)
	for _, record := range testZone.Records {
		byId[record.Id] = record
	}
	for _, want := range []zone.DnsRecord{apex, www, mx} {
		if diff := cmp.Diff(want, byId[want.Id]); diff != "" {
			t.Errorf("record %s mismatch (-want +got):\n%s", want.Id, diff)
		}
	}

	// Overwriting (patching) existing records
	apex.Content = "127.0.0.2"
	err = storage.Patch(ctx, "example.com", apex)
	if err != nil {
		t.Fatal(err)
	}
	testZone, _ = storage.Load(ctx, "example.com")
	if len(testZone.Records) != 3 {
		t.Fatal("added new record, should've overwritten", testZone.Records)
	}
	if got := testZone.Lookup("example.com.", "a"); len(got) != 1 || got[0].Id != "record" || got[0].Content != "127.0.0.2" {
		t.Fatal("record was not overwritten", got)
	}

	// The stored file is plain BIND
	data, err := os.ReadFile(filepath.Join(storage.Path, "example.com.zone"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "$ORIGIN example.com.\n") || !strings.Contains(string(data), "example.com. 3600 IN MX 10 mail.example.com.") {
		t.Fatal("unexpected zone file", string(data))
	}

	// Deleting records
	err = storage.Delete(ctx, "example.com", "record")
	if err != nil {
		t.Fatal(err)
	}
	testZone, _ = storage.Load(ctx, "example.com")
	if len(testZone.Records) != 2 {
		t.Fatal("record was not deleted", testZone.Records)
	}

	// Clearing keeps the zone
	err = storage.Clear(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	testZone, err = storage.Load(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(testZone.Records) != 0 {
		t.Fatal("records were not cleared", testZone.Records)
	}

	// Zone deletion
	err = storage.DeleteZone(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	err = storage.DeleteZone(ctx, "example.com")
	if !errors.Is(err, zone.ErrZoneNotFound) {
		t.Fatal("zone was deleted twice", err)
	}
	zones, _ = storage.ListZones(ctx)
	if len(zones) != 0 {
		t.Fatal("zone still listed", zones)
	}
}

func TestFileStorageRejectsBadIds(t *testing.T) {
	storage, err := zone.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for _, zoneId := range []string{"", "../escape", "a/b", "Example.com", "example.com."} {
		if err := storage.AddZone(ctx, zoneId); err == nil {
			t.Errorf("zone id %q should be rejected", zoneId)
		}
	}

	if err := storage.AddZone(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"__zone", "a/b"} {
		record := zone.DnsRecord{Id: id, Record: zonefile.Record{Name: "example.com", Type: "A", Content: "127.0.0.1", TTL: 60}}
		if err := storage.Patch(ctx, "example.com", record); !errors.Is(err, zone.ErrInvalidId) {
			t.Errorf("record id %q should be rejected, got %v", id, err)
		}
	}
}

func TestFileStorageUnsupportedType(t *testing.T) {
	ctx := context.Background()
	storage, err := zone.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := storage.AddZone(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	relay := zone.NewRecord(zonefile.Record{Name: "foo.example.com", Type: "RT", Content: "10 relay.example.com", TTL: 300})
	if err := storage.Patch(ctx, "example.com", relay); !errors.Is(err, zone.ErrUnsupportedType) {
		t.Fatal("RT record should be rejected, got", err)
	}
	txt := zone.NewRecord(zonefile.Record{Name: "foo.example.com", Type: "TXT", Content: `"hello"`, TTL: 300})
	if err := storage.Patch(ctx, "example.com", txt); err != nil {
		t.Fatal(err)
	}
	err = storage.Replace(ctx, "example.com", []zone.DnsRecord{txt, relay})
	if !errors.Is(err, zone.ErrUnsupportedType) {
		t.Fatal("replace with RT record should be rejected, got", err)
	}

	loaded, err := storage.Load(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(loaded.Records) != 1 || loaded.Records[0].Type != "TXT" {
		t.Fatal("zone should keep only the TXT record", loaded.Records)
	}
}

func TestFileStorageReplace(t *testing.T) {
	storage, err := zone.NewFileStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	if err := storage.AddZone(ctx, "example.com"); err != nil {
		t.Fatal(err)
	}
	if err := storage.Patch(ctx, "example.com", zone.NewRecord(zonefile.Record{Name: "old.example.com", Type: "A", Content: "10.0.0.1", TTL: 60})); err != nil {
		t.Fatal(err)
	}

	records := []zone.DnsRecord{
		zone.NewRecord(zonefile.Record{Name: "new.example.com", Type: "AAAA", Content: "2001:db8::1", TTL: 60}),
		{Id: "acme-_acme-challenge", Record: zonefile.Record{Name: "_acme-challenge.example.com", Type: "TXT", Content: `"token"`, TTL: 60}},
	}
	// Loaded back in zone file section order
	if err := storage.Replace(ctx, "example.com", records); err != nil {
		t.Fatal(err)
	}
	testZone, err := storage.Load(ctx, "example.com")
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(records, testZone.Records); diff != "" {
		t.Fatalf("records mismatch (-want +got):\n%s", diff)
	}
}
