package zone

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bensku/zoneport/zonefile"
)

var (
	ErrZoneNotFound    = errors.New("zone not found")
	ErrZoneExists      = errors.New("zone already exists")
	ErrInvalidId       = errors.New("invalid record id")
	ErrInvalidZone     = errors.New("invalid zone id")
	ErrUnsupportedType = errors.New("unsupported record type")
)

type ZoneStorage interface {
	ListZones(ctx context.Context) ([]string, error)
	AddZone(ctx context.Context, zoneId string) error
	DeleteZone(ctx context.Context, zoneId string) error

	Load(ctx context.Context, zoneId string) (Zone, error)
	LastUpdated(ctx context.Context, zoneId string) (time.Time, error)
	Patch(ctx context.Context, zoneId string, record DnsRecord) error
	Delete(ctx context.Context, zoneId string, id string) error
	Clear(ctx context.Context, zoneId string) error
}

// checkZoneId rejects ids that cannot be used as a key or file name.
func checkZoneId(zoneId string) error {
	if zoneId == "" || zoneId != CanonicalName(zoneId) || strings.ContainsAny(zoneId, "/\\") || strings.Contains(zoneId, "..") {
		return fmt.Errorf("%w: %q", ErrInvalidZone, zoneId)
	}
	return nil
}

// checkId rejects empty and reserved record ids.
func checkId(id string) error {
	if id == "" || strings.HasPrefix(id, "__") || strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("%w: %q", ErrInvalidId, id)
	}
	return nil
}

// checkRecord fills in a missing id and rejects reserved ids and types
// the zone file parser does not read.
func checkRecord(record DnsRecord) (DnsRecord, error) {
	if record.Id == "" {
		record.Id = RecordId(record.Record)
	}
	if err := checkId(record.Id); err != nil {
		return record, err
	}
	if !zonefile.IsKnownType(record.Type) {
		return record, fmt.Errorf("%w: %q", ErrUnsupportedType, record.Type)
	}
	return record, nil
}

// HasZone reports whether storage lists zoneId.
func HasZone(ctx context.Context, storage ZoneStorage, zoneId string) (bool, error) {
	zones, err := storage.ListZones(ctx)
	if err != nil {
		return false, err
	}
	for _, id := range zones {
		if id == zoneId {
			return true, nil
		}
	}
	return false, nil
}

// IsCurrent reports whether the in-memory zone is as new as the stored one.
// A nil zone is never current.
func IsCurrent(ctx context.Context, storage ZoneStorage, zone *Zone) (bool, error) {
	if zone == nil {
		return false, nil
	}
	lastUpdated, err := storage.LastUpdated(ctx, zone.Id)
	if err != nil {
		return false, err
	}
	return !lastUpdated.After(zone.LastUpdated), nil
}

// replacer is implemented by storages that can swap a zone's records in one
// write.
type replacer interface {
	Replace(ctx context.Context, zoneId string, records []DnsRecord) error
}

// InternalTransfer replaces the content of the zone in another storage,
// creating it there if needed.
func InternalTransfer(ctx context.Context, zone Zone, to ZoneStorage) error {
	err := to.AddZone(ctx, zone.Id)
	if err != nil && !errors.Is(err, ErrZoneExists) {
		return fmt.Errorf("failed to create transfer target: %w", err)
	}
	if r, ok := to.(replacer); ok {
		if err := r.Replace(ctx, zone.Id, zone.Records); err != nil {
			return fmt.Errorf("failed to transfer records: %w", err)
		}
		return nil
	}

	err = to.Clear(ctx, zone.Id)
	if err != nil {
		return fmt.Errorf("failed to clear transfer target: %w", err)
	}
	for _, record := range zone.Records {
		err = to.Patch(ctx, zone.Id, record)
		if err != nil {
			return fmt.Errorf("failed to transfer record: %w", err)
		}
	}
	return nil
}
