package zone

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bensku/zoneport/zonefile"
)

// FileStorage keeps every zone as a BIND zone file in one directory, so the
// fallback copy can be loaded by any other nameserver as is. Record ids that
// differ from the content-derived ones are kept in a small JSON file next to
// the zone.
type FileStorage struct {
	Path string

	lock   sync.Mutex
	parser *zonefile.Parser
}

func NewFileStorage(path string) (*FileStorage, error) {
	err := os.MkdirAll(path, 0o755)
	if err != nil {
		return nil, fmt.Errorf("failed to create zone data directory: %w", err)
	}
	// TTL 1 is stored as such, never remapped
	return &FileStorage{Path: path, parser: zonefile.NewParser(1)}, nil
}

func (storage *FileStorage) zonePath(zoneId string) string {
	return filepath.Join(storage.Path, zoneId+".zone")
}

func (storage *FileStorage) idsPath(zoneId string) string {
	return filepath.Join(storage.Path, zoneId+".ids")
}

func (storage *FileStorage) exists(zoneId string) bool {
	_, err := os.Stat(storage.zonePath(zoneId))
	return err == nil
}

func (storage *FileStorage) ListZones(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to list zone files: %w", err)
	}
	zones := make([]string, 0)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".zone") {
			continue
		}
		zones = append(zones, strings.TrimSuffix(name, ".zone"))
	}
	return zones, nil
}

func (storage *FileStorage) AddZone(ctx context.Context, zoneId string) error {
	if err := checkZoneId(zoneId); err != nil {
		return err
	}
	storage.lock.Lock()
	defer storage.lock.Unlock()

	if storage.exists(zoneId) {
		return fmt.Errorf("%w: %s", ErrZoneExists, zoneId)
	}
	return storage.write(zoneId, nil)
}

func (storage *FileStorage) DeleteZone(ctx context.Context, zoneId string) error {
	storage.lock.Lock()
	defer storage.lock.Unlock()

	err := os.Remove(storage.zonePath(zoneId))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, zoneId)
	} else if err != nil {
		return fmt.Errorf("failed to remove zone file: %w", err)
	}
	err = os.Remove(storage.idsPath(zoneId))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove zone id file: %w", err)
	}
	return nil
}

func (storage *FileStorage) Load(ctx context.Context, zoneId string) (Zone, error) {
	storage.lock.Lock()
	defer storage.lock.Unlock()
	return storage.read(zoneId)
}

func (storage *FileStorage) read(zoneId string) (Zone, error) {
	data, err := os.ReadFile(storage.zonePath(zoneId))
	if errors.Is(err, os.ErrNotExist) {
		return Zone{}, fmt.Errorf("%w: %s", ErrZoneNotFound, zoneId)
	} else if err != nil {
		return Zone{}, fmt.Errorf("failed to read zone data file: %w", err)
	}
	info, err := os.Stat(storage.zonePath(zoneId))
	if err != nil {
		return Zone{}, fmt.Errorf("failed to stat zone data file: %w", err)
	}

	ids := make(map[string]string)
	idData, err := os.ReadFile(storage.idsPath(zoneId))
	if err == nil {
		if err := json.Unmarshal(idData, &ids); err != nil {
			return Zone{}, fmt.Errorf("failed to decode zone id file: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return Zone{}, fmt.Errorf("failed to read zone id file: %w", err)
	}

	parsed := storage.parser.Parse(string(data))
	for _, warning := range parsed.Warnings() {
		slog.Warn("skipped stored record", "zoneId", zoneId, "warning", warning)
	}

	records := make([]DnsRecord, 0, parsed.RecordCount())
	for _, parsedRecord := range parsed.Records() {
		record := NewRecord(parsedRecord.Row())
		if id, ok := ids[record.Id]; ok {
			record.Id = id
		}
		records = append(records, record)
	}

	return Zone{
		Id:          zoneId,
		Records:     records,
		LastUpdated: info.ModTime(),
	}, nil
}

func (storage *FileStorage) write(zoneId string, records []DnsRecord) error {
	rows := make([]zonefile.Record, len(records))
	ids := make(map[string]string)
	for i, record := range records {
		rows[i] = record.Record
		if derived := RecordId(record.Record); derived != record.Id {
			ids[derived] = record.Id
		}
	}

	err := storage.writeFile(storage.zonePath(zoneId), []byte(zonefile.Generate(zoneId, rows)))
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		err = os.Remove(storage.idsPath(zoneId))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to remove zone id file: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("failed to encode record ids: %w", err)
	}
	return storage.writeFile(storage.idsPath(zoneId), data)
}

// writeFile replaces path atomically.
func (storage *FileStorage) writeFile(path string, data []byte) error {
	file, err := os.CreateTemp(storage.Path, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create zone file: %w", err)
	}
	defer os.Remove(file.Name())

	_, err = file.Write(data)
	if closeErr := file.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("failed to write zone file: %w", err)
	}
	err = os.Rename(file.Name(), path)
	if err != nil {
		return fmt.Errorf("failed to replace zone file: %w", err)
	}
	return nil
}

func (storage *FileStorage) LastUpdated(ctx context.Context, zoneId string) (time.Time, error) {
	info, err := os.Stat(storage.zonePath(zoneId))
	if errors.Is(err, os.ErrNotExist) {
		return time.Unix(0, 0), nil
	} else if err != nil {
		return time.Unix(0, 0), fmt.Errorf("failed to stat zone data file: %w", err)
	}
	return info.ModTime(), nil
}

func (storage *FileStorage) Patch(ctx context.Context, zoneId string, record DnsRecord) error {
	record, err := checkRecord(record)
	if err != nil {
		return err
	}
	storage.lock.Lock()
	defer storage.lock.Unlock()

	zone, err := storage.read(zoneId)
	if err != nil {
		return err
	}
	replaced := false
	for i, existing := range zone.Records {
		if existing.Id == record.Id {
			zone.Records[i] = record
			replaced = true
			break
		}
	}
	if !replaced {
		zone.Records = append(zone.Records, record)
	}
	return storage.write(zoneId, zone.Records)
}

func (storage *FileStorage) Delete(ctx context.Context, zoneId string, id string) error {
	storage.lock.Lock()
	defer storage.lock.Unlock()

	zone, err := storage.read(zoneId)
	if err != nil {
		return err
	}
	kept := zone.Records[:0]
	for _, record := range zone.Records {
		if record.Id != id {
			kept = append(kept, record)
		}
	}
	return storage.write(zoneId, kept)
}

func (storage *FileStorage) Clear(ctx context.Context, zoneId string) error {
	storage.lock.Lock()
	defer storage.lock.Unlock()

	if !storage.exists(zoneId) {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, zoneId)
	}
	return storage.write(zoneId, nil)
}

// Replace swaps all records of an existing zone in a single write.
func (storage *FileStorage) Replace(ctx context.Context, zoneId string, records []DnsRecord) error {
	checked := make([]DnsRecord, len(records))
	for i, record := range records {
		record, err := checkRecord(record)
		if err != nil {
			return err
		}
		checked[i] = record
	}

	storage.lock.Lock()
	defer storage.lock.Unlock()
	if !storage.exists(zoneId) {
		return fmt.Errorf("%w: %s", ErrZoneNotFound, zoneId)
	}
	return storage.write(zoneId, checked)
}

var _ ZoneStorage = (*FileStorage)(nil)
