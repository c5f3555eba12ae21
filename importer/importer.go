// Package importer loads BIND zone files into zone storage: it checks and
// parses the upload, shows what would be imported and then writes the
// records with a chosen conflict strategy.
package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/bensku/zoneport/zone"
	"github.com/bensku/zoneport/zonefile"
	"github.com/dustin/go-humanize"
	"golang.org/x/net/idna"
)

// DefaultMaxSize is the largest zone file accepted unless configured.
const DefaultMaxSize = 1 << 20

var (
	ErrTooLarge         = errors.New("file size exceeds the maximum allowed size")
	ErrEmpty            = errors.New("the uploaded file is empty or could not be read")
	ErrNoRecords        = errors.New("no valid records found in the uploaded file")
	ErrZoneNameRequired = errors.New("zone name is required")
	ErrZoneExists       = zone.ErrZoneExists
	ErrZoneNotFound     = zone.ErrZoneNotFound
)

type Mode string

const (
	// ModeAuto imports into the origin's zone if it exists, else creates it.
	ModeAuto     Mode = "auto"
	ModeNew      Mode = "new"
	ModeExisting Mode = "existing"
)

type ConflictStrategy string

const (
	// ConflictSkip leaves records alone that already exist with the same
	// name, type and content.
	ConflictSkip ConflictStrategy = "skip"
	// ConflictReplace deletes the existing records of every name and type
	// pair that is imported.
	ConflictReplace ConflictStrategy = "replace"
	// ConflictAddAll writes every record.
	ConflictAddAll ConflictStrategy = "add_all"
)

func ParseMode(s string) (Mode, error) {
	switch mode := Mode(strings.ToLower(s)); mode {
	case ModeAuto, ModeNew, ModeExisting:
		return mode, nil
	case "":
		return ModeAuto, nil
	}
	return "", fmt.Errorf("unknown import mode %q", s)
}

func ParseConflictStrategy(s string) (ConflictStrategy, error) {
	switch strategy := ConflictStrategy(strings.ToLower(s)); strategy {
	case ConflictSkip, ConflictReplace, ConflictAddAll:
		return strategy, nil
	case "":
		return ConflictSkip, nil
	}
	return "", fmt.Errorf("unknown conflict strategy %q", s)
}

type Importer struct {
	storage zone.ZoneStorage
	autoTTL int
	maxSize int
}

type Option func(*Importer)

// WithAutoTTL sets the TTL used for records exported with TTL 1.
func WithAutoTTL(ttl int) Option {
	return func(i *Importer) { i.autoTTL = ttl }
}

func WithMaxSize(bytes int) Option {
	return func(i *Importer) { i.maxSize = bytes }
}

func New(storage zone.ZoneStorage, options ...Option) *Importer {
	importer := &Importer{
		storage: storage,
		autoTTL: zonefile.DefaultAutoTTL,
		maxSize: DefaultMaxSize,
	}
	for _, fn := range options {
		fn(importer)
	}
	return importer
}

// MaxSize returns the largest accepted zone file in bytes.
func (i *Importer) MaxSize() int {
	return i.maxSize
}

// Preview is a parsed upload ready to be executed.
type Preview struct {
	Origin   string                  `json:"origin" yaml:"origin"`
	Records  []zonefile.ParsedRecord `json:"records" yaml:"records"`
	Warnings []string                `json:"warnings" yaml:"warnings"`
	// SOA records found in the file, which are never imported
	SkippedSOA int `json:"skippedSoa" yaml:"skippedSoa"`
}

// Prepare checks and parses zone file content.
func (i *Importer) Prepare(content string) (*Preview, error) {
	if len(content) > i.maxSize {
		return nil, fmt.Errorf("%w of %s (file is %s)", ErrTooLarge,
			humanize.IBytes(uint64(i.maxSize)), humanize.IBytes(uint64(len(content))))
	}
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmpty
	}

	parsed := zonefile.NewParser(i.autoTTL).Parse(content)
	if parsed.RecordCount() == 0 {
		return nil, ErrNoRecords
	}

	preview := &Preview{
		Origin:   toPunycode(parsed.Origin()),
		Records:  make([]zonefile.ParsedRecord, 0, parsed.RecordCount()),
		Warnings: parsed.Warnings(),
	}
	for _, record := range parsed.Records() {
		if record.Type == "SOA" {
			preview.SkippedSOA++
			continue
		}
		record.Name = toPunycode(record.Name)
		preview.Records = append(preview.Records, record)
	}
	return preview, nil
}

// toPunycode converts internationalized names to their ASCII form and leaves
// everything else as is.
func toPunycode(name string) string {
	if isASCII(name) {
		return name
	}
	ascii, err := idna.ToASCII(name)
	if err != nil {
		slog.Debug("could not convert IDN name", "name", name, "error", err)
		return name
	}
	return ascii
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

type Options struct {
	Mode     Mode
	Conflict ConflictStrategy
	// ZoneName overrides the origin found in the file
	ZoneName string
}

type Result struct {
	ZoneId    string   `json:"zoneId" yaml:"zoneId"`
	Created   bool     `json:"created" yaml:"created"`
	Conflict  string   `json:"conflict" yaml:"conflict"`
	Succeeded int      `json:"succeeded" yaml:"succeeded"`
	Failed    int      `json:"failed" yaml:"failed"`
	Skipped   int      `json:"skipped" yaml:"skipped"`
	Warnings  []string `json:"warnings" yaml:"warnings"`
	Errors    []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Execute writes the previewed records. Records that fail to import are
// counted and reported in the result, they do not abort the import.
func (i *Importer) Execute(ctx context.Context, preview *Preview, options Options) (*Result, error) {
	zoneName := options.ZoneName
	if zoneName == "" {
		zoneName = preview.Origin
	}
	zoneId := zone.CanonicalName(toPunycode(zoneName))
	if zoneId == "" {
		return nil, ErrZoneNameRequired
	}

	exists, err := zone.HasZone(ctx, i.storage, zoneId)
	if err != nil {
		return nil, fmt.Errorf("failed to look up zone: %w", err)
	}
	mode := options.Mode
	if mode == "" || mode == ModeAuto {
		mode = ModeNew
		if exists {
			mode = ModeExisting
		}
	}

	conflict := options.Conflict
	if conflict == "" {
		conflict = ConflictSkip
	}
	result := &Result{ZoneId: zoneId, Warnings: preview.Warnings}

	var existing zone.Zone
	switch mode {
	case ModeNew:
		if exists {
			return nil, fmt.Errorf("%w: %s", ErrZoneExists, zoneId)
		}
		if err := i.storage.AddZone(ctx, zoneId); err != nil {
			return nil, fmt.Errorf("failed to create zone: %w", err)
		}
		result.Created = true
		// New zone: no conflicts possible
		conflict = ConflictAddAll
		slog.Info("created zone for import", "zoneId", zoneId)
	case ModeExisting:
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrZoneNotFound, zoneId)
		}
		existing, err = i.storage.Load(ctx, zoneId)
		if err != nil {
			return nil, fmt.Errorf("failed to load zone: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown import mode %q", mode)
	}
	result.Conflict = string(conflict)

	replaced := make(map[string]bool)
	for _, parsed := range preview.Records {
		row := parsed.Row()
		if !inZone(row.Name, zoneId) {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s: outside of zone %s", row.Name, row.Type, zoneId))
			continue
		}

		switch conflict {
		case ConflictSkip:
			if containsRecord(existing.Records, row) {
				result.Skipped++
				continue
			}
		case ConflictReplace:
			key := zone.CanonicalName(row.Name) + "|" + row.Type
			if !replaced[key] {
				if err := i.deleteRRSet(ctx, &existing, row); err != nil {
					result.Failed++
					result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", row.Name, row.Type, err))
					continue
				}
				replaced[key] = true
			}
		}

		if err := i.storage.Patch(ctx, zoneId, zone.NewRecord(row)); err != nil {
			slog.Warn("failed to import record", "zoneId", zoneId, "name", row.Name, "type", row.Type, "error", err)
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s %s: %v", row.Name, row.Type, err))
			continue
		}
		result.Succeeded++
	}

	slog.Info("imported zone", "zoneId", zoneId, "conflict", conflict,
		"succeeded", result.Succeeded, "failed", result.Failed, "skipped", result.Skipped)
	return result, nil
}

func (i *Importer) deleteRRSet(ctx context.Context, existing *zone.Zone, row zonefile.Record) error {
	for _, record := range existing.Lookup(row.Name, row.Type) {
		if err := i.storage.Delete(ctx, existing.Id, record.Id); err != nil {
			return fmt.Errorf("failed to replace existing record: %w", err)
		}
	}
	return nil
}

func containsRecord(records []zone.DnsRecord, row zonefile.Record) bool {
	for _, record := range records {
		if zone.Same(record.Record, row) {
			return true
		}
	}
	return false
}

func inZone(name, zoneId string) bool {
	name = zone.CanonicalName(name)
	return name == zoneId || strings.HasSuffix(name, "."+zoneId)
}
