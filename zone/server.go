package zone

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const refreshInterval = 5 * time.Second

type ZoneServer struct {
	context context.Context

	primary  ZoneStorage
	fallback ZoneStorage

	ZoneLock      sync.RWMutex
	ZoneIds       []string
	Zones         map[string]*Zone
	onZoneUpdated func(zoneId string, zone *Zone)

	refreshTicker *time.Ticker
}

// Refresh reloads changed zones from primary storage.
func (s *ZoneServer) Refresh() error {
	return s.loadZones(false)
}

func (s *ZoneServer) loadZones(fallback bool) error {
	ctx, cancelFunc := context.WithTimeout(s.context, 10*time.Second)
	defer cancelFunc()

	storage := s.primary
	if fallback {
		storage = s.fallback
	}
	if storage == nil {
		return errors.New("no zone storage configured")
	}

	// Load zone ids
	zoneIds, err := storage.ListZones(ctx)
	if err != nil {
		return err
	}
	s.ZoneLock.Lock()
	oldZoneIds := s.ZoneIds
	s.ZoneIds = zoneIds
	s.ZoneLock.Unlock()

	// Update the loaded zones
	for _, zoneId := range zoneIds {
		s.ZoneLock.RLock()
		loaded := s.Zones[zoneId]
		s.ZoneLock.RUnlock()

		current, err := IsCurrent(ctx, storage, loaded)
		if err != nil {
			return err
		}
		if current {
			continue
		}

		// Newer zone available
		zone, err := storage.Load(ctx, zoneId)
		if err != nil {
			return err
		}
		if fallback {
			// Whatever primary has later must replace this copy
			zone.LastUpdated = time.Unix(0, 0)
		} else if s.fallback != nil {
			err = InternalTransfer(ctx, zone, s.fallback)
			if err != nil {
				slog.Warn("failed to mirror zone to fallback", "zoneId", zoneId, "error", err)
			}
		}

		s.ZoneLock.Lock()
		s.Zones[zoneId] = &zone
		// Notify listener
		if s.onZoneUpdated != nil {
			s.onZoneUpdated(zoneId, &zone)
		}
		s.ZoneLock.Unlock()
		slog.Info("loaded zone", "zoneId", zoneId, "records", len(zone.Records), "fallback", fallback)
	}

	// Check if we removed any zones and call listener for them
	for _, zoneId := range oldZoneIds {
		if slices.Contains(zoneIds, zoneId) {
			continue
		}
		s.ZoneLock.Lock()
		delete(s.Zones, zoneId)
		if s.onZoneUpdated != nil {
			s.onZoneUpdated(zoneId, nil)
		}
		s.ZoneLock.Unlock()
		slog.Info("removed zone", "zoneId", zoneId)
	}

	if !fallback && s.fallback != nil {
		if err := s.pruneFallback(ctx, zoneIds); err != nil {
			slog.Warn("failed to prune fallback storage", "error", err)
		}
	}
	return nil
}

// pruneFallback drops fallback zones that primary no longer has.
func (s *ZoneServer) pruneFallback(ctx context.Context, zoneIds []string) error {
	stored, err := s.fallback.ListZones(ctx)
	if err != nil {
		return err
	}
	for _, zoneId := range stored {
		if slices.Contains(zoneIds, zoneId) {
			continue
		}
		err := s.fallback.DeleteZone(ctx, zoneId)
		if err != nil && !errors.Is(err, ErrZoneNotFound) {
			return fmt.Errorf("failed to delete zone %s: %w", zoneId, err)
		}
	}
	return nil
}

func (s *ZoneServer) zoneRefresher() {
	for {
		select {
		case <-s.refreshTicker.C:
			err := s.Refresh()
			if err != nil {
				slog.Error("failed to refresh zones from primary, serving stale data!", "error", err)
			}
		case <-s.context.Done():
			s.refreshTicker.Stop()
			return
		}
	}
}

func (s *ZoneServer) Close() {
	s.refreshTicker.Stop()
}

// NewZoneServer loads all zones, from fallback if primary fails, and keeps
// refreshing them from primary until ctx is done. Fallback may be nil.
func NewZoneServer(ctx context.Context, primary ZoneStorage, fallback ZoneStorage,
	onZoneUpdated func(zoneId string, zone *Zone)) *ZoneServer {
	server := &ZoneServer{
		ZoneIds:       make([]string, 0),
		context:       ctx,
		primary:       primary,
		fallback:      fallback,
		Zones:         make(map[string]*Zone),
		onZoneUpdated: onZoneUpdated,
		refreshTicker: time.NewTicker(refreshInterval),
	}

	// Initial zone load
	slog.Info("loading zones from primary")
	err := server.loadZones(false)
	if err != nil {
		slog.Error("failed to load zones from primary", "error", err)
		if fallback != nil {
			err = server.loadZones(true)
			if err != nil {
				slog.Error("failed to load zones from fallback", "error", err)
			}
		}
	}
	if len(server.Zones) == 0 {
		slog.Warn("no DNS zones loaded")
	}

	go server.zoneRefresher()

	return server
}
