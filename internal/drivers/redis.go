package drivers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/internal/geo"
	"github.com/richxcame/ride-dispatch/internal/pricing"
	"github.com/richxcame/ride-dispatch/pkg/config"
	redisClient "github.com/richxcame/ride-dispatch/pkg/redis"
)

const (
	driverKeyPrefix = "dispatch:driver:"
	userIndexPrefix = "dispatch:driver:user:"
	cellSetPrefix   = "dispatch:cell:"
	onlineSetKey    = "dispatch:drivers:online"
	driverRecordTTL = 24 * time.Hour
	userIndexRecTTL = 24 * time.Hour
)

// RedisStore backs the StateStore on a shared key-value store so every
// process instance sees the same driver index. Records live as JSON
// values; the cell index is one set per H3 cell; cell moves run as a
// single pipelined batch. Dirty tracking for the persistent flush is
// process-local: the instance that received the telemetry flushes it.
type RedisStore struct {
	client *redisClient.Client

	mu          sync.Mutex
	dirty       map[uuid.UUID]LocationWrite
	statusQueue []StatusWrite
	cellsSeen   map[string]struct{}

	resolution int
	maxK       int
	staleness  time.Duration

	updatesProcessed int64
	queries          int64
	queryNanos       int64
	writeFailures    int64
}

// NewRedisStore creates a Redis-backed driver state store.
func NewRedisStore(client *redisClient.Client, cfg *config.DispatchConfig) *RedisStore {
	return &RedisStore{
		client:     client,
		dirty:      make(map[uuid.UUID]LocationWrite),
		cellsSeen:  make(map[string]struct{}),
		resolution: cfg.H3Resolution,
		maxK:       cfg.MaxKRing,
		staleness:  cfg.HeartbeatStaleness,
	}
}

func driverKey(id uuid.UUID) string { return driverKeyPrefix + id.String() }
func userKey(id uuid.UUID) string   { return userIndexPrefix + id.String() }
func cellKey(cell string) string    { return cellSetPrefix + cell }

// RegisterDriver upserts the record and its indexes.
func (s *RedisStore) RegisterDriver(ctx context.Context, record *DriverRecord) error {
	var oldCell string
	if existing, err := s.loadRecord(ctx, record.ID); err == nil {
		oldCell = existing.H3Index
	}

	if record.HasCoordinates() {
		cell, err := geo.CellIndex(*record.CurrentLat, *record.CurrentLng, s.resolution)
		if err != nil {
			return err
		}
		record.H3Index = cell
	}

	if err := s.saveRecord(ctx, record); err != nil {
		return err
	}
	if err := s.client.SetWithExpiration(ctx, userKey(record.UserID), record.ID.String(), userIndexRecTTL); err != nil {
		return fmt.Errorf("index driver by user: %w", err)
	}

	if record.H3Index != "" && record.H3Index != oldCell {
		if err := s.moveCell(ctx, oldCell, record.H3Index, record.ID); err != nil {
			return err
		}
	}

	if record.IsOnline {
		if err := s.client.SetAdd(ctx, onlineSetKey, record.ID.String()); err != nil {
			return fmt.Errorf("add to online set: %w", err)
		}
	} else if err := s.client.SetRemove(ctx, onlineSetKey, record.ID.String()); err != nil {
		return fmt.Errorf("remove from online set: %w", err)
	}
	return nil
}

// UpdateLocation applies a telemetry update through Redis.
func (s *RedisStore) UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lng float64, heading, speed *float64) (*LocationUpdateResult, error) {
	newCell, err := geo.CellIndex(lat, lng, s.resolution)
	if err != nil {
		return nil, err
	}

	record, err := s.loadRecord(ctx, driverID)
	if err != nil {
		return nil, err
	}

	oldCell := record.H3Index
	changed := oldCell != newCell

	record.CurrentLat = &lat
	record.CurrentLng = &lng
	record.H3Index = newCell
	record.LastActiveAt = time.Now()

	if err := s.saveRecord(ctx, record); err != nil {
		return nil, err
	}
	if changed {
		if err := s.moveCell(ctx, oldCell, newCell, driverID); err != nil {
			return nil, err
		}
		cellMovesTotal.WithLabelValues("redis").Inc()
	}

	s.mu.Lock()
	s.dirty[driverID] = LocationWrite{
		DriverID:     driverID,
		Lat:          lat,
		Lng:          lng,
		H3Index:      newCell,
		LastActiveAt: record.LastActiveAt,
	}
	s.publishGaugesLocked()
	s.mu.Unlock()

	atomic.AddInt64(&s.updatesProcessed, 1)
	locationUpdatesTotal.WithLabelValues("redis").Inc()

	return &LocationUpdateResult{Updated: true, H3Changed: changed, NewCell: newCell}, nil
}

// SetOnlineStatus toggles online-set membership and queues a status write.
func (s *RedisStore) SetOnlineStatus(ctx context.Context, driverID uuid.UUID, isOnline bool) error {
	record, err := s.loadRecord(ctx, driverID)
	if err != nil {
		return err
	}

	record.IsOnline = isOnline
	record.LastActiveAt = time.Now()
	if err := s.saveRecord(ctx, record); err != nil {
		return err
	}

	if isOnline {
		if err := s.client.SetAdd(ctx, onlineSetKey, driverID.String()); err != nil {
			return fmt.Errorf("add to online set: %w", err)
		}
	} else if err := s.client.SetRemove(ctx, onlineSetKey, driverID.String()); err != nil {
		return fmt.Errorf("remove from online set: %w", err)
	}

	s.mu.Lock()
	s.statusQueue = append(s.statusQueue, StatusWrite{
		DriverID:  driverID,
		IsOnline:  isOnline,
		ChangedAt: time.Now(),
	})
	s.publishGaugesLocked()
	s.mu.Unlock()
	return nil
}

// FindNearbyDrivers runs the progressive k-ring search against the
// shared cell sets, then loads candidate records in one MGET.
func (s *RedisStore) FindNearbyDrivers(ctx context.Context, lat, lng, maxRadiusKm float64, vehicleType *pricing.VehicleType) ([]*NearbyDriver, error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		atomic.AddInt64(&s.queries, 1)
		atomic.AddInt64(&s.queryNanos, int64(elapsed))
		nearbyQueriesTotal.WithLabelValues("redis").Inc()
		nearbyQueryDuration.WithLabelValues("redis").Observe(elapsed.Seconds())
	}()

	origin, err := geo.LatLngToCell(lat, lng, s.resolution)
	if err != nil {
		return nil, err
	}

	candidates := make(map[string]struct{})
	for k := 1; k <= s.maxK; k++ {
		cells, err := geo.KRingStrings(origin, k)
		if err != nil {
			return nil, err
		}

		candidates = make(map[string]struct{})
		for _, cell := range cells {
			members, err := s.client.SetMembers(ctx, cellKey(cell))
			if err != nil {
				return nil, fmt.Errorf("read cell set: %w", err)
			}
			for _, m := range members {
				candidates[m] = struct{}{}
			}
		}
		if len(candidates) > 0 {
			break
		}
	}

	if len(candidates) == 0 {
		return []*NearbyDriver{}, nil
	}

	keys := make([]string, 0, len(candidates))
	for id := range candidates {
		keys = append(keys, driverKeyPrefix+id)
	}
	values, err := s.client.MultiGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("load candidate records: %w", err)
	}

	now := time.Now()
	result := make([]*NearbyDriver, 0, len(values))
	for _, raw := range values {
		if raw == "" {
			continue
		}
		var rec DriverRecord
		if err := json.Unmarshal([]byte(raw), &rec); err != nil {
			continue
		}

		if !rec.IsOnline || !rec.IsActive || !rec.HasCoordinates() {
			continue
		}
		if now.Sub(rec.LastActiveAt) > s.staleness {
			continue
		}
		if vehicleType != nil && rec.VehicleType != *vehicleType {
			continue
		}

		distance := geo.RoundKm(geo.HaversineKm(lat, lng, *rec.CurrentLat, *rec.CurrentLng))
		if distance > maxRadiusKm {
			continue
		}

		result = append(result, &NearbyDriver{Driver: rec, DistanceKm: distance})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].DistanceKm < result[j].DistanceKm
	})
	return result, nil
}

// GetDriver loads a record by driver id.
func (s *RedisStore) GetDriver(ctx context.Context, driverID uuid.UUID) (*DriverRecord, error) {
	return s.loadRecord(ctx, driverID)
}

// GetDriverByUserID resolves through the user index key.
func (s *RedisStore) GetDriverByUserID(ctx context.Context, userID uuid.UUID) (*DriverRecord, error) {
	raw, err := s.client.GetString(ctx, userKey(userID))
	if err != nil {
		return nil, ErrDriverNotFound
	}
	driverID, err := uuid.Parse(raw)
	if err != nil {
		return nil, ErrDriverNotFound
	}
	return s.loadRecord(ctx, driverID)
}

// ResolveDriverID accepts a driver id or a user id.
func (s *RedisStore) ResolveDriverID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	if _, err := s.loadRecord(ctx, id); err == nil {
		return id, nil
	}
	if rec, err := s.GetDriverByUserID(ctx, id); err == nil {
		return rec.ID, nil
	}
	return uuid.Nil, ErrDriverNotFound
}

// HydrateFromStore bulk-loads records on startup.
func (s *RedisStore) HydrateFromStore(ctx context.Context, records []*DriverRecord) error {
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.RegisterDriver(ctx, record); err != nil {
			return err
		}
	}
	return nil
}

// DrainDirtyLocations snapshots and clears the local dirty map.
func (s *RedisStore) DrainDirtyLocations(ctx context.Context) []LocationWrite {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.dirty) == 0 {
		return nil
	}
	writes := make([]LocationWrite, 0, len(s.dirty))
	for _, w := range s.dirty {
		writes = append(writes, w)
	}
	s.dirty = make(map[uuid.UUID]LocationWrite)
	s.publishGaugesLocked()
	return writes
}

// DrainStatusWrites drains the local status queue.
func (s *RedisStore) DrainStatusWrites(ctx context.Context) []StatusWrite {
	s.mu.Lock()
	defer s.mu.Unlock()

	writes := s.statusQueue
	s.statusQueue = nil
	s.publishGaugesLocked()
	return writes
}

// RequeueStatusWrites puts failed writes back at the front of the queue.
func (s *RedisStore) RequeueStatusWrites(ctx context.Context, writes []StatusWrite) {
	if len(writes) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusQueue = append(writes, s.statusQueue...)
	s.publishGaugesLocked()
}

// RecordWriteFailure counts a dropped persistent write.
func (s *RedisStore) RecordWriteFailure(kind string) {
	atomic.AddInt64(&s.writeFailures, 1)
	flushFailuresTotal.WithLabelValues("redis", kind).Inc()
}

// GetMetrics returns the per-process counter snapshot.
func (s *RedisStore) GetMetrics(ctx context.Context) StoreMetrics {
	s.mu.Lock()
	trackedCells := len(s.cellsSeen)
	queued := len(s.statusQueue) + len(s.dirty)
	s.mu.Unlock()

	queries := atomic.LoadInt64(&s.queries)
	var avgLatency float64
	if queries > 0 {
		avgLatency = float64(atomic.LoadInt64(&s.queryNanos)) / float64(queries) / 1e6
	}

	return StoreMetrics{
		UpdatesProcessed:  atomic.LoadInt64(&s.updatesProcessed),
		Queries:           queries,
		AvgQueryLatencyMs: avgLatency,
		TrackedCells:      trackedCells,
		QueuedWrites:      queued,
		WriteFailures:     atomic.LoadInt64(&s.writeFailures),
	}
}

func (s *RedisStore) loadRecord(ctx context.Context, driverID uuid.UUID) (*DriverRecord, error) {
	raw, err := s.client.GetString(ctx, driverKey(driverID))
	if err != nil {
		return nil, ErrDriverNotFound
	}
	var rec DriverRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, fmt.Errorf("unmarshal driver record: %w", err)
	}
	return &rec, nil
}

func (s *RedisStore) saveRecord(ctx context.Context, record *DriverRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal driver record: %w", err)
	}
	if err := s.client.SetWithExpiration(ctx, driverKey(record.ID), data, driverRecordTTL); err != nil {
		return fmt.Errorf("save driver record: %w", err)
	}
	return nil
}

// moveCell removes from the old cell set and inserts into the new one
// in a single pipelined batch.
func (s *RedisStore) moveCell(ctx context.Context, oldCell, newCell string, driverID uuid.UUID) error {
	var fromKey string
	if oldCell != "" {
		fromKey = cellKey(oldCell)
	}
	if err := s.client.MoveSetMember(ctx, fromKey, cellKey(newCell), driverID.String()); err != nil {
		return fmt.Errorf("move cell membership: %w", err)
	}

	// Approximate per-process view; other instances may still hold
	// drivers in cells this one has never written.
	s.mu.Lock()
	s.cellsSeen[newCell] = struct{}{}
	s.mu.Unlock()
	return nil
}

func (s *RedisStore) publishGaugesLocked() {
	trackedCellsGauge.WithLabelValues("redis").Set(float64(len(s.cellsSeen)))
	queuedWritesGauge.WithLabelValues("redis").Set(float64(len(s.statusQueue) + len(s.dirty)))
}
