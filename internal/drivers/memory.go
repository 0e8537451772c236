package drivers

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/richxcame/ride-dispatch/internal/geo"
	"github.com/richxcame/ride-dispatch/internal/pricing"
	"github.com/richxcame/ride-dispatch/pkg/config"
)

// driverEntry wraps a record with the dirty flags the flush loops consume.
type driverEntry struct {
	record        DriverRecord
	locationDirty bool
	statusDirty   bool
}

// MemoryStore is the in-process StateStore used when Redis is disabled
// and as the read path in every deployment. All lookups are O(1); the
// nearby query is O(cells in the k-ring).
type MemoryStore struct {
	mu        sync.RWMutex
	drivers   map[uuid.UUID]*driverEntry
	userIndex map[uuid.UUID]uuid.UUID
	cellIndex map[string]map[uuid.UUID]struct{}
	online    map[uuid.UUID]struct{}

	statusQueue []StatusWrite
	dirtyCount  int

	resolution int
	maxK       int
	staleness  time.Duration

	updatesProcessed int64
	queries          int64
	queryNanos       int64
	writeFailures    int64
}

// NewMemoryStore creates an empty in-memory driver state store.
func NewMemoryStore(cfg *config.DispatchConfig) *MemoryStore {
	return &MemoryStore{
		drivers:    make(map[uuid.UUID]*driverEntry),
		userIndex:  make(map[uuid.UUID]uuid.UUID),
		cellIndex:  make(map[string]map[uuid.UUID]struct{}),
		online:     make(map[uuid.UUID]struct{}),
		resolution: cfg.H3Resolution,
		maxK:       cfg.MaxKRing,
		staleness:  cfg.HeartbeatStaleness,
	}
}

// RegisterDriver upserts a record and indexes its cell when it has
// coordinates.
func (s *MemoryStore) RegisterDriver(ctx context.Context, record *DriverRecord) error {
	if record.HasCoordinates() {
		cell, err := geo.CellIndex(*record.CurrentLat, *record.CurrentLng, s.resolution)
		if err != nil {
			return err
		}
		record.H3Index = cell
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.drivers[record.ID]; ok && existing.record.H3Index != "" {
		s.removeFromCellLocked(existing.record.H3Index, record.ID)
	}

	entry := &driverEntry{record: *record}
	s.drivers[record.ID] = entry
	s.userIndex[record.UserID] = record.ID

	if record.H3Index != "" {
		s.addToCellLocked(record.H3Index, record.ID)
	}
	if record.IsOnline {
		s.online[record.ID] = struct{}{}
	} else {
		delete(s.online, record.ID)
	}
	s.publishGaugesLocked()
	return nil
}

// UpdateLocation applies a telemetry update. The cell index move
// removes from the old cell before inserting into the new one so a
// concurrent nearby query never sees the driver in two cells.
func (s *MemoryStore) UpdateLocation(ctx context.Context, driverID uuid.UUID, lat, lng float64, heading, speed *float64) (*LocationUpdateResult, error) {
	newCell, err := geo.CellIndex(lat, lng, s.resolution)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.drivers[driverID]
	if !ok {
		return nil, ErrDriverNotFound
	}

	oldCell := entry.record.H3Index
	changed := oldCell != newCell
	if changed {
		if oldCell != "" {
			s.removeFromCellLocked(oldCell, driverID)
		}
		s.addToCellLocked(newCell, driverID)
		cellMovesTotal.WithLabelValues("memory").Inc()
	}

	entry.record.CurrentLat = &lat
	entry.record.CurrentLng = &lng
	entry.record.H3Index = newCell
	entry.record.LastActiveAt = time.Now()
	if !entry.locationDirty {
		entry.locationDirty = true
		s.dirtyCount++
	}

	atomic.AddInt64(&s.updatesProcessed, 1)
	locationUpdatesTotal.WithLabelValues("memory").Inc()
	s.publishGaugesLocked()

	return &LocationUpdateResult{Updated: true, H3Changed: changed, NewCell: newCell}, nil
}

// SetOnlineStatus toggles online-set membership and queues a status write.
func (s *MemoryStore) SetOnlineStatus(ctx context.Context, driverID uuid.UUID, isOnline bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.drivers[driverID]
	if !ok {
		return ErrDriverNotFound
	}

	entry.record.IsOnline = isOnline
	entry.record.LastActiveAt = time.Now()
	entry.statusDirty = true

	if isOnline {
		s.online[driverID] = struct{}{}
	} else {
		delete(s.online, driverID)
	}

	s.statusQueue = append(s.statusQueue, StatusWrite{
		DriverID:  driverID,
		IsOnline:  isOnline,
		ChangedAt: time.Now(),
	})
	s.publishGaugesLocked()
	return nil
}

// FindNearbyDrivers runs the progressive k-ring expansion: the ring
// grows until the candidate union is non-empty, then candidates are
// filtered and sorted by distance.
func (s *MemoryStore) FindNearbyDrivers(ctx context.Context, lat, lng, maxRadiusKm float64, vehicleType *pricing.VehicleType) ([]*NearbyDriver, error) {
	start := time.Now()
	defer func() {
		elapsed := time.Since(start)
		atomic.AddInt64(&s.queries, 1)
		atomic.AddInt64(&s.queryNanos, int64(elapsed))
		nearbyQueriesTotal.WithLabelValues("memory").Inc()
		nearbyQueryDuration.WithLabelValues("memory").Observe(elapsed.Seconds())
	}()

	origin, err := geo.LatLngToCell(lat, lng, s.resolution)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates map[uuid.UUID]struct{}
	for k := 1; k <= s.maxK; k++ {
		cells, err := geo.KRingStrings(origin, k)
		if err != nil {
			return nil, err
		}

		candidates = make(map[uuid.UUID]struct{})
		for _, cell := range cells {
			for id := range s.cellIndex[cell] {
				candidates[id] = struct{}{}
			}
		}
		if len(candidates) > 0 {
			break
		}
	}

	now := time.Now()
	result := make([]*NearbyDriver, 0, len(candidates))
	for id := range candidates {
		entry, ok := s.drivers[id]
		if !ok {
			continue
		}
		rec := entry.record

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

// GetDriver returns a copy of the record.
func (s *MemoryStore) GetDriver(ctx context.Context, driverID uuid.UUID) (*DriverRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.drivers[driverID]
	if !ok {
		return nil, ErrDriverNotFound
	}
	rec := entry.record
	return &rec, nil
}

// GetDriverByUserID resolves through the userId index.
func (s *MemoryStore) GetDriverByUserID(ctx context.Context, userID uuid.UUID) (*DriverRecord, error) {
	s.mu.RLock()
	driverID, ok := s.userIndex[userID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrDriverNotFound
	}
	return s.GetDriver(ctx, driverID)
}

// ResolveDriverID accepts a driver id or a user id.
func (s *MemoryStore) ResolveDriverID(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.drivers[id]; ok {
		return id, nil
	}
	if driverID, ok := s.userIndex[id]; ok {
		return driverID, nil
	}
	return uuid.Nil, ErrDriverNotFound
}

// HydrateFromStore bulk-loads records on startup.
func (s *MemoryStore) HydrateFromStore(ctx context.Context, records []*DriverRecord) error {
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

// DrainDirtyLocations snapshots and clears dirty coordinates, one
// write per driver regardless of how many updates arrived.
func (s *MemoryStore) DrainDirtyLocations(ctx context.Context) []LocationWrite {
	s.mu.Lock()
	defer s.mu.Unlock()

	var writes []LocationWrite
	for id, entry := range s.drivers {
		if !entry.locationDirty || !entry.record.HasCoordinates() {
			continue
		}
		writes = append(writes, LocationWrite{
			DriverID:     id,
			Lat:          *entry.record.CurrentLat,
			Lng:          *entry.record.CurrentLng,
			H3Index:      entry.record.H3Index,
			LastActiveAt: entry.record.LastActiveAt,
		})
		entry.locationDirty = false
		s.dirtyCount--
	}
	s.publishGaugesLocked()
	return writes
}

// DrainStatusWrites drains the pending status queue.
func (s *MemoryStore) DrainStatusWrites(ctx context.Context) []StatusWrite {
	s.mu.Lock()
	defer s.mu.Unlock()

	writes := s.statusQueue
	s.statusQueue = nil
	for _, w := range writes {
		if entry, ok := s.drivers[w.DriverID]; ok {
			entry.statusDirty = false
		}
	}
	s.publishGaugesLocked()
	return writes
}

// RequeueStatusWrites puts failed writes back at the front of the queue.
func (s *MemoryStore) RequeueStatusWrites(ctx context.Context, writes []StatusWrite) {
	if len(writes) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusQueue = append(writes, s.statusQueue...)
	s.publishGaugesLocked()
}

// RecordWriteFailure counts a dropped persistent write.
func (s *MemoryStore) RecordWriteFailure(kind string) {
	atomic.AddInt64(&s.writeFailures, 1)
	flushFailuresTotal.WithLabelValues("memory", kind).Inc()
}

// GetMetrics returns the counter snapshot.
func (s *MemoryStore) GetMetrics(ctx context.Context) StoreMetrics {
	s.mu.RLock()
	trackedCells := len(s.cellIndex)
	queued := len(s.statusQueue) + s.dirtyCount
	s.mu.RUnlock()

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

func (s *MemoryStore) addToCellLocked(cell string, driverID uuid.UUID) {
	set, ok := s.cellIndex[cell]
	if !ok {
		set = make(map[uuid.UUID]struct{})
		s.cellIndex[cell] = set
	}
	set[driverID] = struct{}{}
}

func (s *MemoryStore) removeFromCellLocked(cell string, driverID uuid.UUID) {
	if set, ok := s.cellIndex[cell]; ok {
		delete(set, driverID)
		if len(set) == 0 {
			delete(s.cellIndex, cell)
		}
	}
}

func (s *MemoryStore) publishGaugesLocked() {
	trackedCellsGauge.WithLabelValues("memory").Set(float64(len(s.cellIndex)))
	onlineDriversGauge.WithLabelValues("memory").Set(float64(len(s.online)))
	queuedWritesGauge.WithLabelValues("memory").Set(float64(len(s.statusQueue) + s.dirtyCount))
}
