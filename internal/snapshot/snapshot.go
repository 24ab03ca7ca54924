package snapshot

import (
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/proxy-batch-checker/internal/report"
	"github.com/proxy-batch-checker/internal/storage"
	"github.com/proxy-batch-checker/internal/types"
	log "github.com/sirupsen/logrus"
)

// maxSnapshotAge is how old a stored list may be and still be served after a restart.
const maxSnapshotAge = time.Hour

type Manager struct {
	current   atomic.Value // stores *types.Snapshot
	storage   storage.Storage
	persistMu sync.Mutex
	rrIndex   atomic.Uint64 // Round-robin index

	persistInterval time.Duration
	stopPersist     chan struct{}
	closeOnce       sync.Once
	pending         sync.WaitGroup
}

func NewManager(store storage.Storage, persistIntervalSeconds int) *Manager {
	m := &Manager{
		storage:         store,
		persistInterval: time.Duration(persistIntervalSeconds) * time.Second,
		stopPersist:     make(chan struct{}),
	}

	// Initialize with empty snapshot
	m.current.Store(&types.Snapshot{
		Working: []string{},
		Updated: time.Now(),
	})

	// Start periodic persistence
	if persistIntervalSeconds > 0 && store != nil {
		go m.periodicPersist()
	}

	return m
}

// Update replaces the current list with the working proxies of batch.
func (m *Manager) Update(scheme string, batch *report.BatchReport, duration time.Duration) *types.Snapshot {
	counts := batch.Counts()

	successPercent := 0.0
	if counts.Total > 0 {
		successPercent = float64(counts.Success) / float64(counts.Total) * 100.0
	}

	snapshot := &types.Snapshot{
		Working: batch.WorkingProxies(),
		Stats: types.Stats{
			Scheme:         scheme,
			Total:          counts.Total,
			Success:        counts.Success,
			Fail:           counts.Fail,
			Malformed:      counts.Malformed,
			SuccessPercent: successPercent,
			DurationMs:     duration.Milliseconds(),
			LastCheckTime:  time.Now(),
		},
		Updated: time.Now(),
	}

	m.current.Store(snapshot)
	log.Infof("Snapshot updated: %d working proxies", len(snapshot.Working))

	// Trigger async persistence
	m.pending.Add(1)
	go func() {
		defer m.pending.Done()
		m.persist(snapshot)
	}()

	return snapshot
}

// Get returns the current snapshot (atomic read)
func (m *Manager) Get() *types.Snapshot {
	return m.current.Load().(*types.Snapshot)
}

// GetProxy returns a single proxy using round-robin
func (m *Manager) GetProxy() (string, bool) {
	snapshot := m.Get()
	if len(snapshot.Working) == 0 {
		return "", false
	}

	idx := (m.rrIndex.Add(1) - 1) % uint64(len(snapshot.Working))
	return snapshot.Working[idx], true
}

// GetProxies returns N proxies (round-robin or random)
func (m *Manager) GetProxies(n int) []string {
	snapshot := m.Get()
	total := len(snapshot.Working)

	if total == 0 {
		return []string{}
	}

	if n <= 0 || n > total {
		n = total
	}

	result := make([]string, n)

	// Use round-robin for small requests
	if n <= 10 {
		startIdx := int((m.rrIndex.Add(uint64(n)) - uint64(n)) % uint64(total))
		for i := 0; i < n; i++ {
			result[i] = snapshot.Working[(startIdx+i)%total]
		}
		return result
	}

	// Random sampling for larger requests
	indices := rand.Perm(total)
	for i := 0; i < n; i++ {
		result[i] = snapshot.Working[indices[i]]
	}

	return result
}

// GetAll returns a copy of every working proxy
func (m *Manager) GetAll() []string {
	snapshot := m.Get()
	proxies := make([]string, len(snapshot.Working))
	copy(proxies, snapshot.Working)
	return proxies
}

// GetStats returns current statistics
func (m *Manager) GetStats() types.Stats {
	return m.Get().Stats
}

// persist saves snapshot to storage
func (m *Manager) persist(snapshot *types.Snapshot) {
	if m.storage == nil {
		return
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	if err := m.storage.Save(snapshot); err != nil {
		log.Errorf("Failed to persist snapshot: %v", err)
	} else {
		log.Debugf("Snapshot persisted: %d proxies", len(snapshot.Working))
	}
}

// periodicPersist saves snapshot at regular intervals
func (m *Manager) periodicPersist() {
	ticker := time.NewTicker(m.persistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.persist(m.Get())
		case <-m.stopPersist:
			return
		}
	}
}

// LoadFromStorage restores the last saved list unless it is stale.
func (m *Manager) LoadFromStorage() error {
	if m.storage == nil {
		return nil
	}

	snapshot, err := m.storage.Load()
	if err != nil {
		return err
	}

	if snapshot != nil && len(snapshot.Working) > 0 {
		if time.Since(snapshot.Updated) <= maxSnapshotAge {
			m.current.Store(snapshot)
			log.Infof("Loaded %d working proxies from storage", len(snapshot.Working))
			return nil
		}
		log.Infof("Stored snapshot from %s is stale, ignoring", snapshot.Updated.Format(time.RFC3339))
		return nil
	}

	log.Info("No working proxies in storage")
	return nil
}

// Close stops background tasks and persists the current snapshot once more.
func (m *Manager) Close() {
	m.closeOnce.Do(func() {
		close(m.stopPersist)
		m.pending.Wait()
		m.persist(m.Get())
	})
}
