// Package memory tracks native OpenCV allocations against a byte budget and
// implements the resource guard the stylization chain leans on when a level
// hits memory pressure.
package memory

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"gocv.io/x/gocv"

	"ghibli-stylizer/internal/logger"
)

const defaultMaxMemory = 2 * 1024 * 1024 * 1024

// Manager accounts for every tracked Mat, refuses allocations that would
// break the budget and keeps per-stage duration observations. It satisfies
// the stylization chain's ResourceGuard contract.
type Manager struct {
	mu           sync.RWMutex
	logger       logger.Logger
	maxMemory    int64
	usedMemory   int64
	allocCount   int64
	releaseCount int64
	nextID       uint64
	activeMats   map[uint64]*matInfo
	stageTimes   map[string]time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
}

type matInfo struct {
	tag       string
	size      int64
	timestamp time.Time
}

// TrackedMat pairs a Mat with its accounting entry.
type TrackedMat struct {
	gocv.Mat
	id   uint64
	size int64
}

// NewManager starts a manager with the given budget in bytes; values at or
// below zero fall back to 2 GiB. A monitoring goroutine runs until Shutdown.
func NewManager(log logger.Logger, maxMemory int64) *Manager {
	if maxMemory <= 0 {
		maxMemory = defaultMaxMemory
	}

	ctx, cancel := context.WithCancel(context.Background())
	manager := &Manager{
		logger:     log,
		maxMemory:  maxMemory,
		activeMats: make(map[uint64]*matInfo),
		stageTimes: make(map[string]time.Duration),
		ctx:        ctx,
		cancel:     cancel,
	}

	go manager.monitorMemory()
	return manager
}

// GetMat allocates a tracked Mat. Allocations that would exceed the budget
// fail after a collection pass; the error message is recognizable as a
// resource-exhaustion condition.
func (m *Manager) GetMat(rows, cols int, matType gocv.MatType, tag string) (*TrackedMat, error) {
	size := int64(rows) * int64(cols) * int64(matTypeSize(matType))

	m.mu.Lock()
	if m.usedMemory+size > m.maxMemory {
		used := m.usedMemory
		m.mu.Unlock()
		runtime.GC()
		return nil, fmt.Errorf("insufficient memory for %s: would use %d bytes, limit is %d",
			tag, used+size, m.maxMemory)
	}
	m.mu.Unlock()

	mat := gocv.NewMatWithSize(rows, cols, matType)
	return m.adopt(mat, size, tag), nil
}

// AdoptMat registers a Mat produced by an OpenCV operation so it counts
// toward the budget until released.
func (m *Manager) AdoptMat(mat gocv.Mat, tag string) *TrackedMat {
	size := int64(mat.Total()) * int64(mat.ElemSize())
	return m.adopt(mat, size, tag)
}

func (m *Manager) adopt(mat gocv.Mat, size int64, tag string) *TrackedMat {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	m.usedMemory += size
	m.allocCount++
	m.activeMats[m.nextID] = &matInfo{tag: tag, size: size, timestamp: time.Now()}

	return &TrackedMat{Mat: mat, id: m.nextID, size: size}
}

// ReleaseMat closes the Mat and returns its bytes to the budget. Safe to
// call with nil and idempotent per tracked entry.
func (m *Manager) ReleaseMat(t *TrackedMat) {
	if t == nil {
		return
	}

	m.mu.Lock()
	if info, exists := m.activeMats[t.id]; exists {
		delete(m.activeMats, t.id)
		m.usedMemory -= info.size
		m.releaseCount++
	}
	m.mu.Unlock()

	t.Mat.Close()
}

// Release drops what can be dropped without touching Mats still in use: it
// forces a collection pass and logs the pressure state. Called by the
// fallback chain when a level fails with resource exhaustion.
func (m *Manager) Release() {
	runtime.GC()

	alloc, released, used := m.GetStats()
	m.logger.Warning("MemoryManager", "Forced collection pass", map[string]interface{}{
		"allocations": alloc,
		"releases":    released,
		"used_bytes":  used,
		"active_mats": m.ActiveMatCount(),
	})
}

// Reset closes every tracked Mat and zeroes the accounting. Concurrent
// holders of tracked Mats must be drained first; this is a recovery action,
// not routine cleanup.
func (m *Manager) Reset() {
	m.mu.Lock()
	count := len(m.activeMats)
	for id, info := range m.activeMats {
		m.logger.Warning("MemoryManager", "Releasing unreturned Mat", map[string]interface{}{
			"tag":  info.tag,
			"size": info.size,
		})
		delete(m.activeMats, id)
	}
	m.usedMemory = 0
	m.mu.Unlock()

	runtime.GC()
	m.logger.Info("MemoryManager", "Reset completed", map[string]interface{}{
		"mats_dropped": count,
	})
}

// RecordStageDuration keeps the latest wall-clock observation for a
// pipeline stage. Observability only; nothing reads these to make
// decisions.
func (m *Manager) RecordStageDuration(stage string, d time.Duration) {
	m.mu.Lock()
	m.stageTimes[stage] = d
	m.mu.Unlock()

	m.logger.Debug("MemoryManager", "Stage duration recorded", map[string]interface{}{
		"stage":       stage,
		"duration_ms": d.Milliseconds(),
	})
}

// StageDurations returns a copy of the last observed duration per stage.
func (m *Manager) StageDurations() map[string]time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]time.Duration, len(m.stageTimes))
	for stage, d := range m.stageTimes {
		out[stage] = d
	}
	return out
}

func (m *Manager) UsedMemory() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.usedMemory
}

func (m *Manager) GetStats() (allocCount, releaseCount, usedMemory int64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.allocCount, m.releaseCount, m.usedMemory
}

func (m *Manager) ActiveMatCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.activeMats)
}

func (m *Manager) monitorMemory() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.performMonitoringCheck()
		case <-m.ctx.Done():
			return
		}
	}
}

func (m *Manager) performMonitoringCheck() {
	alloc, released, used := m.GetStats()
	activeCount := m.ActiveMatCount()

	m.logger.Debug("MemoryManager", "memory statistics", map[string]interface{}{
		"allocations": alloc,
		"releases":    released,
		"used_bytes":  used,
		"active_mats": activeCount,
	})

	if activeCount > 50 {
		m.logOldestMats(5)
	}

	if used > m.maxMemory*8/10 {
		runtime.GC()
	}
}

func (m *Manager) logOldestMats(count int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.activeMats) == 0 {
		return
	}

	type matAge struct {
		info *matInfo
		age  time.Duration
	}

	ages := make([]matAge, 0, len(m.activeMats))
	now := time.Now()

	for _, info := range m.activeMats {
		ages = append(ages, matAge{info: info, age: now.Sub(info.timestamp)})
	}

	for i := 0; i < len(ages)-1; i++ {
		for j := i + 1; j < len(ages); j++ {
			if ages[i].age < ages[j].age {
				ages[i], ages[j] = ages[j], ages[i]
			}
		}
	}

	limit := count
	if len(ages) < limit {
		limit = len(ages)
	}

	for i := 0; i < limit; i++ {
		mat := ages[i]
		m.logger.Warning("MemoryManager", "long-lived Mat detected", map[string]interface{}{
			"tag":  mat.info.tag,
			"size": mat.info.size,
			"age":  mat.age.String(),
		})
	}
}

// Shutdown stops the monitor and drops all remaining accounting.
func (m *Manager) Shutdown() {
	m.cancel()
	m.Reset()
}

func matTypeSize(matType gocv.MatType) int {
	switch matType {
	case gocv.MatTypeCV8UC1:
		return 1
	case gocv.MatTypeCV8UC3:
		return 3
	case gocv.MatTypeCV8UC4:
		return 4
	case gocv.MatTypeCV16UC1:
		return 2
	case gocv.MatTypeCV16UC3:
		return 6
	case gocv.MatTypeCV16UC4:
		return 8
	case gocv.MatTypeCV32FC1:
		return 4
	case gocv.MatTypeCV32FC3:
		return 12
	case gocv.MatTypeCV32FC4:
		return 16
	default:
		return 1
	}
}
