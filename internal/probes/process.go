// Package probes provides the remote-control detection signals and the
// engine that combines them.
package probes

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/shirou/gopsutil/v3/process"

	"github.com/user/nsmon/internal/util"
)

// KnownProcesses is the allow-list of executables that indicate an active
// NetSupport client or tutor on the host.
var KnownProcesses = []string{
	"pcinssvc.exe",
	"student.exe",
	"tutor.exe",
	"client32.exe",
	"netsupport.exe",
	"pcicfgui.exe",
	"pciconfa.exe",
	"nsm.exe",
	"remote32.exe",
}

// processCacheSize bounds the number of memoized buckets.
const processCacheSize = 32

// HybridBucket is the fixed cache bucket width used by hybrid detection.
const HybridBucket = 5 * time.Second

// ProcessLister returns the names of all running processes.
type ProcessLister func(ctx context.Context) ([]string, error)

// ProcessScanner matches running process names against KnownProcesses.
// Results are memoized per cache key.
type ProcessScanner struct {
	list    ProcessLister
	known   map[string]bool
	cache   *lru.Cache[int64, []string]
	mu      sync.Mutex
	scanned int
}

// NewProcessScanner creates a scanner. A nil lister enumerates the live
// process table with gopsutil.
func NewProcessScanner(list ProcessLister) *ProcessScanner {
	if list == nil {
		list = ListProcessNames
	}
	cache, _ := lru.New[int64, []string](processCacheSize)

	known := make(map[string]bool, len(KnownProcesses))
	for _, name := range KnownProcesses {
		known[strings.ToLower(name)] = true
	}

	return &ProcessScanner{
		list:  list,
		known: known,
		cache: cache,
	}
}

// CacheKey quantizes now into buckets of the given width.
func CacheKey(now time.Time, bucket time.Duration) int64 {
	if bucket <= 0 {
		bucket = time.Second
	}
	return now.UnixNano() / int64(bucket)
}

// Scan returns the sorted, lower-cased known process names running in the
// bucket identified by cacheKey. Enumeration failures yield an empty result
// and are not memoized.
func (s *ProcessScanner) Scan(ctx context.Context, cacheKey int64) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if found, ok := s.cache.Get(cacheKey); ok {
		return found
	}

	names, err := s.list(ctx)
	if err != nil {
		util.Debug("Process scan failed: %v", err)
		return nil
	}
	s.scanned++

	seen := make(map[string]bool)
	found := make([]string, 0)
	for _, name := range names {
		lower := strings.ToLower(name)
		if s.known[lower] && !seen[lower] {
			seen[lower] = true
			found = append(found, lower)
		}
	}
	sort.Strings(found)

	s.cache.Add(cacheKey, found)
	return found
}

// Enumerations returns how many real process enumerations have run.
func (s *ProcessScanner) Enumerations() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scanned
}

// ListProcessNames enumerates the live process table.
func ListProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	names := make([]string, 0, len(procs))
	skipped := 0
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			skipped++
			continue
		}
		names = append(names, name)
	}

	if skipped > 0 {
		util.Debug("Process scan skipped %d of %d processes", skipped, len(procs))
	}

	return names, nil
}
