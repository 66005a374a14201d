package service

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// LinkFilter is a concurrency-safe bloom filter over known link ids. It lets
// the click consumer skip database round-trips for links that were never
// projected; a false positive just falls through to the repository's no-op.
type LinkFilter struct {
	mu     sync.RWMutex
	filter *bloom.BloomFilter
}

// NewLinkFilter sizes the filter for the expected number of links.
func NewLinkFilter(expectedLinks uint, falsePositiveRate float64) *LinkFilter {
	if expectedLinks == 0 {
		expectedLinks = 1
	}
	return &LinkFilter{
		filter: bloom.NewWithEstimates(expectedLinks, falsePositiveRate),
	}
}

// Seed adds every id in one pass, used at startup with the persisted link set.
func (f *LinkFilter) Seed(ids []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.filter.AddString(id)
	}
}

// Add records a newly created link id.
func (f *LinkFilter) Add(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.AddString(id)
}

// MayContain reports whether the id could be a known link. False means the
// link definitely was never added; deleted links keep reporting true, which
// is harmless.
func (f *LinkFilter) MayContain(id string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.filter.TestString(id)
}
