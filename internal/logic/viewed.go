package logic

import "sync"

// ViewedLedger is the set of tooltip targets dispatched on the current screen.
type ViewedLedger struct {
	mu      sync.RWMutex
	targets map[string]struct{}
}

// NewViewedLedger creates an empty ledger.
func NewViewedLedger() *ViewedLedger {
	return &ViewedLedger{targets: make(map[string]struct{})}
}

// Add marks target as viewed. It returns false when it already was.
func (v *ViewedLedger) Add(target string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.targets[target]; ok {
		return false
	}
	v.targets[target] = struct{}{}
	return true
}

// Has reports whether target was viewed.
func (v *ViewedLedger) Has(target string) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.targets[target]
	return ok
}

// Reset forgets every target.
func (v *ViewedLedger) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.targets = make(map[string]struct{})
}

// Len returns how many targets were viewed.
func (v *ViewedLedger) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.targets)
}
