package search

import (
	"time"
)

// Kind names the two search paths.
type Kind string

const (
	KindText   Kind = "text"
	KindNearby Kind = "nearby"
)

// SearchMonitor provides hooks to observe the search process.
// An engine-wide monitor is called from concurrent searches. Every Start is
// followed by exactly one Finish or Failed.
type SearchMonitor interface {
	Start(kind Kind, query string)
	AfterRegionSelection(kind Kind, regionIDs []string)
	AfterOfflineSearch(kind Kind, hits int)
	AfterOnlineSearch(kind Kind, hits int, err error, elapsed time.Duration)
	Finish(kind Kind, outcome Outcome, results int, elapsed time.Duration)
	Failed(kind Kind, err error, elapsed time.Duration)
}

// noopMonitor is a no-op implementation of SearchMonitor
type noopMonitor struct{}

var _ SearchMonitor = (*noopMonitor)(nil)

func (n *noopMonitor) Start(_ Kind, _ string)                                    {}
func (n *noopMonitor) AfterRegionSelection(_ Kind, _ []string)                   {}
func (n *noopMonitor) AfterOfflineSearch(_ Kind, _ int)                          {}
func (n *noopMonitor) AfterOnlineSearch(_ Kind, _ int, _ error, _ time.Duration) {}
func (n *noopMonitor) Finish(_ Kind, _ Outcome, _ int, _ time.Duration)          {}
func (n *noopMonitor) Failed(_ Kind, _ error, _ time.Duration)                   {}
