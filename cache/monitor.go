package cache

import "time"

// Monitor observes cache activity.
type Monitor interface {
	// OnInstall is called after a region version has been installed.
	OnInstall(regionID, version string, bytes int64, elapsed time.Duration)

	// OnFetchError is called when EnsureLocal fails.
	OnFetchError(regionID string, reason Reason)

	// OnEvict is called for every region removed to stay within quota.
	OnEvict(regionID string, bytes int64)
}

type noopMonitor struct{}

func (noopMonitor) OnInstall(string, string, int64, time.Duration) {}
func (noopMonitor) OnFetchError(string, Reason)                    {}
func (noopMonitor) OnEvict(string, int64)                          {}
