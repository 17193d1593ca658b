package job

import (
	"context"
	"sync"
	"time"

	"github.com/jbweber/linode-utils/internal/provider"
)

// mockLister is a mock implementation of the Lister interface for testing.
type mockLister struct {
	mu sync.Mutex

	// listJobsFunc receives the 1-based call number.
	listJobsFunc func(call int) ([]provider.Job, error)

	// Call tracking
	listJobsCalls []provider.LinodeID
}

// newMockLister creates a mock that replays the given listings, repeating the
// last one once they run out.
func newMockLister(listings ...[]provider.Job) *mockLister {
	return &mockLister{
		listJobsFunc: func(call int) ([]provider.Job, error) {
			if len(listings) == 0 {
				return nil, nil
			}
			if call > len(listings) {
				return listings[len(listings)-1], nil
			}
			return listings[call-1], nil
		},
	}
}

func (m *mockLister) ListJobs(_ context.Context, id provider.LinodeID) ([]provider.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listJobsCalls = append(m.listJobsCalls, id)
	return m.listJobsFunc(len(m.listJobsCalls))
}

func (m *mockLister) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listJobsCalls)
}

var finishedAt = time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

func done(id provider.JobID, success bool) provider.Job {
	t := finishedAt
	return provider.Job{ID: id, LinodeID: 1, Action: "linode.disk.delete", HostFinishDT: &t, HostSuccess: success}
}

func running(id provider.JobID) provider.Job {
	return provider.Job{ID: id, LinodeID: 1, Action: "linode.disk.delete"}
}
