// ©Hayabusa Cloud Co., Ltd. 2026. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestReporterDrainsSnapshotsIntoPrometheus(t *testing.T) {
	r := NewReporter(nil)
	r.Start()
	defer r.Stop()

	r.Push(Snapshot{WorkerID: 0, QueueDepth: 3, Processed: 7, Pending: 2})
	r.Push(Snapshot{WorkerID: -1, QueueDepth: 1, Processed: 1, Pending: 2})

	require.Eventually(t, func() bool {
		mf, err := r.Registry().Gather()
		if err != nil {
			return false
		}
		found := map[string]bool{}
		for _, f := range mf {
			if len(f.GetMetric()) > 0 {
				found[f.GetName()] = true
			}
		}
		return found["compose_processed_total"] && found["compose_queue_depth"] && found["compose_pending"]
	}, time.Second, 5*time.Millisecond)
}

func TestIncrementFailuresRegistersAsCounter(t *testing.T) {
	r := NewReporter(nil)

	r.IncrementFailures()
	r.IncrementFailures()

	mf, err := r.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range mf {
		if f.GetName() == "compose_handler_failures_total" {
			found = true
			require.Equal(t, float64(2), f.GetMetric()[0].GetCounter().GetValue())
		}
	}
	require.True(t, found)
}

func TestNewIncidentIDIsUniqueAndNonEmpty(t *testing.T) {
	a := NewIncidentID()
	b := NewIncidentID()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}

func TestSnapshotQueueFIFO(t *testing.T) {
	q := newSnapshotQueue(4)
	for i := range 4 {
		require.NoError(t, q.enqueue(Snapshot{WorkerID: i}))
	}
	require.ErrorIs(t, q.enqueue(Snapshot{WorkerID: 99}), errQueueFull)

	for i := range 4 {
		s, err := q.dequeue()
		require.NoError(t, err)
		require.Equal(t, i, s.WorkerID)
	}
	_, err := q.dequeue()
	require.ErrorIs(t, err, errQueueEmpty)
}

func TestWorkerLabel(t *testing.T) {
	require.Equal(t, "foreground", workerLabel(-1))
	require.Equal(t, "0", workerLabel(0))
	require.Equal(t, "3", workerLabel(3))
}
