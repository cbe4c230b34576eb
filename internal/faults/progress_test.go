package faults

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestUpdateProgressClampsPercentage(t *testing.T) {
	svc := NewService(nil)
	require.Equal(t, 0.0, svc.UpdateProgress("op", "start", -10, "", Context{}).Progress)
	require.Equal(t, 100.0, svc.UpdateProgress("op", "end", 240, "", Context{}).Progress)
	require.Equal(t, 42.5, svc.UpdateProgress("op", "mid", 42.5, "", Context{}).Progress)
}

func TestUpdateProgressCapsHistory(t *testing.T) {
	svc := NewService(nil)
	for i := 0; i < maxUpdatesPerOperation+20; i++ {
		svc.UpdateProgress("op", "stage", float64(i), fmt.Sprintf("update %d", i), Context{})
	}

	updates := svc.Updates("op")
	require.Len(t, updates, maxUpdatesPerOperation)
	// Oldest entries dropped first.
	require.Equal(t, "update 20", updates[0].Message)
	require.Equal(t, fmt.Sprintf("update %d", maxUpdatesPerOperation+19), updates[len(updates)-1].Message)
}

type captivePublisher struct {
	updates []ProgressUpdate
}

func (p *captivePublisher) PublishProgress(u ProgressUpdate) { p.updates = append(p.updates, u) }

func TestUpdateProgressForwardsToPublisher(t *testing.T) {
	svc := NewService(nil)
	pub := &captivePublisher{}
	svc.SetPublisher(pub)

	svc.UpdateProgress("op-1", "transcription", 45, "transcribing audio", Context{VideoID: "v1"})

	require.Len(t, pub.updates, 1)
	require.Equal(t, "op-1", pub.updates[0].OperationID)
	require.Equal(t, "transcription", pub.updates[0].Stage)
	require.Equal(t, "v1", pub.updates[0].Context.VideoID)
}

func TestExecuteWithProgressSuccess(t *testing.T) {
	svc := NewService(nil)
	err := svc.ExecuteWithProgress(context.Background(), "op", Context{}, func(ctx context.Context, update ProgressFunc) error {
		update("metadata", 10, "probing")
		return nil
	})
	require.NoError(t, err)

	updates := svc.Updates("op")
	require.Len(t, updates, 3)
	require.Equal(t, "started", updates[0].Stage)
	require.Equal(t, "metadata", updates[1].Stage)
	require.Equal(t, "completed", updates[2].Stage)
	require.Equal(t, 100.0, updates[2].Progress)
}

func TestExecuteWithProgressSurfacesErrorAndRecords(t *testing.T) {
	svc := NewService(nil)
	cause := errors.New("whisper api error")
	err := svc.ExecuteWithProgress(context.Background(), "op", Context{Operation: "video_process"}, func(ctx context.Context, update ProgressFunc) error {
		return cause
	})
	require.ErrorIs(t, err, cause)

	last, ok := svc.LatestUpdate("op")
	require.True(t, ok)
	require.Equal(t, "error", last.Stage)

	storedErrs, _ := svc.Counts()
	require.Equal(t, 1, storedErrs)
}

func TestCleanupPurgesOldEntriesAndIsIdempotent(t *testing.T) {
	svc := NewService(nil)
	svc.RecordError(errors.New("stale"), Context{})
	svc.UpdateProgress("old-op", "stage", 10, "", Context{})

	time.Sleep(5 * time.Millisecond)
	removedErrs, removedOps := svc.Cleanup(0)
	require.Equal(t, 1, removedErrs)
	require.Equal(t, 1, removedOps)

	removedErrs, removedOps = svc.Cleanup(0)
	require.Equal(t, 0, removedErrs)
	require.Equal(t, 0, removedOps)

	errs, ops := svc.Counts()
	require.Equal(t, 0, errs)
	require.Equal(t, 0, ops)
}

func TestCleanupKeepsRecentEntries(t *testing.T) {
	svc := NewService(nil)
	svc.RecordError(errors.New("fresh"), Context{})
	svc.UpdateProgress("live-op", "stage", 10, "", Context{})

	removedErrs, removedOps := svc.Cleanup(time.Hour)
	require.Equal(t, 0, removedErrs)
	require.Equal(t, 0, removedOps)
}
