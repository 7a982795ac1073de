package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zkslice/internal/slice"
)

func TestWriteRun_Idempotent(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	createTestRun(t, s, "run-1")
	require.NoError(t, s.WriteRun(ctx, Run{ID: "run-1", K: 20, Capacity: 99}))

	run, err := s.ReadRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, Run{ID: "run-1", K: 18, Capacity: 4, Status: RunStatusRunning}, run)
}

func TestReadRun_NotFound(t *testing.T) {
	s := createTestStore(t)
	_, err := s.ReadRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestWriteSlice_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	slices := createTestSlices("run-1", 3)
	for _, sl := range slices {
		c, err := s.WriteSlice(ctx, sl)
		require.NoError(t, err)
		want, err := slice.Commit(sl)
		require.NoError(t, err)
		assert.Equal(t, want, c)
	}

	n, err := s.CountSlices(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	for i, want := range slices {
		got, err := s.ReadSlice(ctx, "run-1", i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	records, err := s.ListSlices(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, 0, records[0].Index)
	assert.Equal(t, uint64(1), records[0].FirstEID)
	assert.Equal(t, uint64(3), records[0].LastEID)
	assert.Equal(t, 1, records[2].EntryCount)
}

func TestWriteSlice_RejectsOutOfOrderIndex(t *testing.T) {
	s := createTestStore(t)
	createTestRun(t, s, "run-1")

	slices := createTestSlices("run-1", 3)
	_, err := s.WriteSlice(context.Background(), slices[1])
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects index 0")
}

func TestReadSlice_Missing(t *testing.T) {
	s := createTestStore(t)
	createTestRun(t, s, "run-1")

	_, err := s.ReadSlice(context.Background(), "run-1", 0)
	assert.ErrorIs(t, err, ErrSliceNotFound)
}

func TestFindSliceByKeccak(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	slices := createTestSlices("run-1", 4)
	var second slice.Commitment
	for _, sl := range slices {
		c, err := s.WriteSlice(ctx, sl)
		require.NoError(t, err)
		second = c
	}

	rec, err := s.FindSliceByKeccak(ctx, second.Keccak)
	require.NoError(t, err)
	assert.Equal(t, 1, rec.Index)
	assert.Equal(t, second, rec.Commitment())

	_, err = s.FindSliceByKeccak(ctx, "00")
	assert.ErrorIs(t, err, ErrSliceNotFound)
}

func TestFinishRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-ok")
	createTestRun(t, s, "run-bad")

	for _, sl := range createTestSlices("run-ok", 4) {
		_, err := s.WriteSlice(ctx, sl)
		require.NoError(t, err)
	}
	require.NoError(t, s.FinishRun(ctx, "run-ok", nil))
	require.NoError(t, s.FinishRun(ctx, "run-bad", errors.New("INCOMPLETE_GROUP: boom")))

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-bad", runs[0].ID)
	assert.Equal(t, RunStatusFailed, runs[0].Status)
	assert.Equal(t, "INCOMPLETE_GROUP: boom", runs[0].Error)
	assert.Equal(t, RunStatusComplete, runs[1].Status)
	assert.Equal(t, 2, runs[1].Slices)

	assert.ErrorIs(t, s.FinishRun(ctx, "ghost", nil), ErrRunNotFound)
}

func TestListRuns_Empty(t *testing.T) {
	s := createTestStore(t)
	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, runs)
	assert.Empty(t, runs)
}

func TestSink_PushAndRead(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	sink, err := s.NewSink(ctx, "run-1")
	require.NoError(t, err)
	assert.True(t, sink.IsEmpty())

	slices := createTestSlices("run-1", 3)
	for _, sl := range slices {
		require.NoError(t, sink.Push(sl))
	}
	assert.Equal(t, 3, sink.Len())

	got, err := slice.Collect(sink)
	require.NoError(t, err)
	assert.Equal(t, slices, got)

	_, err = sink.Slice(3)
	assert.ErrorIs(t, err, slice.ErrOutOfRange)

	// A second sink on the same run resumes the count.
	again, err := s.NewSink(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, again.Len())
}

func TestSink_RejectsForeignRun(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	createTestRun(t, s, "run-1")

	sink, err := s.NewSink(ctx, "run-1")
	require.NoError(t, err)
	err = sink.Push(createTestSlices("run-2", 3)[0])
	assert.Error(t, err)

	_, err = s.NewSink(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}
