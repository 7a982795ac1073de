package slice

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zkslice/internal/trace"
)

func sampleEntries() []trace.Entry {
	r := trace.NewRecorder()
	return []trace.Entry{
		r.Plain("i32.const"),
		r.Call(2),
		r.HostArg(24, 11),
		r.HostRet(25, 12),
		r.Return(),
		r.Host(18),
		r.Call(5),
	}
}

func TestTableBuilder_DerivesTables(t *testing.T) {
	entries := sampleEntries()
	s := TableBuilder{}.Build(entries)

	assert.Equal(t, entries, s.Entries)
	require.Len(t, s.HostCalls, 3)
	assert.Equal(t, uint64(3), s.HostCalls[0].EID)
	assert.Equal(t, 24, s.HostCalls[0].Op)
	assert.False(t, s.HostCalls[0].IsRet)
	assert.True(t, s.HostCalls[1].IsRet)
	assert.Nil(t, s.HostCalls[2].Value)

	require.Len(t, s.Frames, 2)
	assert.Equal(t, FrameEntry{CallEID: 2, ReturnEID: 5, CallerFID: 0, CalleeFID: 2, IID: 2, Returned: true}, s.Frames[0])
	assert.False(t, s.Frames[1].Returned)
	assert.Equal(t, uint32(5), s.Frames[1].CalleeFID)
}

func TestTableBuilder_DoesNotAliasInput(t *testing.T) {
	entries := sampleEntries()
	s := TableBuilder{}.Build(entries)
	entries[0].EID = 99
	assert.Equal(t, uint64(1), s.Entries[0].EID)
}

func TestTableBuilder_ReturnWithoutCall(t *testing.T) {
	r := trace.NewRecorder()
	s := TableBuilder{}.Build([]trace.Entry{r.Return(), r.Plain("nop")})
	assert.Empty(t, s.Frames)
	assert.Equal(t, uint64(1), s.FirstEID())
	assert.Equal(t, uint64(2), s.LastEID())
}

func TestMemorySink(t *testing.T) {
	sink := NewMemorySink()
	assert.True(t, sink.IsEmpty())

	require.NoError(t, sink.Push(Slice{Index: 0}))
	require.NoError(t, sink.Push(Slice{Index: 1}))
	assert.Equal(t, 2, sink.Len())

	got, err := sink.Slice(1)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Index)

	_, err = sink.Slice(2)
	assert.ErrorIs(t, err, ErrOutOfRange)

	all, err := Collect(sink)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestFileSink_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, "run")
	require.NoError(t, err)

	entries := sampleEntries()
	first := TableBuilder{}.Build(entries[:4])
	first.RunID, first.Index = "r1", 0
	second := TableBuilder{}.Build(entries[4:])
	second.RunID, second.Index = "r1", 1

	require.NoError(t, sink.Push(first))
	require.NoError(t, sink.Push(second))
	assert.FileExists(t, filepath.Join(dir, "run.slice.0.json"))
	assert.FileExists(t, filepath.Join(dir, "run.slice.1.json"))

	reopened, err := OpenFileSink(dir, "run")
	require.NoError(t, err)
	assert.Equal(t, 2, reopened.Len())

	got, err := Collect(reopened)
	require.NoError(t, err)
	assert.Equal(t, []Slice{first, second}, got)
	assert.Equal(t, 4, reopened.Manifest().Slices[0].Entries)
}

func TestFileSink_DetectsTampering(t *testing.T) {
	dir := t.TempDir()
	sink, err := NewFileSink(dir, "run")
	require.NoError(t, err)
	require.NoError(t, sink.Push(TableBuilder{}.Build(sampleEntries())))

	path := filepath.Join(dir, SliceFile("run", 0))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, append(data, ' '), 0o644))

	_, err = sink.Slice(0)
	assert.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestOpenFileSink_Missing(t *testing.T) {
	_, err := OpenFileSink(t.TempDir(), "nothing")
	assert.Error(t, err)
}

func TestCommit_ContentAddressed(t *testing.T) {
	a := TableBuilder{}.Build(sampleEntries())
	b := TableBuilder{}.Build(sampleEntries())
	a.RunID, a.Index = "run-a", 0
	b.RunID, b.Index = "run-b", 3

	ca, err := Commit(a)
	require.NoError(t, err)
	cb, err := Commit(b)
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
	assert.Len(t, ca.ID, 64)
	assert.Len(t, ca.Keccak, 64)
	assert.Len(t, ca.MiMC, 64)

	c := TableBuilder{}.Build(sampleEntries()[:3])
	cc, err := Commit(c)
	require.NoError(t, err)
	assert.NotEqual(t, ca.ID, cc.ID)
	assert.NotEqual(t, ca.Keccak, cc.Keccak)
	assert.NotEqual(t, ca.MiMC, cc.MiMC)
}

func TestCommit_HostValueChangesMiMC(t *testing.T) {
	r := trace.NewRecorder()
	x := TableBuilder{}.Build([]trace.Entry{r.HostArg(24, 1)})
	r = trace.NewRecorder()
	y := TableBuilder{}.Build([]trace.Entry{r.HostArg(24, 2)})

	cx, err := Commit(x)
	require.NoError(t, err)
	cy, err := Commit(y)
	require.NoError(t, err)
	assert.NotEqual(t, cx.MiMC, cy.MiMC)
}
