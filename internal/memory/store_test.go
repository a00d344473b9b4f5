package memory

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/holokernel/internal/signature"
	"github.com/hyperjump/holokernel/internal/vector"
)

type recorder struct {
	inserts    []EntryInfo
	overwrites []int
	lookups    map[bool]int
}

func newRecorder() *recorder { return &recorder{lookups: map[bool]int{}} }

func (r *recorder) OnInsert(info EntryInfo)                    { r.inserts = append(r.inserts, info) }
func (r *recorder) OnOverwrite(abandoned int)                  { r.overwrites = append(r.overwrites, abandoned) }
func (r *recorder) OnLookup(_ signature.Fingerprint, hit bool) { r.lookups[hit]++ }

func pair(i int) (vector.Vector, vector.Vector) {
	return vector.EncodeString(fmt.Sprintf("key-%d", i)), vector.EncodeString(fmt.Sprintf("value-%d", i))
}

func TestStore_InsertBeforeInitialize(t *testing.T) {
	s := NewStore()
	k, v := pair(0)
	_, err := s.Insert(k, v)
	require.ErrorIs(t, err, ErrNotInitialized)

	_, ok := s.Lookup(k.Signature)
	assert.False(t, ok)
	assert.False(t, s.Initialized())
}

func TestStore_ConformanceFixture(t *testing.T) {
	s := NewStore()
	s.Initialize()

	key := vector.EncodeString("TEST_PATTERN")
	value := vector.EncodeString("EXPECTED_RESULT")
	res, err := s.Insert(key, value)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Slot)
	assert.Equal(t, uint32(0), res.Sequence)
	assert.Zero(t, res.Abandoned)

	got, ok := s.Lookup(key.Signature)
	require.True(t, ok)
	assert.Equal(t, signature.SumString("EXPECTED_RESULT"), got.Signature)
	assert.Equal(t, value, got)
}

func TestStore_LookupEmpty(t *testing.T) {
	s := NewStore()
	s.Initialize()
	_, ok := s.Lookup(signature.SumString("missing"))
	assert.False(t, ok)
	assert.Empty(t, s.Snapshot())
}

func TestStore_RoundTripBelowCapacity(t *testing.T) {
	s := NewStore()
	s.Initialize()
	for i := 0; i < Capacity; i++ {
		k, v := pair(i)
		res, err := s.Insert(k, v)
		require.NoError(t, err)
		assert.Equal(t, i, res.Slot)
		assert.Equal(t, uint32(i), res.Sequence)
	}
	assert.Equal(t, Capacity, s.Len())
	for i := 0; i < Capacity; i++ {
		k, v := pair(i)
		got, ok := s.Lookup(k.Signature)
		require.True(t, ok, "pair %d", i)
		assert.Equal(t, v.Signature, got.Signature, "pair %d", i)
	}
}

func TestStore_CapacityOverwriteResetsHistory(t *testing.T) {
	rec := newRecorder()
	s := NewStore(WithObserver(rec))
	s.Initialize()
	for i := 0; i < Capacity+1; i++ {
		k, v := pair(i)
		_, err := s.Insert(k, v)
		require.NoError(t, err)
	}

	k, v := pair(Capacity)
	got, ok := s.Lookup(k.Signature)
	require.True(t, ok)
	assert.Equal(t, v.Signature, got.Signature)

	for i := 0; i < Capacity; i++ {
		k, _ := pair(i)
		_, ok := s.Lookup(k.Signature)
		assert.False(t, ok, "pair %d should have been abandoned", i)
	}

	assert.Equal(t, 1, s.Len())
	assert.Equal(t, uint32(Capacity+1), s.Sequence())
	assert.Equal(t, []int{Capacity}, rec.overwrites)
	assert.Len(t, rec.inserts, Capacity+1)
	assert.Equal(t, 0, rec.inserts[Capacity].Slot)
	assert.Equal(t, uint32(Capacity), rec.inserts[Capacity].Sequence)
	assert.Equal(t, 1, rec.lookups[true])
	assert.Equal(t, Capacity, rec.lookups[false])

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, k.Signature, snap[0].KeySignature)
}

func TestStore_FirstMatchWins(t *testing.T) {
	s := NewStore()
	s.Initialize()
	key := vector.EncodeString("same-key")
	first := vector.EncodeString("first")
	second := vector.EncodeString("second")
	_, err := s.Insert(key, first)
	require.NoError(t, err)
	_, err = s.Insert(key, second)
	require.NoError(t, err)

	got, ok := s.Lookup(key.Signature)
	require.True(t, ok)
	assert.Equal(t, first.Signature, got.Signature)
}

func TestStore_CopiesByValue(t *testing.T) {
	s := NewStore()
	s.Initialize()
	key := vector.EncodeString("k")
	value := vector.EncodeString("v")
	want := value
	_, err := s.Insert(key, value)
	require.NoError(t, err)

	value.Data[0] = 42
	got, _ := s.Lookup(key.Signature)
	assert.Equal(t, want, got)

	got.Data[1] = 7
	again, _ := s.Lookup(key.Signature)
	assert.Equal(t, want, again)
}

func TestStore_InitializeAndReset(t *testing.T) {
	s := NewStore()
	s.Initialize()
	k, v := pair(1)
	_, err := s.Insert(k, v)
	require.NoError(t, err)

	s.Initialize()
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, uint32(0), s.Sequence())
	_, ok := s.Lookup(k.Signature)
	assert.False(t, ok)

	s.Reset()
	assert.False(t, s.Initialized())
	_, err = s.Insert(k, v)
	assert.ErrorIs(t, err, ErrNotInitialized)
	assert.Equal(t, Capacity, s.Cap())
}
