package colors

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu     sync.Mutex
	state  State
	saves  int
	failOn int // fail the n-th save (1-based), 0 = never
}

func (m *memStore) LoadColors(context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, nil
}

func (m *memStore) SaveColors(_ context.Context, s State) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saves++
	if m.saves == m.failOn {
		return errors.New("quota exceeded")
	}
	m.state = s
	return nil
}

func (m *memStore) snapshot() (State, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state, m.saves
}

func TestAssignIsIdempotent(t *testing.T) {
	a := NewAssigner(nil, 0)

	first := a.Assign("example.com")
	cursor := a.Snapshot().NextIndex
	second := a.Assign("example.com")

	assert.Equal(t, first, second)
	assert.Equal(t, cursor, a.Snapshot().NextIndex, "second call must not advance the cursor")
}

func TestAssignFirstSeenOrderAndWrap(t *testing.T) {
	a := NewAssigner(nil, 0)
	for i, hex := range Palette {
		assert.Equal(t, hex, a.Assign(string(rune('a'+i))+".com"))
	}
	// Cursor wraps modulo the palette size.
	assert.Equal(t, Palette[0], a.Assign("wrap.com"))
	assert.Equal(t, len(Palette)+1, a.Snapshot().NextIndex)
}

func TestLookupDoesNotAllocate(t *testing.T) {
	a := NewAssigner(nil, 0)
	_, ok := a.Lookup("example.com")
	assert.False(t, ok)
	assert.Equal(t, 0, a.Snapshot().NextIndex)
}

func TestLoadContinuesNumbering(t *testing.T) {
	store := &memStore{state: State{
		Domains:   map[string]string{"example.com": Palette[0], "go.dev": Palette[1]},
		NextIndex: 2,
	}}
	a := NewAssigner(store, time.Hour)
	require.NoError(t, a.Load(context.Background()))

	assert.Equal(t, Palette[1], a.Assign("go.dev"))
	assert.Equal(t, Palette[2], a.Assign("new.org"))
}

func TestSavesAreCoalesced(t *testing.T) {
	store := &memStore{}
	a := NewAssigner(store, time.Hour)

	a.Assign("a.com")
	a.Assign("b.com")
	a.Assign("c.com")
	a.Flush()

	state, saves := store.snapshot()
	assert.Equal(t, 1, saves)
	assert.Equal(t, 3, state.NextIndex)
	assert.Len(t, state.Domains, 3)
}

func TestSaveAfterDelay(t *testing.T) {
	store := &memStore{}
	a := NewAssigner(store, 10*time.Millisecond)
	a.Assign("a.com")

	require.Eventually(t, func() bool {
		_, saves := store.snapshot()
		return saves == 1
	}, 2*time.Second, 5*time.Millisecond)
}

func TestSaveFailureKeepsMemoryState(t *testing.T) {
	store := &memStore{failOn: 1}
	a := NewAssigner(store, time.Hour)

	c := a.Assign("a.com")
	a.Flush()
	state, _ := store.snapshot()
	assert.Empty(t, state.Domains)

	got, ok := a.Lookup("a.com")
	assert.True(t, ok)
	assert.Equal(t, c, got)

	// The next assignment retries and persists everything.
	a.Assign("b.com")
	a.Flush()
	state, saves := store.snapshot()
	assert.Equal(t, 2, saves)
	assert.Len(t, state.Domains, 2)
}

func TestGroupColor(t *testing.T) {
	assert.Equal(t, "blue", GroupColor("#007AFF"))
	assert.Equal(t, "green", GroupColor("#30D158"))
	assert.Equal(t, "grey", GroupColor("#BF5AF2"))
	assert.Equal(t, "grey", GroupColor("not-a-color"))
}
