// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package defaults

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

type fakeSource struct {
	mu   sync.Mutex
	name string
	m    map[string]string
	err  error
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Load(context.Context) (map[string]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make(map[string]string, len(f.m))
	for k, v := range f.m {
		out[k] = v
	}
	return out, nil
}

func (f *fakeSource) set(m map[string]string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.m, f.err = m, err
}

func TestStatic_LoadReturnsCopy(t *testing.T) {
	s := Static{"X-A": "1"}
	m, err := s.Load(context.Background())
	require.NoError(t, err)

	m["X-A"] = "changed"
	assert.Equal(t, "1", s["X-A"])
}

func TestMerge_LaterSourcesWin(t *testing.T) {
	got, err := Merge(context.Background(),
		Static{"X-A": "static", "X-B": "static"},
		&fakeSource{name: "fake", m: map[string]string{"X-B": "fake"}},
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-A": "static", "X-B": "fake"}, got)
}

func TestMerge_NamesFailingSource(t *testing.T) {
	boom := errors.New("boom")
	_, err := Merge(context.Background(), Static{}, &fakeSource{name: "fake", err: boom})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "fake")
}

func TestPoll_AppliesOnChangeOnly(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	src := &fakeSource{name: "fake", m: map[string]string{"X-A": "1"}}
	applied := make(chan map[string]string, 8)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		Poll(ctx, src, 10*time.Millisecond, func(m map[string]string) { applied <- m })
	}()

	first := <-applied
	assert.Equal(t, "1", first["X-A"])

	// A failing load keeps the previous set and does not call apply.
	src.set(nil, errors.New("unavailable"))
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, applied, 0)

	src.set(map[string]string{"X-A": "2"}, nil)
	select {
	case next := <-applied:
		assert.Equal(t, "2", next["X-A"])
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for updated defaults")
	}

	cancel()
	<-done
}
