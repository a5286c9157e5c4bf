package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"

	"eng-metrics/internal/collection"
	"eng-metrics/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePopulator struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]bool
}

func (f *fakePopulator) PopulateFromJQL(ctx context.Context, query string, maxResults int, label string) (*collection.Collection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, label)
	if f.fail[label] {
		return nil, errors.New("boom")
	}
	return collection.New(query, label, nil), nil
}

func TestNewRefresher_InvalidSpec(t *testing.T) {
	_, err := NewRefresher("every tuesday", nil, &fakePopulator{}, 0)
	assert.Error(t, err)

	// Seconds are not accepted.
	_, err = NewRefresher("0 0 6 * * 1-5", nil, &fakePopulator{}, 0)
	assert.Error(t, err)
}

func TestRunOnce_ContinuesAfterFailure(t *testing.T) {
	p := &fakePopulator{fail: map[string]bool{"bugs": true}}
	r, err := NewRefresher("0 6 * * 1-5", []config.NamedQuery{
		{Label: "bugs", JQL: "type = Bug"},
		{Label: "stories", JQL: "type = Story"},
	}, p, 50)
	require.NoError(t, err)

	assert.Equal(t, 1, r.RunOnce(context.Background()))
	assert.Equal(t, []string{"bugs", "stories"}, p.calls)
}

func TestRunOnce_Cancelled(t *testing.T) {
	p := &fakePopulator{}
	r, err := NewRefresher("0 6 * * 1-5", []config.NamedQuery{{Label: "a", JQL: "x"}}, p, 0)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Equal(t, 0, r.RunOnce(ctx))
	assert.Empty(t, p.calls)
}

func TestRunOnce_SkipsOverlap(t *testing.T) {
	p := &fakePopulator{}
	r, err := NewRefresher("0 6 * * 1-5", []config.NamedQuery{{Label: "a", JQL: "x"}}, p, 0)
	require.NoError(t, err)

	r.running.Lock()
	assert.Equal(t, 0, r.RunOnce(context.Background()))
	r.running.Unlock()

	assert.Equal(t, 1, r.RunOnce(context.Background()))
}

func TestStartStop(t *testing.T) {
	r, err := NewRefresher("0 6 * * 1-5", nil, &fakePopulator{}, 0)
	require.NoError(t, err)
	r.Start()
	r.Stop()
}
