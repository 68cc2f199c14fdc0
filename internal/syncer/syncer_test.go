package syncer

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gplanner/internal/google"
	"gplanner/pkg/logx"
)

type fakeProvider struct {
	mu     sync.Mutex
	events []google.Event
	tasks  []google.Task
}

func (f *fakeProvider) FetchEvents(ctx context.Context) []google.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.events
}

func (f *fakeProvider) FetchTasks(ctx context.Context) []google.Task {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks
}

func (f *fakeProvider) set(events []google.Event, tasks []google.Task) {
	f.mu.Lock()
	f.events, f.tasks = events, tasks
	f.mu.Unlock()
}

func TestCurrentIsNilBeforeFirstSync(t *testing.T) {
	t.Parallel()
	s := New(&fakeProvider{}, logx.Nop())
	assert.Nil(t, s.Current())
}

func TestSyncInstallsWholeSnapshot(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{}
	p.set(
		[]google.Event{{ID: "e1", Summary: "Standup"}},
		[]google.Task{{ID: "t1", Title: "Pay rent"}},
	)
	s := New(p, logx.Nop())

	got := s.Sync(context.Background())
	require.NotNil(t, got)
	assert.Len(t, got.Events, 1)
	assert.Len(t, got.Tasks, 1)
	assert.False(t, got.AsOf.IsZero())
	assert.Same(t, got, s.Current())
}

func TestSyncReplacesPreviousSnapshot(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{}
	s := New(p, logx.Nop())

	p.set([]google.Event{{ID: "e1"}}, nil)
	first := s.Sync(context.Background())

	p.set([]google.Event{{ID: "e1"}, {ID: "e2"}}, []google.Task{{ID: "t1"}})
	second := s.Sync(context.Background())

	assert.NotSame(t, first, second)
	assert.Same(t, second, s.Current())
	assert.Len(t, s.Current().Events, 2)
}

func TestConcurrentReadersNeverSeePartialState(t *testing.T) {
	t.Parallel()
	p := &fakeProvider{}
	s := New(p, logx.Nop())

	// Every installed snapshot has matching event/task counts; a torn read
	// would observe a mismatch.
	var wg sync.WaitGroup
	stop := make(chan struct{})
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if snap := s.Current(); snap != nil && len(snap.Events) != len(snap.Tasks) {
					t.Errorf("torn snapshot: %d events, %d tasks", len(snap.Events), len(snap.Tasks))
					return
				}
			}
		}()
	}

	for n := 1; n <= 50; n++ {
		events := make([]google.Event, n)
		tasks := make([]google.Task, n)
		p.set(events, tasks)
		s.Sync(context.Background())
	}
	close(stop)
	wg.Wait()
}
