package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/dukex/cleanup/pkg/eventbus"
	"github.com/dukex/cleanup/pkg/events"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/dukex/cleanup/pkg/persistence/file"
	"github.com/dukex/cleanup/pkg/providers/cleanup"
	"github.com/dukex/cleanup/pkg/services"
	"github.com/dukex/cleanup/pkg/workflow"
	"github.com/dukex/cleanup/pkg/workflow/factory"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

type fakeEffects struct {
	mu         sync.Mutex
	reductions []string
	reduceErr  error
}

func (f *fakeEffects) ReduceTraffic(_ context.Context, _ string, stage string, from, to int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reductions = append(f.reductions, stage)

	return f.reduceErr
}

func (f *fakeEffects) Transform(context.Context, string) error {
	return nil
}

type fakeTimers struct {
	mu        sync.Mutex
	scheduled map[string]time.Time
}

func (f *fakeTimers) Schedule(id string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.scheduled[id] = at
}

func (f *fakeTimers) Cancel(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.scheduled, id)
}

func (f *fakeTimers) get(id string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	at, ok := f.scheduled[id]

	return at, ok
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (p *recordingPublisher) Publish(_ context.Context, _ string, event eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.events = append(p.events, event)

	return nil
}

func (p *recordingPublisher) types() []events.EventType {
	p.mu.Lock()
	defer p.mu.Unlock()

	types := make([]events.EventType, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.GetType())
	}

	return types
}

type fixture struct {
	persistence persistence.Persistence
	host        *services.ArchiveHost
	clock       *fakeClock
	effects     *fakeEffects
	timers      *fakeTimers
	publisher   *recordingPublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		persistence: file.NewPersistence(t.TempDir()),
		clock:       &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		effects:     &fakeEffects{},
		timers:      &fakeTimers{scheduled: map[string]time.Time{}},
		publisher:   &recordingPublisher{},
	}
	f.host = f.newHost()

	return f
}

// newHost builds a host over the fixture's repository with an empty cache,
// as a restarted process would.
func (f *fixture) newHost() *services.ArchiveHost {
	provider := cleanup.New(factory.Dependencies{
		Effects: workflow.Effects{Reducer: f.effects, Transformer: f.effects},
		Clock:   f.clock.Now,
	})

	host := services.NewArchiveHost(f.persistence.WorkflowRepository(), provider,
		services.WithClock(f.clock.Now),
		services.WithPublisher(f.publisher))
	host.UseTimers(f.timers)

	return host
}

func stagedRequest(name string, stages ...models.StageRequest) models.CleanupRequest {
	if len(stages) == 0 {
		stages = []models.StageRequest{{Name: "global", CurrentAllocation: 100, TargetAllocation: 0, WaitDuration: time.Hour}}
	}

	return models.CleanupRequest{
		ConfigurationName:        name,
		WorkflowType:             models.WorkflowTypeStagedArchive,
		CurrentTrafficPercentage: stages[0].CurrentAllocation,
		Stages:                   stages,
	}
}

func historyTypes(t *testing.T, repo persistence.WorkflowRepository, id string) []string {
	t.Helper()

	projection, err := repo.GetByID(t.Context(), id)
	if err != nil || projection == nil {
		t.Fatalf("projection %s not found: %v", id, err)
	}

	types := make([]string, 0, len(projection.History))
	for _, event := range projection.History {
		types = append(types, event.EventType)
	}

	return types
}
