package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/dukex/cleanup/pkg/eventbus"
	"github.com/dukex/cleanup/pkg/events"
	"github.com/dukex/cleanup/pkg/log"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/otelhelper"
	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/dukex/cleanup/pkg/workflow"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const defaultCacheTTL = 30 * time.Minute

// Timers arms and cancels the wake-up of a waiting workflow.
type Timers interface {
	Schedule(id string, at time.Time)
	Cancel(id string)
}

type noTimers struct{}

func (noTimers) Schedule(string, time.Time) {}
func (noTimers) Cancel(string)              {}

type hostOptions struct {
	cacheTTL  time.Duration
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	logger    *slog.Logger
	clock     workflow.Clock
}

// Option configures a Host.
type Option func(*hostOptions)

// WithCacheTTL sets how long an idle live instance stays cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(o *hostOptions) {
		o.cacheTTL = ttl
	}
}

// WithPublisher publishes lifecycle events on every recorded change.
func WithPublisher(publisher eventbus.EventPublisher) Option {
	return func(o *hostOptions) {
		o.publisher = publisher
	}
}

// WithTracer records a span per host operation.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *hostOptions) {
		o.tracer = tracer
	}
}

// WithLogger replaces the host logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *hostOptions) {
		o.logger = logger
	}
}

// WithClock replaces the wall clock used for projection timestamps.
func WithClock(clock workflow.Clock) Option {
	return func(o *hostOptions) {
		o.clock = clock
	}
}

// Host creates, caches, persists and drives workflow instances of one family.
// Every operation touching a given id runs under that id's lock; the
// repository is the source of truth and the cache only saves rehydration.
type Host[Req any, C any, W workflow.Workflow] struct {
	repo      persistence.WorkflowRepository
	provider  Provider[Req, C, W]
	live      *cache.Cache
	locks     *keyedMutex
	timers    Timers
	publisher eventbus.EventPublisher
	tracer    trace.Tracer
	logger    *slog.Logger
	clock     workflow.Clock
}

// NewHost creates a host for the family served by provider.
func NewHost[Req any, C any, W workflow.Workflow](
	repo persistence.WorkflowRepository,
	provider Provider[Req, C, W],
	opts ...Option,
) *Host[Req, C, W] {
	o := hostOptions{
		cacheTTL: defaultCacheTTL,
		tracer:   otelhelper.NoopTracer(),
		logger:   log.WithModule("workflow_host"),
		clock:    workflow.SystemClock,
	}

	for _, opt := range opts {
		opt(&o)
	}

	return &Host[Req, C, W]{
		repo:      repo,
		provider:  provider,
		live:      cache.New(o.cacheTTL, 2*o.cacheTTL),
		locks:     newKeyedMutex(),
		timers:    noTimers{},
		publisher: o.publisher,
		tracer:    o.tracer,
		logger:    o.logger,
		clock:     o.clock,
	}
}

// UseTimers installs the scheduler that wakes waiting workflows. It must be
// called before the host serves requests.
func (h *Host[Req, C, W]) UseTimers(timers Timers) {
	if timers == nil {
		timers = noTimers{}
	}

	h.timers = timers
}

// change is what a mutation asks the host to record.
type change struct {
	eventType   string
	description string
	data        map[string]any
}

// CreateWorkflow builds a context and live instance from req, persists the
// projection with a Created history event and returns the new id.
func (h *Host[Req, C, W]) CreateWorkflow(ctx context.Context, req Req) (string, error) {
	ctx, span := otelhelper.StartSpan(ctx, h.tracer, "host.create_workflow")
	defer span.End()

	id, err := h.createWorkflow(ctx, req)
	if err != nil {
		otelhelper.SetError(span, err)

		return "", wrapError("CreateWorkflow", err)
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, id))

	return id, nil
}

func (h *Host[Req, C, W]) createWorkflow(ctx context.Context, req Req) (string, error) {
	c, err := h.provider.CreateContext(req)
	if err != nil {
		return "", err
	}

	wf, err := h.provider.CreateWorkflow(c)
	if err != nil {
		return "", fmt.Errorf("failed to create workflow: %w", err)
	}

	now := h.clock()
	state := h.provider.CurrentState(wf)
	projection := &models.WorkflowProjection{
		ID:           uuid.NewString(),
		DisplayName:  h.provider.DisplayName(c),
		WorkflowType: h.provider.WorkflowType(c),
		State:        state,
		Context:      h.provider.Wrap(c),
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     h.provider.Metadata(c),
	}
	projection.AppendHistory(models.HistoryEvent{
		Timestamp:   now,
		EventType:   models.HistoryEventCreated,
		ToState:     state,
		Description: "Workflow created",
	})

	unlock := h.locks.Lock(projection.ID)
	defer unlock()

	err = h.repo.Create(ctx, projection)
	if err != nil {
		return "", fmt.Errorf("failed to persist workflow: %w", err)
	}

	h.live.SetDefault(projection.ID, wf)

	h.logger.InfoContext(ctx, "Workflow created",
		"workflow_id", projection.ID,
		"workflow_type", projection.WorkflowType,
		"display_name", projection.DisplayName)

	h.publish(ctx, projection.ID, events.WorkflowCreated{
		BaseEvent:    events.NewBaseEvent(events.WorkflowCreatedEvent, projection.ID),
		WorkflowType: projection.WorkflowType,
		DisplayName:  projection.DisplayName,
		State:        state,
	})

	return projection.ID, nil
}

// GetWorkflow returns the projection combined with the live instance's view,
// rehydrating the instance when it is not cached.
func (h *Host[Req, C, W]) GetWorkflow(ctx context.Context, id string) (*models.WorkflowResponse, error) {
	ctx, span := otelhelper.StartSpan(ctx, h.tracer, "host.get_workflow",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	unlock := h.locks.Lock(id)
	defer unlock()

	projection, err := h.load(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, wrapError("GetWorkflow", err)
	}

	wf, err := h.instance(ctx, projection)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, wrapError("GetWorkflow", err)
	}

	return h.respond(projection, wf), nil
}

// GetAllWorkflows returns every workflow of the family.
func (h *Host[Req, C, W]) GetAllWorkflows(ctx context.Context) ([]*models.WorkflowResponse, error) {
	projections, err := h.repo.GetAll(ctx)
	if err != nil {
		return nil, wrapError("GetAllWorkflows", fmt.Errorf("failed to list workflows: %w", err))
	}

	return h.respondAll(ctx, "GetAllWorkflows", projections)
}

// GetWorkflowsByType returns the workflows tagged with workflowType.
func (h *Host[Req, C, W]) GetWorkflowsByType(ctx context.Context, workflowType string) ([]*models.WorkflowResponse, error) {
	projections, err := h.repo.GetByType(ctx, workflowType)
	if err != nil {
		return nil, wrapError("GetWorkflowsByType", fmt.Errorf("failed to list workflows: %w", err))
	}

	return h.respondAll(ctx, "GetWorkflowsByType", projections)
}

// GetWorkflowsByState returns the workflows last persisted in state.
func (h *Host[Req, C, W]) GetWorkflowsByState(ctx context.Context, state models.State) ([]*models.WorkflowResponse, error) {
	projections, err := h.repo.GetByState(ctx, state)
	if err != nil {
		return nil, wrapError("GetWorkflowsByState", fmt.Errorf("failed to list workflows: %w", err))
	}

	return h.respondAll(ctx, "GetWorkflowsByState", projections)
}

// StartWorkflow starts a created workflow and records a Started event.
func (h *Host[Req, C, W]) StartWorkflow(ctx context.Context, id string) (*models.WorkflowResponse, error) {
	return h.mutate(ctx, "StartWorkflow", id, func(ctx context.Context, wf W) (*change, error) {
		if !wf.CanStart() {
			return nil, fmt.Errorf("%w: workflow %s cannot start", ErrInvalidState, id)
		}

		err := wf.Start(ctx)
		if err != nil {
			return nil, err
		}

		return &change{eventType: models.HistoryEventStarted, description: "Workflow started"}, nil
	})
}

// HandleExternalEvent validates data against the event's schema once the
// workflow is known to exist and hands the event to the provider. Events the
// workflow cannot take fail with ErrUnsupportedEvent.
func (h *Host[Req, C, W]) HandleExternalEvent(
	ctx context.Context,
	id, eventType string,
	data map[string]any,
) (*models.WorkflowResponse, error) {
	if data == nil {
		data = map[string]any{}
	}

	schema, hasSchema := h.provider.EventSchemas()[eventType]

	return h.mutate(ctx, "HandleExternalEvent", id, func(ctx context.Context, wf W) (*change, error) {
		if hasSchema {
			err := validateJSONSchema(data, schema)
			if err != nil {
				return nil, NewValidationError("HandleExternalEvent", err.Error(), err)
			}
		}

		handled, err := h.provider.HandleExternalEvent(ctx, wf, eventType, data)
		if err != nil {
			return nil, err
		}

		if !handled {
			return nil, fmt.Errorf("%w: %q in state %s", ErrUnsupportedEvent, eventType, h.provider.CurrentState(wf))
		}

		return &change{eventType: eventType, description: "External event " + eventType, data: data}, nil
	})
}

// ProceedWorkflow is rejected at the generic layer; family specific hosts
// override it.
func (h *Host[Req, C, W]) ProceedWorkflow(_ context.Context, id string) (*models.WorkflowResponse, error) {
	return nil, wrapError("ProceedWorkflow", fmt.Errorf("%w: proceed for workflow %s", ErrUnsupported, id))
}

// Summary counts the persisted workflows.
func (h *Host[Req, C, W]) Summary(ctx context.Context) (models.Summary, error) {
	projections, err := h.repo.GetAll(ctx)
	if err != nil {
		return models.Summary{}, wrapError("Summary", fmt.Errorf("failed to list workflows: %w", err))
	}

	return models.NewSummary(h.own(projections)), nil
}

// DeleteWorkflow evicts the live instance, cancels its timer and deletes the
// projection, reporting whether one existed.
func (h *Host[Req, C, W]) DeleteWorkflow(ctx context.Context, id string) (bool, error) {
	ctx, span := otelhelper.StartSpan(ctx, h.tracer, "host.delete_workflow",
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	unlock := h.locks.Lock(id)
	defer unlock()

	h.live.Delete(id)
	h.timers.Cancel(id)

	existed, err := h.repo.Delete(ctx, id)
	if err != nil {
		otelhelper.SetError(span, err)

		return false, wrapError("DeleteWorkflow", fmt.Errorf("failed to delete workflow: %w", err))
	}

	if existed {
		h.logger.InfoContext(ctx, "Workflow deleted", "workflow_id", id)
		h.publish(ctx, id, events.WorkflowDeleted{
			BaseEvent: events.NewBaseEvent(events.WorkflowDeletedEvent, id),
		})
	}

	return existed, nil
}

// Wake resumes a waiting workflow whose timer is due and records a
// WaitElapsed event. It reports whether the workflow moved.
func (h *Host[Req, C, W]) Wake(ctx context.Context, id string) (bool, error) {
	resumed := false

	_, err := h.mutate(ctx, "Wake", id, func(ctx context.Context, wf W) (*change, error) {
		resumer, ok := any(wf).(workflow.Resumer)
		if !ok {
			return nil, nil
		}

		moved, err := resumer.Resume(ctx)
		if err != nil || !moved {
			return nil, err
		}

		resumed = true

		return &change{eventType: models.HistoryEventWaitElapsed, description: "Wait period elapsed"}, nil
	})

	return resumed, err
}

// Sweep wakes every non-terminal workflow whose wait is due. It backs up the
// in-process timers after a restart.
func (h *Host[Req, C, W]) Sweep(ctx context.Context) (int, error) {
	projections, err := h.repo.GetAll(ctx)
	if err != nil {
		return 0, wrapError("Sweep", fmt.Errorf("failed to list workflows: %w", err))
	}

	var (
		woken int
		errs  []error
	)

	for _, projection := range h.own(projections) {
		if projection.State.IsTerminal() {
			continue
		}

		moved, err := h.Wake(ctx, projection.ID)
		if err != nil {
			if IsNotFound(err) || IsInvalidState(err) {
				continue
			}

			h.logger.ErrorContext(ctx, "Failed to wake workflow", "workflow_id", projection.ID, "error", err)
			errs = append(errs, err)

			continue
		}

		if moved {
			woken++
		}
	}

	return woken, errors.Join(errs...)
}

// mutate runs apply on the live instance of id under its lock and records
// the returned change. A nil change records nothing.
func (h *Host[Req, C, W]) mutate(
	ctx context.Context,
	op, id string,
	apply func(ctx context.Context, wf W) (*change, error),
) (*models.WorkflowResponse, error) {
	ctx, span := otelhelper.StartSpan(ctx, h.tracer, "host."+strings.ToLower(op),
		attribute.String(otelhelper.WorkflowIDKey, id))
	defer span.End()

	unlock := h.locks.Lock(id)
	defer unlock()

	ctx = log.WithContext(ctx, h.logger.With("workflow_id", id))

	response, err := h.mutateLocked(ctx, id, apply)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, wrapError(op, err)
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowStateKey, string(response.State)))

	return response, nil
}

func (h *Host[Req, C, W]) mutateLocked(
	ctx context.Context,
	id string,
	apply func(ctx context.Context, wf W) (*change, error),
) (*models.WorkflowResponse, error) {
	projection, err := h.load(ctx, id)
	if err != nil {
		return nil, err
	}

	if projection.State.IsTerminal() {
		return nil, fmt.Errorf("%w: workflow %s is %s", ErrInvalidState, id, projection.State)
	}

	wf, err := h.instance(ctx, projection)
	if err != nil {
		return nil, err
	}

	from := h.provider.CurrentState(wf)

	ch, err := apply(ctx, wf)
	if err != nil {
		// The instance may have moved without being persisted; rebuild it
		// from the projection next time.
		h.live.Delete(id)

		return nil, err
	}

	if ch == nil {
		h.syncTimer(wf, id)

		return h.respond(projection, wf), nil
	}

	err = h.record(ctx, projection, wf, from, *ch)
	if err != nil {
		h.live.Delete(id)

		return nil, err
	}

	return h.respond(projection, wf), nil
}

func (h *Host[Req, C, W]) record(ctx context.Context, projection *models.WorkflowProjection, wf W, from models.State, ch change) error {
	c := h.provider.Context(wf)
	wc := h.provider.Wrap(c).Clone()
	to := h.provider.CurrentState(wf)
	now := h.clock()

	projection.State = to
	projection.Context = wc
	projection.UpdatedAt = now
	projection.Metadata = h.provider.Metadata(c)
	projection.ErrorMessage = nil

	if msg := wc.ErrorMessage(); msg != "" {
		projection.ErrorMessage = &msg
	}

	projection.AppendHistory(models.HistoryEvent{
		Timestamp:   now,
		EventType:   ch.eventType,
		FromState:   from,
		ToState:     to,
		Description: ch.description,
		Data:        ch.data,
	})

	err := h.repo.Update(ctx, projection)
	if err != nil {
		return fmt.Errorf("failed to persist workflow: %w", err)
	}

	h.syncTimer(wf, projection.ID)

	h.logger.InfoContext(ctx, "Workflow event recorded",
		"workflow_id", projection.ID,
		"event", ch.eventType,
		"from", from,
		"to", to)

	h.publish(ctx, projection.ID, events.WorkflowTransitioned{
		BaseEvent:    events.NewBaseEvent(events.WorkflowTransitionedEvent, projection.ID),
		WorkflowType: projection.WorkflowType,
		HistoryEvent: ch.eventType,
		FromState:    from,
		ToState:      to,
		Data:         ch.data,
	})

	switch {
	case to.IsSuccessful():
		h.publish(ctx, projection.ID, events.WorkflowCompleted{
			BaseEvent:    events.NewBaseEvent(events.WorkflowCompletedEvent, projection.ID),
			WorkflowType: projection.WorkflowType,
			State:        to,
		})
	case to == models.StateFailed:
		h.publish(ctx, projection.ID, events.WorkflowFailed{
			BaseEvent:    events.NewBaseEvent(events.WorkflowFailedEvent, projection.ID),
			WorkflowType: projection.WorkflowType,
			Error:        wc.ErrorMessage(),
		})
	}

	return nil
}

func (h *Host[Req, C, W]) load(ctx context.Context, id string) (*models.WorkflowProjection, error) {
	projection, err := h.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	if projection == nil || projection.Context.Kind != h.provider.Kind() {
		return nil, persistence.NewWorkflowError("GetByID", id, ErrWorkflowNotFound)
	}

	return projection, nil
}

// own keeps the projections of the host's family.
func (h *Host[Req, C, W]) own(projections []*models.WorkflowProjection) []*models.WorkflowProjection {
	return slices.DeleteFunc(projections, func(p *models.WorkflowProjection) bool {
		return p.Context.Kind != h.provider.Kind()
	})
}

// instance returns the cached live instance or rehydrates one from the
// projection's context. Callers hold the id lock.
func (h *Host[Req, C, W]) instance(ctx context.Context, projection *models.WorkflowProjection) (W, error) {
	if cached, ok := h.live.Get(projection.ID); ok {
		if wf, ok := cached.(W); ok {
			h.live.SetDefault(projection.ID, wf)

			return wf, nil
		}
	}

	var zero W

	c, err := h.provider.Unwrap(projection.Context)
	if err != nil {
		return zero, fmt.Errorf("failed to decode context of workflow %s: %w", projection.ID, err)
	}

	wf, err := h.provider.CreateWorkflow(c)
	if err != nil {
		return zero, fmt.Errorf("failed to rehydrate workflow %s: %w", projection.ID, err)
	}

	h.logger.DebugContext(ctx, "Workflow rehydrated",
		"workflow_id", projection.ID,
		"persisted_state", projection.State,
		"state", h.provider.CurrentState(wf))

	h.live.SetDefault(projection.ID, wf)
	h.syncTimer(wf, projection.ID)

	return wf, nil
}

func (h *Host[Req, C, W]) syncTimer(wf W, id string) {
	if timed, ok := any(wf).(workflow.Timed); ok {
		if at, due := timed.WakeAt(); due {
			h.timers.Schedule(id, at)

			return
		}
	}

	h.timers.Cancel(id)
}

func (h *Host[Req, C, W]) respond(projection *models.WorkflowProjection, wf W) *models.WorkflowResponse {
	return &models.WorkflowResponse{
		ID:           projection.ID,
		DisplayName:  projection.DisplayName,
		WorkflowType: projection.WorkflowType,
		State:        h.observedState(wf),
		Status:       h.provider.CurrentStatus(wf),
		CreatedAt:    projection.CreatedAt,
		UpdatedAt:    projection.UpdatedAt,
		ErrorMessage: projection.ErrorMessage,
		Progress:     h.provider.CalculateProgress(projection, wf),
		Metadata:     projection.Metadata,
		Context:      projection.Context.Clone(),
	}
}

// observedState is the state wf reports to readers: an elapsed wait that
// has not been resumed yet is shown as already resumed.
func (h *Host[Req, C, W]) observedState(wf W) models.State {
	if observer, ok := any(wf).(workflow.Observer); ok {
		return observer.ObservedState()
	}

	return h.provider.CurrentState(wf)
}

func (h *Host[Req, C, W]) respondAll(ctx context.Context, op string, projections []*models.WorkflowProjection) ([]*models.WorkflowResponse, error) {
	projections = h.own(projections)
	responses := make([]*models.WorkflowResponse, 0, len(projections))

	for _, projection := range projections {
		response, err := h.view(ctx, projection)
		if err != nil {
			return nil, wrapError(op, err)
		}

		responses = append(responses, response)
	}

	return responses, nil
}

func (h *Host[Req, C, W]) view(ctx context.Context, projection *models.WorkflowProjection) (*models.WorkflowResponse, error) {
	unlock := h.locks.Lock(projection.ID)
	defer unlock()

	wf, err := h.instance(ctx, projection)
	if err != nil {
		return nil, err
	}

	return h.respond(projection, wf), nil
}

func (h *Host[Req, C, W]) publish(ctx context.Context, key string, event eventbus.Event) {
	if h.publisher == nil {
		return
	}

	err := h.publisher.Publish(ctx, key, event)
	if err != nil {
		h.logger.WarnContext(ctx, "Failed to publish event", "event_type", event.GetType(), "workflow_id", key, "error", err)
	}
}

// validateJSONSchema validates event data against the provided JSON schema.
func validateJSONSchema(data map[string]any, schema map[string]any) error {
	schemaLoader := gojsonschema.NewGoLoader(schema)
	dataLoader := gojsonschema.NewGoLoader(data)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate event data: %w", err)
	}

	if !result.Valid() {
		var errs []string
		for _, desc := range result.Errors() {
			errs = append(errs, desc.String())
		}

		return fmt.Errorf("validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
