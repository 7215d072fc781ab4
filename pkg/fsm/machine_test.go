package fsm_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/cleanup/pkg/fsm"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type door struct {
	locked  bool
	entered []string
}

func newDoor(d *door) *fsm.Machine[*door, string, string] {
	m := fsm.New[*door, string, string](d, "closed")

	m.Configure("closed").
		PermitIf("open", "opened", func(d *door) bool { return !d.locked }).
		Permit("lock", "locked")

	m.Configure("opened").
		Permit("close", "closed").
		OnEntry(func(_ context.Context, d *door) error {
			d.entered = append(d.entered, "opened")

			return nil
		})

	m.Configure("locked").
		Permit("unlock", "closed").
		OnEntry(func(_ context.Context, d *door) error {
			d.locked = true

			return nil
		})

	return m
}

func TestMachine_Fire(t *testing.T) {
	t.Parallel()

	d := &door{}
	m := newDoor(d)

	outcome, err := m.Fire(t.Context(), "open")
	require.NoError(t, err)
	assert.Equal(t, fsm.Transitioned, outcome)
	assert.Equal(t, "opened", m.State())
	assert.Equal(t, []string{"opened"}, d.entered)
}

func TestMachine_FireUnconfiguredTriggerIsIgnored(t *testing.T) {
	t.Parallel()

	d := &door{}
	m := newDoor(d)

	outcome, err := m.Fire(t.Context(), "unlock")
	require.NoError(t, err)
	assert.Equal(t, fsm.Ignored, outcome)
	assert.Equal(t, "closed", m.State())
	assert.Empty(t, d.entered)
}

func TestMachine_GuardRejects(t *testing.T) {
	t.Parallel()

	d := &door{locked: true}
	m := newDoor(d)

	assert.False(t, m.CanFire("open"))
	assert.Equal(t, []string{"lock"}, m.PermittedTriggers())

	outcome, err := m.Fire(t.Context(), "open")
	require.NoError(t, err)
	assert.Equal(t, fsm.Ignored, outcome)
	assert.True(t, m.IsInState("closed"))
}

func TestMachine_PermittedTriggers(t *testing.T) {
	t.Parallel()

	m := newDoor(&door{})

	assert.Equal(t, []string{"open", "lock"}, m.PermittedTriggers())
	assert.True(t, m.CanFire("lock"))
	assert.False(t, m.CanFire("close"))
}

func TestMachine_EntryActionCanFire(t *testing.T) {
	t.Parallel()

	m := fsm.New[*door, string, string](&door{}, "a")
	m.Configure("a").Permit("go", "b")
	m.Configure("b").Permit("next", "c").OnEntry(func(ctx context.Context, _ *door) error {
		_, err := m.Fire(ctx, "next")

		return err
	})

	outcome, err := m.Fire(t.Context(), "go")
	require.NoError(t, err)
	assert.Equal(t, fsm.Transitioned, outcome)
	assert.Equal(t, "c", m.State())
}

func TestMachine_EntryActionError(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	m := fsm.New[*door, string, string](&door{}, "a")
	m.Configure("a").Permit("go", "b")
	m.Configure("b").OnEntry(func(context.Context, *door) error { return boom })

	outcome, err := m.Fire(context.Background(), "go")
	require.ErrorIs(t, err, boom)
	assert.Equal(t, fsm.Transitioned, outcome)
	assert.Equal(t, "b", m.State())
}
