package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/booksy/booksy-server/internal/config"
	"github.com/booksy/booksy-server/internal/domain"
	domainerrors "github.com/booksy/booksy-server/internal/errors"
)

func TestInstanceService_InitializeInstance(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	instance, err := env.instance.GetInstance(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, instance.ID)
	assert.Equal(t, "Test Server", instance.Name)
	assert.Equal(t, "http://localhost:8080", instance.LocalURL)
	assert.Equal(t, config.Version, instance.Version)
	assert.True(t, instance.IsSetupRequired())

	// A second start keeps the same record.
	again, err := env.instance.InitializeInstance(ctx)
	require.NoError(t, err)
	assert.Equal(t, instance.ID, again.ID)
}

func TestInstanceService_SetRootUser_Once(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	require.NoError(t, env.instance.SetRootUser(ctx, "user-1"))

	required, err := env.instance.IsSetupRequired(ctx)
	require.NoError(t, err)
	assert.False(t, required)

	err = env.instance.SetRootUser(ctx, "user-2")
	assert.ErrorIs(t, err, domainerrors.ErrAlreadyConfigured)
}

func TestInstanceService_UpdateInstanceSettings(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	name := "Family Library"
	open := true
	instance, err := env.instance.UpdateInstanceSettings(ctx, InstanceUpdate{Name: &name, OpenRegistration: &open})
	require.NoError(t, err)
	assert.Equal(t, name, instance.Name)
	assert.True(t, instance.OpenRegistration)

	empty := ""
	_, err = env.instance.UpdateInstanceSettings(ctx, InstanceUpdate{Name: &empty})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)

	instance, err = env.instance.SetOpenRegistration(ctx, false)
	require.NoError(t, err)
	assert.False(t, instance.OpenRegistration)
}

func TestInstanceService_OnUpdate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	var seen []string
	env.instance.OnUpdate(func(inst *domain.Instance) { seen = append(seen, inst.Name) })

	name := "Attic Shelf"
	_, err := env.instance.UpdateInstanceSettings(ctx, InstanceUpdate{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, []string{"Attic Shelf"}, seen)

	empty := ""
	_, err = env.instance.UpdateInstanceSettings(ctx, InstanceUpdate{Name: &empty})
	require.Error(t, err)
	assert.Len(t, seen, 1, "failed updates do not notify")
}
