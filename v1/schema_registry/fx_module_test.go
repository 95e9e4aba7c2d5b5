package schema_registry

import (
	"testing"

	"github.com/Aleph-Alpha/serde/v1/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestFXModule(t *testing.T) {
	srv := newRegistryServer(t, nil)
	obs := &recordingObserver{}

	var (
		client   *Client
		registry Registry
		factory  ClientFactory
	)
	app := fxtest.New(t,
		FXModule,
		fx.Provide(
			func() Config { return Config{URL: srv.URL} },
			func() observability.Observer { return obs },
		),
		fx.Populate(&client, &registry, &factory),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Same(t, client, registry)

	subjects, err := registry.GetSubjects()
	require.NoError(t, err)
	assert.Equal(t, []string{"orders-value"}, subjects)

	fresh, err := factory()
	require.NoError(t, err)
	assert.NotSame(t, client, fresh)

	_, err = fresh.GetSchemaByID(7)
	require.NoError(t, err)
	assert.Len(t, obs.operations(), 2)
}

func TestFXModuleRejectsBadConfig(t *testing.T) {
	app := fx.New(
		FXModule,
		fx.Provide(func() Config { return Config{} }),
		fx.Invoke(func(Registry) {}),
		fx.NopLogger,
	)
	assert.Error(t, app.Err())
}
