package tracer

import (
	"bytes"
	"context"
	"testing"

	"github.com/aalemi-dev/chrometrace/chrometrace"
	"github.com/aalemi-dev/chrometrace/sink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"
)

func TestFXModule_ProvidesTracerWithoutLayer(t *testing.T) {
	t.Parallel()
	var tr Tracer

	app := fxtest.New(t,
		FXModule,
		fx.Supply(Config{ServiceName: "fx-test", AppEnv: "test"}),
		fx.Populate(&tr),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.NotNil(t, tr)
}

func TestFXModule_FeedsLayer(t *testing.T) {
	t.Parallel()
	var buf bytes.Buffer
	var tr Tracer
	var layer *chrometrace.ChromeLayer

	app := fxtest.New(t,
		chrometrace.FXModule,
		FXModule,
		fx.Supply(chrometrace.Config{}),
		fx.Supply(Config{ServiceName: "fx-test"}),
		fx.Provide(func() chrometrace.Sink { return sink.NewWriter(&buf) }),
		fx.Populate(&tr, &layer),
	)
	app.RequireStart()

	_, span := tr.StartSpan(context.Background(), "request")
	span.End()
	app.RequireStop()

	assert.Equal(t, chrometrace.StateClosed, layer.State())
	assert.Contains(t, buf.String(), `"name":"request"`)
	assert.Equal(t, int64(2), layer.Diagnostics().EventsWritten)
}

func TestRegisterTracerLifecycle_NilProvider(t *testing.T) {
	t.Parallel()
	client := &TracerClient{}

	app := fxtest.New(t,
		fx.Provide(func() *TracerClient { return client }),
		fx.Invoke(RegisterTracerLifecycle),
	)
	app.RequireStart()
	assert.NotPanics(t, func() { app.RequireStop() })
}

func TestNewClientWithDI(t *testing.T) {
	t.Parallel()
	client, err := NewClientWithDI(TracerParams{Config: Config{ServiceName: "di"}})
	require.NoError(t, err)
	require.NoError(t, client.Shutdown(context.Background()))
}
