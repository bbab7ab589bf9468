package host

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/mcphub/mcphub/pkg/config"
	"github.com/mcphub/mcphub/pkg/installer"
	"github.com/mcphub/mcphub/pkg/protocol"
)

func TestDispatch_RecordsSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	store := config.NewStore(t.TempDir() + "/" + config.FileName)
	d := NewDispatcher(store, &installer.Set{}, WithTracerProvider(tp))

	ok := d.Dispatch(context.Background(), []byte(`{"type":"GET_CONFIG"}`))
	require.True(t, ok.Success, ok.Error)
	bad := d.Dispatch(context.Background(), []byte(`{"type":"NOPE"}`))
	require.False(t, bad.Success)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "dispatch GET_CONFIG", spans[0].Name())
	assert.Equal(t, codes.Unset, spans[0].Status().Code)
	assert.Equal(t, "dispatch NOPE", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, protocol.MsgUnknownMessageType, spans[1].Status().Description)
}
