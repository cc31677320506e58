package sink_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/polyload/pkg/config"
	"github.com/ajitpratap0/polyload/pkg/errors"
	"github.com/ajitpratap0/polyload/pkg/models"
	"github.com/ajitpratap0/polyload/pkg/sink"
	"github.com/ajitpratap0/polyload/pkg/testutil"
)

func init() {
	sink.MustRegister("recording", func(cfg config.SinkConfig) (sink.Sink, error) {
		return testutil.NewRecordingSink(cfg.Name), nil
	})
	sink.MustRegister("broken", func(cfg config.SinkConfig) (sink.Sink, error) {
		return nil, fmt.Errorf("bad uri %s", cfg.URI)
	})
}

func records(n int) []*models.Record {
	out := make([]*models.Record, n)
	for i := range out {
		out[i] = models.NewRecord([]string{"id"}, []interface{}{int64(i)})
	}
	return out
}

func TestRegister_Duplicate(t *testing.T) {
	err := sink.Register("recording", nil)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	assert.Contains(t, sink.Kinds(), "recording")
}

func TestBuild_OrderAndDisabled(t *testing.T) {
	sinks, err := sink.Build([]config.SinkConfig{
		{Name: "b", Type: "recording", URI: "mem://b"},
		{Name: "skip", Type: "recording", URI: "mem://skip", Disabled: true},
		{Name: "a", Type: "recording", URI: "mem://a"},
	})
	require.NoError(t, err)
	require.Len(t, sinks, 2)
	assert.Equal(t, "b", sinks[0].Name())
	assert.Equal(t, "a", sinks[1].Name())
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.SinkConfig
	}{
		{"unknown type", config.SinkConfig{Name: "x", Type: "redis", URI: "redis://"}},
		{"factory failure", config.SinkConfig{Name: "x", Type: "broken", URI: "nope://"}},
		{"missing uri", config.SinkConfig{Name: "x", Type: "recording"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := sink.Build([]config.SinkConfig{tt.cfg})
			require.Error(t, err)
			assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
		})
	}
}

func TestBase_LazyConnectOnce(t *testing.T) {
	s := testutil.NewRecordingSink("mem")
	ctx := context.Background()
	assert.Equal(t, sink.Disconnected, s.State())

	require.NoError(t, s.InsertBatch(ctx, "books", records(2)))
	require.NoError(t, s.InsertBatch(ctx, "books", records(1)))

	assert.Equal(t, sink.Connected, s.State())
	assert.Equal(t, 1, s.Connects())
	assert.Len(t, s.Stored("books"), 3)
}

func TestBase_ConnectFailureIsAttributed(t *testing.T) {
	s := testutil.NewRecordingSink("mem")
	s.FailConnect = fmt.Errorf("dial tcp: refused")

	err := s.InsertBatch(context.Background(), "tags", records(1))
	var se *errors.SinkError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "mem", se.Sink)
	assert.Equal(t, "tags", se.Target)
	assert.Equal(t, errors.ErrorTypeConnection, se.Kind)
	assert.Equal(t, sink.Disconnected, s.State())
}

func TestTestConnection_NeverFails(t *testing.T) {
	healthy := testutil.NewRecordingSink("ok")
	assert.True(t, healthy.TestConnection(context.Background()))

	down := testutil.NewRecordingSink("down")
	down.FailConnect = fmt.Errorf("no route to host")
	assert.False(t, down.TestConnection(context.Background()))
}

func TestTarget(t *testing.T) {
	plain := testutil.NewRecordingSink("plain")
	graph := testutil.NewRecordingSink("graph")
	graph.Graph = true

	assert.Equal(t, "books", sink.Target(plain, "books"))
	assert.Equal(t, "Book", sink.Target(graph, "books"))
}

func TestCloseAll(t *testing.T) {
	a := testutil.NewRecordingSink("a")
	b := testutil.NewRecordingSink("b")
	require.NoError(t, sink.CloseAll(context.Background(), []sink.Sink{a, b}))
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "disconnected", sink.Disconnected.String())
	assert.Equal(t, "connected", sink.Connected.String())
}
