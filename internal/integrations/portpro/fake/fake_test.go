package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/abakymuk/nsl-sub001/internal/integrations/portpro"
	"github.com/stretchr/testify/require"
)

func TestClient_Pages(t *testing.T) {
	c := New(portpro.Load{ContainerNo: "A"}, portpro.Load{ContainerNo: "B"}, portpro.Load{ContainerNo: "C"})
	ctx := context.Background()

	p, err := c.FetchLoads(ctx, 0, 2)
	require.NoError(t, err)
	require.Equal(t, 3, p.Count)
	require.Len(t, p.Loads, 2)

	p, err = c.FetchLoads(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, p.Loads, 1)
	require.Equal(t, "C", p.Loads[0].ContainerNo)

	p, err = c.FetchLoads(ctx, 10, 2)
	require.NoError(t, err)
	require.Empty(t, p.Loads)
	require.Equal(t, 3, c.Calls())
}

func TestClient_FailWith(t *testing.T) {
	c := New()
	boom := errors.New("boom")
	c.FailWith(boom)

	_, err := c.FetchLoads(context.Background(), 0, 10)
	require.ErrorIs(t, err, boom)
}
