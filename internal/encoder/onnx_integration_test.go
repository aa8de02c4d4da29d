//go:build integration

package encoder

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aseker00/alephbert/internal/testutil"
)

func TestONNXEncoderIntegration(t *testing.T) {
	testutil.RequireONNXRuntime(t)
	modelPath, dim := testutil.RequireEncoderModel(t)

	enc, err := NewONNXEncoder(ONNXConfig{ModelPath: modelPath, Dim: dim})
	require.NoError(t, err)

	defer func() { require.NoError(t, enc.Close()) }()

	ids := []int64{2, 10, 11, 3}
	mask := []int64{1, 1, 1, 1}

	out, err := enc.Encode(context.Background(), ids, mask)
	require.NoError(t, err)
	require.Equal(t, []int64{4, int64(dim)}, out.Shape())

	again, err := enc.Encode(context.Background(), ids, mask)
	require.NoError(t, err)
	require.InDeltaSlice(t, out.Data(), again.Data(), 1e-5)

	require.NoError(t, enc.Close())
	_, err = enc.Encode(context.Background(), ids, mask)
	require.ErrorIs(t, err, ErrClosed)
}
