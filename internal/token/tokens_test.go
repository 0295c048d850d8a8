package token

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/metadata"
)

func TestTokens_RoundTrip(t *testing.T) {
	md, err := Static("s3cret").GetRequestMetadata(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Bearer s3cret", md[MetadataKey])

	ctx := metadata.NewIncomingContext(context.Background(), metadata.New(md))
	require.NoError(t, Check(ctx, "s3cret"))
	require.ErrorIs(t, Check(ctx, "other"), ErrInvalidToken)
}

func TestCheck_Missing(t *testing.T) {
	require.ErrorIs(t, Check(context.Background(), "x"), ErrMissingToken)

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("other", "v"))
	require.ErrorIs(t, Check(ctx, "x"), ErrMissingToken)

	ctx = metadata.NewIncomingContext(context.Background(), metadata.Pairs(MetadataKey, "Basic x"))
	require.ErrorIs(t, Check(ctx, "x"), ErrInvalidToken)
}
