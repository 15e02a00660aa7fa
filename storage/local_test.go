package storage

import (
	"context"
	"os"
	"strings"
	"testing"

	"ecommerce-backend/apperrors"
	"ecommerce-backend/logging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSink(t *testing.T) *LocalSink {
	t.Helper()
	sink, err := NewLocalSink(t.TempDir(), "/uploads/", logging.Discard())
	require.NoError(t, err)
	return sink
}

func TestLocalSink_StoreThenFetch(t *testing.T) {
	sink := newSink(t)
	ctx := context.Background()

	art, err := sink.Store(ctx, []byte("%PDF-1.3"), "invoice_order_1.pdf")
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(art.FileName, ".pdf"))
	assert.Equal(t, art.ID+".pdf", art.FileName)

	data, err := os.ReadFile(art.Path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3", string(data))

	info, err := sink.Fetch(ctx, art.FileName)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, int64(8), info.Size)
	assert.Equal(t, "/uploads/"+art.FileName, sink.PublicURL(art.FileName))
}

func TestLocalSink_FetchMissingIsNil(t *testing.T) {
	sink := newSink(t)

	info, err := sink.Fetch(context.Background(), "nope.pdf")

	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestLocalSink_DefaultExtension(t *testing.T) {
	sink := newSink(t)

	art, err := sink.Store(context.Background(), []byte("x"), "blob")

	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(art.FileName, ".bin"))
}

func TestLocalSink_RejectsTraversal(t *testing.T) {
	sink := newSink(t)

	for _, name := range []string{"../etc/passwd", "a/b.pdf", "", ".hidden"} {
		_, err := sink.Fetch(context.Background(), name)
		var validation *apperrors.ValidationError
		assert.ErrorAs(t, err, &validation, name)
	}
}

func TestLocalSink_DeleteIsIdempotent(t *testing.T) {
	sink := newSink(t)
	ctx := context.Background()

	art, err := sink.Store(ctx, []byte("x"), "a.pdf")
	require.NoError(t, err)

	require.NoError(t, sink.Delete(ctx, art.FileName))
	require.NoError(t, sink.Delete(ctx, art.FileName))

	info, err := sink.Fetch(ctx, art.FileName)
	require.NoError(t, err)
	assert.Nil(t, info)
}
