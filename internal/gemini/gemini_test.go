package gemini

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daleelapp/daleel/internal/log"
)

// newLiveClient skips unless GEMINI_API_KEY is set; these tests hit the
// real API.
func newLiveClient(t *testing.T) *Client {
	t.Helper()

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		t.Skip("GEMINI_API_KEY not set - skipping Gemini integration test")
	}

	client, err := New(context.Background(), Config{
		APIKey:        apiKey,
		ModelName:     "gemini-2.5-flash",
		EmbedderModel: "gemini-embedding-001",
		Dimension:     768,
	}, log.NewNop())
	require.NoError(t, err)
	return client
}

func TestNewRequiresAPIKey(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{
		ModelName:     "gemini-2.5-flash",
		EmbedderModel: "gemini-embedding-001",
		Dimension:     768,
	}, log.NewNop())
	assert.Error(t, err)
}

func TestEmbedIntegration(t *testing.T) {
	client := newLiveClient(t)
	ctx := context.Background()

	vectors, err := client.Embed(ctx, []string{"first text", "second text"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Len(t, vectors[0], 768)
	assert.Len(t, vectors[1], 768)
	assert.NotEqual(t, vectors[0], vectors[1])
}

func TestGenerateIntegration(t *testing.T) {
	client := newLiveClient(t)

	out, err := client.Generate(context.Background(), "Reply with exactly the word: ok")
	require.NoError(t, err)
	assert.NotEmpty(t, out)
}

func TestStreamIntegration(t *testing.T) {
	client := newLiveClient(t)

	var got string
	for text, err := range client.Stream(context.Background(), "Count from 1 to 5.") {
		require.NoError(t, err)
		got += text
	}
	assert.NotEmpty(t, got)
}
