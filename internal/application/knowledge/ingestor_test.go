package knowledge

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkText(t *testing.T) {
	t.Run("short text single chunk", func(t *testing.T) {
		chunks := ChunkText("hello world", 800, 120)
		require.Len(t, chunks, 1)
		assert.Equal(t, "hello world", chunks[0])
	})

	t.Run("empty text", func(t *testing.T) {
		assert.Nil(t, ChunkText("   ", 800, 120))
	})

	t.Run("long text overlaps", func(t *testing.T) {
		text := strings.Repeat("a", 2000)
		chunks := ChunkText(text, 800, 120)
		// 步长 680：0..800, 680..1480, 1360..2000
		require.Len(t, chunks, 3)
		assert.Len(t, chunks[0], 800)
		assert.Len(t, chunks[1], 800)
		assert.Len(t, chunks[2], 640)
	})

	t.Run("carriage returns stripped", func(t *testing.T) {
		chunks := ChunkText("line1\r\nline2\r", 800, 0)
		require.Len(t, chunks, 1)
		assert.NotContains(t, chunks[0], "\r")
	})

	t.Run("invalid overlap falls back to no overlap", func(t *testing.T) {
		text := strings.Repeat("b", 100)
		chunks := ChunkText(text, 50, 60)
		require.Len(t, chunks, 2)
	})
}
