package sequence

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySequenceDistinctUnderConcurrency(t *testing.T) {
	seq := NewMemory(100000, 999999)

	const n = 200
	var wg sync.WaitGroup
	codes := make(chan string, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := seq.NextRideCode(context.Background())
			assert.NoError(t, err)
			codes <- code
		}()
	}
	wg.Wait()
	close(codes)

	seen := make(map[string]bool, n)
	for code := range codes {
		require.False(t, seen[code], "duplicate code %s", code)
		seen[code] = true
	}
	assert.Len(t, seen, n)
}

func TestMemorySequenceWrapsToFloor(t *testing.T) {
	seq := NewMemory(100000, 100002)

	want := []string{"RID100000", "RID100001", "RID100002", "RID100000"}
	for _, w := range want {
		code, err := seq.NextRideCode(context.Background())
		require.NoError(t, err)
		assert.Equal(t, w, code)
	}
}

func TestFallbackCodeShape(t *testing.T) {
	code := FallbackCode()
	assert.True(t, strings.HasPrefix(code, "RID"))
	assert.Len(t, code, len("RID")+9)
}
