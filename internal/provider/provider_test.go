package provider

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundRobinOrder(t *testing.T) {
	p := New([]string{"a", "b", "c"}, "fallback")

	// k full rotations return each element exactly k times, in order.
	var got []string
	for i := 0; i < 9; i++ {
		got = append(got, p.Next())
	}
	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c", "a", "b", "c"}, got)
}

func TestRoundRobinEmptyUsesFallback(t *testing.T) {
	p := New(nil, "默认查询")
	assert.Equal(t, "默认查询", p.Next())
	assert.Equal(t, 1, p.Len())

	// No values and no fallback: Next yields the empty string.
	empty := New(nil, "")
	assert.Equal(t, "", empty.Next())
	assert.Equal(t, 0, empty.Len())
}

func TestRoundRobinConcurrent(t *testing.T) {
	values := []string{"q1", "q2", "q3", "q4"}
	p := New(values, "")

	const callers = 8
	const perCaller = 50 // callers*perCaller = 400 = 100 full rotations

	var mu sync.Mutex
	counts := make(map[string]int)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make(map[string]int)
			for j := 0; j < perCaller; j++ {
				local[p.Next()]++
			}
			mu.Lock()
			for k, v := range local {
				counts[k] += v
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// The serialized effect must match a single-threaded replay: each
	// value handed out exactly (callers*perCaller)/len(values) times.
	require.Len(t, counts, len(values))
	for _, v := range values {
		assert.Equal(t, callers*perCaller/len(values), counts[v], "value %s", v)
	}
}

func TestNewFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queries.txt")
	content := "你好\n\nhow are you\n  \nquery three\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	p, err := NewFromFile(path, "default")
	require.NoError(t, err)
	assert.Equal(t, 3, p.Len())

	// Blank lines are skipped and original order is preserved.
	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, p.Next())
	}
	assert.Equal(t, []string{"你好", "how are you", "query three"}, got)
}

func TestNewFromFileMissingFallsBack(t *testing.T) {
	p, err := NewFromFile(filepath.Join(t.TempDir(), "missing.txt"), "默认")
	require.Error(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "默认", p.Next())
}
