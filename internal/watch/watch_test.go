package watch

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRelevant_MatchesOnlyTheConfiguredPaths(t *testing.T) {
	w := &Watcher{centersPath: "/data/centers.json", ordersPath: "/data/orders.json"}

	assert.True(t, w.relevant("/data/centers.json"))
	assert.True(t, w.relevant("/data/orders.json"))
	assert.False(t, w.relevant("/data/other.json"))
}

func TestUniqueDirs_DedupesSharedDirectoryAndSkipsEmpty(t *testing.T) {
	dirs := uniqueDirs("/data/centers.json", "/data/orders.json", "")
	assert.Equal(t, []string{filepath.Clean("/data")}, dirs)
}

func TestUniqueDirs_KeepsDistinctDirectories(t *testing.T) {
	dirs := uniqueDirs("/a/centers.json", "/b/orders.json")
	assert.ElementsMatch(t, []string{filepath.Clean("/a"), filepath.Clean("/b")}, dirs)
}
