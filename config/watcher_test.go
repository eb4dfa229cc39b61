package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherFiresOnContentChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - return: a\n"), 0o644))

	events := make(chan ChangeEvent, 1)
	w := NewWatcher(NewFileSource(path), func(evt ChangeEvent) {
		events <- evt
	}, WithDebounce(20*time.Millisecond))

	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, []byte("steps:\n  - return: b\n"), 0o644))

	select {
	case evt := <-events:
		assert.NotEqual(t, evt.OldHash, evt.NewHash)
		steps, ok := evt.Document.Get("steps")
		require.True(t, ok)
		assert.Len(t, steps.Array(), 1)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change event")
	}
}

func TestWatcherIgnoresRewriteWithIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "workflow.yaml")
	content := []byte("steps:\n  - return: a\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	events := make(chan ChangeEvent, 1)
	w := NewWatcher(NewFileSource(path), func(evt ChangeEvent) {
		events <- evt
	}, WithDebounce(20*time.Millisecond))

	require.NoError(t, w.Start())
	defer w.Stop()

	require.NoError(t, os.WriteFile(path, content, 0o644))

	select {
	case <-events:
		t.Fatal("unexpected change event for identical content")
	case <-time.After(300 * time.Millisecond):
	}
}
