package watch

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWatcherDebouncesRebuilds(t *testing.T) {
	root := t.TempDir()

	rebuilt := make(chan struct{}, 16)
	w, err := New(root, 50*time.Millisecond, func() {
		rebuilt <- struct{}{}
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	// A burst of writes should settle into at least one rebuild.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("v"), 0644))
		time.Sleep(10 * time.Millisecond)
	}

	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never triggered a rebuild")
	}
}

func TestWatcherPicksUpNewDirectories(t *testing.T) {
	root := t.TempDir()

	rebuilt := make(chan struct{}, 16)
	w, err := New(root, 50*time.Millisecond, func() {
		rebuilt <- struct{}{}
	}, nil)
	require.NoError(t, err)
	defer w.Close()

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher never saw the new directory")
	}

	// Drain, then touch a file inside the new directory.
	for {
		select {
		case <-rebuilt:
			continue
		case <-time.After(200 * time.Millisecond):
		}
		break
	}

	require.NoError(t, os.WriteFile(filepath.Join(sub, "b.txt"), []byte("v"), 0644))
	select {
	case <-rebuilt:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher missed events inside the new directory")
	}
}
