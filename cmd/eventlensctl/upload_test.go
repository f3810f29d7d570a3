package main

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/eventlens/internal/config"
	"github.com/your-org/eventlens/internal/notify"
)

func TestChunk(t *testing.T) {
	paths := []string{"a", "b", "c", "d", "e"}

	assert.Equal(t, [][]string{{"a", "b"}, {"c", "d"}, {"e"}}, chunk(paths, 2))
	assert.Equal(t, [][]string{{"a", "b", "c", "d", "e"}}, chunk(paths, 20))
	assert.Nil(t, chunk(nil, 20))
}

func TestCollectPhotos(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "day2")
	require.NoError(t, os.Mkdir(sub, 0o755))
	for _, name := range []string{"a.JPG", "b.png", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644))
	}
	require.NoError(t, os.WriteFile(filepath.Join(sub, "c.jpeg"), []byte("x"), 0o644))

	flat, err := collectPhotos([]string{dir}, false)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{filepath.Join(dir, "a.JPG"), filepath.Join(dir, "b.png")}, flat)

	deep, err := collectPhotos([]string{dir}, true)
	require.NoError(t, err)
	assert.Len(t, deep, 3)
	assert.Contains(t, deep, filepath.Join(sub, "c.jpeg"))

	_, err = collectPhotos([]string{filepath.Join(dir, "a.JPG")}, false)
	assert.Error(t, err)
}

func TestFileJob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gala.jpg")
	require.NoError(t, os.WriteFile(path, []byte("jpeg"), 0o644))

	job := fileJob(path)
	assert.Equal(t, "gala.jpg", job.Filename)

	rc, err := job.Open()
	require.NoError(t, err)
	defer rc.Close()
	buf := make([]byte, 4)
	_, err = rc.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(buf))
}

type countingSender struct {
	mu   sync.Mutex
	sent int
}

func (s *countingSender) Send(ctx context.Context, n notify.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	return nil
}

func TestQueuedNotifier_DoesNotDropOnSmallQueue(t *testing.T) {
	sender := &countingSender{}
	d := notify.NewDispatcher(sender, config.NotifyConfig{Workers: 1, QueueSize: 1})
	d.Start(context.Background())

	q := queuedNotifier{ctx: context.Background(), dispatcher: d}
	for i := 0; i < 50; i++ {
		q.Notify(notify.Notification{To: "ann@example.com", EventName: "Gala"})
	}
	d.Close()

	assert.Equal(t, 50, sender.sent)
	assert.Zero(t, d.Dropped())
}
