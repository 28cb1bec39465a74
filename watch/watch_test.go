package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestRunDebounces(t *testing.T) {
	as := require.New(t)
	logger := zaptest.NewLogger(t)

	dir := t.TempDir()
	watched := filepath.Join(dir, "webpack.config.js")
	other := filepath.Join(dir, "other.js")
	as.NoError(os.WriteFile(watched, []byte("module.exports = {};"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := make(chan []string, 4)
	done := make(chan error, 1)
	go func() {
		done <- Run(ctx, logger, []string{watched}, 50*time.Millisecond, func(ctx context.Context, changed []string) error {
			calls <- changed
			return nil
		})
	}()

	// give the watcher time to register
	time.Sleep(100 * time.Millisecond)

	as.NoError(os.WriteFile(other, []byte("x"), 0o644))
	for i := 0; i < 3; i++ {
		as.NoError(os.WriteFile(watched, []byte("module.exports = {entry: 'a'};"), 0o644))
	}

	select {
	case changed := <-calls:
		as.Equal([]string{watched}, changed)
	case <-time.After(5 * time.Second):
		t.Fatal("onChange was not called")
	}

	select {
	case changed := <-calls:
		t.Fatalf("unexpected second call with %v", changed)
	case <-time.After(200 * time.Millisecond):
	}

	cancel()
	as.NoError(<-done)
}

func TestRunRequiresLogger(t *testing.T) {
	as := require.New(t)

	err := Run(context.Background(), nil, nil, 0, nil)
	as.Error(err)
}
