package sources

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wavescope/wavescope/internal/audiocore"
)

const testRate = 8000

func testOptions() Options {
	return Options{SampleRate: testRate, BufferSeconds: 1}
}

func mustSource(t *testing.T, desc string) audiocore.Source {
	t.Helper()
	d, err := audiocore.ParseDescriptor(desc, testRate)
	require.NoError(t, err)
	src, err := New(d, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = src.Close() })
	return src
}

// drain polls src like the merger does until it reports an error or the
// deadline passes, and returns every frame it produced.
func drain(t *testing.T, src audiocore.Source, timeout time.Duration) []int16 {
	t.Helper()
	var out []int16
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		src.Poll()
		if n := src.Available(); n > 0 {
			out = append(out, src.Frames(n)...)
			src.Consume(n)
			continue
		}
		if src.Err() != nil {
			return out
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("source %s did not finish within %v", src.Name(), timeout)
	return nil
}
