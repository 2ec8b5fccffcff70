package sources

import (
	"encoding/binary"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wavescope/wavescope/internal/audiocore"
	"github.com/wavescope/wavescope/internal/errors"
)

func s16le(values ...int16) []byte {
	b := make([]byte, 2*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint16(b[2*i:], uint16(v))
	}
	return b
}

func ramp(n int) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(i * 16)
	}
	return out
}

func TestRawFileSourcePlaysToEnd(t *testing.T) {
	samples := ramp(800) // 400 stereo frames
	path := filepath.Join(t.TempDir(), "capture.pcm")
	require.NoError(t, os.WriteFile(path, s16le(samples...), 0o600))

	src := mustSource(t, "raw:"+path+":s16:2")
	require.NoError(t, src.Open())
	assert.Equal(t, 2, src.Channels())
	assert.Equal(t, 4, src.FrameSize())

	got := drain(t, src, 5*time.Second)
	require.Len(t, got, len(samples))
	for i := range samples {
		require.InDelta(t, samples[i], got[i], 1, "sample %d", i)
	}
	assert.True(t, errors.IsCategory(src.Err(), errors.CategoryAudioSource))
	assert.Contains(t, src.Err().Error(), "end of input")
}

func TestRawFileMissing(t *testing.T) {
	src := mustSource(t, "raw:"+filepath.Join(t.TempDir(), "nope.pcm"))
	require.Error(t, src.Open())
	require.Error(t, src.Err())

	src.Poll()
	assert.Zero(t, src.Available(), "a failed source produces nothing")
}

func TestTCPSource(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	samples := ramp(1000)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write(s16le(samples...))
	}()

	src := mustSource(t, "tcp:"+ln.Addr().String()+":s16:1")
	require.NoError(t, src.Open())

	got := drain(t, src, 5*time.Second)
	require.Len(t, got, len(samples))
	assert.InDelta(t, samples[999], got[999], 1)
}

func TestTCPSourceRefused(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	src := mustSource(t, "tcp:"+addr)
	err = src.Open()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryNetwork))
}

func TestWebSocketSource(t *testing.T) {
	samples := ramp(600)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		raw := s16le(samples...)
		_ = conn.WriteMessage(websocket.BinaryMessage, raw[:501]) // splits a sample
		_ = conn.WriteMessage(websocket.TextMessage, []byte("ignored"))
		_ = conn.WriteMessage(websocket.BinaryMessage, raw[501:])
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	src := mustSource(t, "ws:"+url+"#s16:2")
	require.NoError(t, src.Open())

	got := drain(t, src, 5*time.Second)
	require.Len(t, got, len(samples))
	assert.InDelta(t, samples[301], got[301], 1)
}

func TestDecodedWAVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	data := make([]int, 2*400)
	for i := range data {
		data[i] = (i % 50) * 300
	}
	enc := wav.NewEncoder(f, testRate, 16, 2, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: 2, SampleRate: testRate},
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
	require.NoError(t, f.Close())

	src := mustSource(t, "file:"+path)
	assert.Equal(t, 2, src.Channels(), "channel count comes from the file header")
	require.NoError(t, src.Open())

	got := drain(t, src, 5*time.Second)
	require.Len(t, got, len(data))
	for i := range data {
		require.InDelta(t, data[i], got[i], 1, "sample %d", i)
	}
}

func TestDecodedFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0o600))

	src := mustSource(t, "file:"+path)
	assert.Equal(t, 1, src.Channels())
	err := src.Open()
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryAudioSource))
}

func TestQueueResumeRestartsOnFrameBoundary(t *testing.T) {
	d, err := audiocore.ParseDescriptor("stdin:s16:1", testRate)
	require.NoError(t, err)
	q, err := newQueueSource(d, testOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = q.Close() })
	q.setInput(audiocore.Spec{Format: audiocore.Format{Sample: audiocore.FormatS16}, Channels: 1, SampleRate: testRate})

	in := s16le(1, 2, 3, 4, 5)
	q.offer(in[:5])
	q.Poll()
	require.Equal(t, 2, q.Available(), "half of the third sample is carried")

	q.offer(in[5:])
	q.Resume()
	assert.Zero(t, q.Available())
	assert.Zero(t, q.queue.Length())

	q.offer(s16le(9))
	q.Poll()
	assert.Equal(t, []int16{9}, q.Frames(1))
}
