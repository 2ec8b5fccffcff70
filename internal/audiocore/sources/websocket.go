package sources

import (
	"context"
	"io"

	"github.com/gorilla/websocket"

	"github.com/wavescope/wavescope/internal/audiocore"
	"github.com/wavescope/wavescope/internal/errors"
)

func newWebSocket(desc audiocore.Descriptor, opts Options) (audiocore.Source, error) {
	open := func(ctx context.Context) (io.ReadCloser, audiocore.Spec, error) {
		conn, resp, err := websocket.DefaultDialer.DialContext(ctx, desc.Target, nil)
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		if err != nil {
			return nil, desc.Spec, errors.New(err).
				Component(componentSources).
				Category(errors.CategoryNetwork).
				Context("url", desc.Target).
				Build()
		}
		return &wsReader{conn: conn}, desc.Spec, nil
	}
	return newReaderSource(desc, opts, open, false)
}

// wsReader presents the binary messages of a websocket connection as one
// byte stream. Text messages are ignored.
type wsReader struct {
	conn *websocket.Conn
	msg  []byte
}

func (r *wsReader) Read(p []byte) (int, error) {
	for len(r.msg) == 0 {
		kind, data, err := r.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return 0, io.EOF
			}
			return 0, err
		}
		if kind == websocket.BinaryMessage {
			r.msg = data
		}
	}
	n := copy(p, r.msg)
	r.msg = r.msg[n:]
	return n, nil
}

func (r *wsReader) Close() error {
	return r.conn.Close()
}
