package frame

import (
	"bytes"
	"encoding/binary"
	"io"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkReader hands out at most chunk bytes per call and reports EAGAIN on
// every other call, mimicking a non-blocking socket under load.
type chunkReader struct {
	data   []byte
	chunk  int
	starve bool
}

func (r *chunkReader) Read(p []byte) (int, error) {
	r.starve = !r.starve
	if r.starve {
		return 0, syscall.EAGAIN
	}
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := r.chunk
	if n > len(r.data) {
		n = len(r.data)
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

// chunkWriter accepts at most chunk bytes per call, interleaved with EAGAIN.
type chunkWriter struct {
	buf    bytes.Buffer
	chunk  int
	starve bool
}

func (w *chunkWriter) Write(p []byte) (int, error) {
	w.starve = !w.starve
	if w.starve {
		return 0, syscall.EAGAIN
	}
	n := w.chunk
	if n > len(p) {
		n = len(p)
	}
	w.buf.Write(p[:n])
	return n, nil
}

func encodeFrame(payload []byte) []byte {
	out := make([]byte, prefixLen+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[prefixLen:], payload)
	return out
}

func TestDecoderFragmentedReads(t *testing.T) {
	pool := NewBufferPool(256, 8)
	payload := []byte(`{"method":"SEARCH_ALL","data":"Rome"}`)

	// Every fragmentation of the wire bytes must yield the same message.
	for chunk := 1; chunk <= len(payload)+prefixLen; chunk++ {
		r := &chunkReader{data: encodeFrame(payload), chunk: chunk}
		d := NewDecoder(1024, pool)

		var msg []byte
		for {
			got, ok, err := d.Next(r)
			require.NoError(t, err)
			if ok {
				msg = got
				break
			}
		}
		assert.Equal(t, payload, msg, "chunk size %d", chunk)
		d.Reclaim()
	}
}

func TestDecoderBackToBackFrames(t *testing.T) {
	pool := NewBufferPool(256, 8)
	first := []byte(`"one"`)
	second := []byte(`"two"`)
	wire := append(encodeFrame(first), encodeFrame(second)...)

	r := &chunkReader{data: wire, chunk: 3}
	d := NewDecoder(1024, pool)

	for _, want := range [][]byte{first, second} {
		var msg []byte
		for {
			got, ok, err := d.Next(r)
			require.NoError(t, err)
			if ok {
				msg = got
				break
			}
		}
		assert.Equal(t, want, msg)
		d.Reclaim()
	}
}

func TestDecoderEmptyPayload(t *testing.T) {
	pool := NewBufferPool(256, 8)
	r := &chunkReader{data: encodeFrame(nil), chunk: 2}
	d := NewDecoder(1024, pool)

	for {
		msg, ok, err := d.Next(r)
		require.NoError(t, err)
		if ok {
			assert.Empty(t, msg)
			break
		}
	}
}

func TestDecoderRejectsOversizeFrame(t *testing.T) {
	pool := NewBufferPool(256, 8)
	d := NewDecoder(16, pool)

	var prefix [prefixLen]byte
	binary.BigEndian.PutUint32(prefix[:], 17)
	_, ok, err := d.Next(bytes.NewReader(prefix[:]))
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestDecoderPropagatesEOF(t *testing.T) {
	pool := NewBufferPool(256, 8)
	d := NewDecoder(1024, pool)

	_, ok, err := d.Next(bytes.NewReader(nil))
	assert.False(t, ok)
	assert.ErrorIs(t, err, io.EOF)
}

func TestEncoderFragmentedWrites(t *testing.T) {
	pool := NewBufferPool(256, 8)
	payload := []byte(`{"status":"SUCCESS","error":"NO_ERR"}`)

	for chunk := 1; chunk <= len(payload)+prefixLen; chunk++ {
		w := &chunkWriter{chunk: chunk}
		e := NewEncoder(pool)
		e.Load(payload)
		require.True(t, e.Active())

		for {
			done, err := e.Flush(w)
			require.NoError(t, err)
			if done {
				break
			}
		}
		assert.False(t, e.Active())
		assert.Equal(t, encodeFrame(payload), w.buf.Bytes(), "chunk size %d", chunk)
	}
}

func TestEncoderFlushWithoutLoad(t *testing.T) {
	e := NewEncoder(NewBufferPool(256, 8))
	done, err := e.Flush(io.Discard)
	require.NoError(t, err)
	assert.True(t, done)
}

func TestRoundTripThroughPool(t *testing.T) {
	pool := NewBufferPool(64, 4)
	d := NewDecoder(1024, pool)
	e := NewEncoder(pool)

	for i := 0; i < 10; i++ {
		payload := bytes.Repeat([]byte{byte('a' + i)}, 10+i)

		var wire bytes.Buffer
		e.Load(payload)
		done, err := e.Flush(&wire)
		require.NoError(t, err)
		require.True(t, done)

		msg, ok, err := d.Next(&wire)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, payload, msg)
		d.Reclaim()
	}
}
