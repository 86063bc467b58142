package fix

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFrameReader_TimeoutWithoutTraffic(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	reader := NewFrameReader(server, nil)
	reader.SetTimeout(20 * time.Millisecond)

	_, err := reader.Fill()
	assert.ErrorIs(t, err, ErrReadTimeout)
	assert.True(t, IsTimeout(err))
}

func TestFrameReader_EOFOnPeerClose(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()

	reader := NewFrameReader(server, nil)
	require.NoError(t, client.Close())

	_, err := reader.Fill()
	assert.ErrorIs(t, err, io.EOF)
}

func TestFrameReader_WriterRoundTrip(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	writer := NewFrameWriter(client)
	reader := NewFrameReader(server, nil)
	reader.SetTimeout(time.Second)

	errCh := make(chan error, 1)
	go func() {
		// Un frame corrupto seguido de uno válido.
		if err := writer.WriteRaw(soh("8=FIX.4.2|9=5|35=D|10=999|")); err != nil {
			errCh <- err
			return
		}
		errCh <- writer.WriteMessage(newOrder())
	}()

	msg, err := reader.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, MsgTypeNewOrderSingle, msg.MsgType())
	id, _ := msg.GetString(TagClOrdID)
	assert.Equal(t, "ORDER123", id)
	require.NoError(t, <-errCh)
}

// cancelingConn cancela el contexto en la primera lectura que trae bytes.
type cancelingConn struct {
	Conn
	cancel context.CancelFunc
	once   bool
}

func (c *cancelingConn) Read(p []byte) (int, error) {
	n, err := c.Conn.Read(p)
	if n > 0 && !c.once {
		c.once = true
		c.cancel()
	}
	return n, err
}

func TestFrameReader_ReadMessageContext(t *testing.T) {
	t.Run("cancelación entre lecturas no espera el timeout", func(t *testing.T) {
		server, client := net.Pipe()
		defer server.Close()
		defer client.Close()

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		reader := NewFrameReader(&cancelingConn{Conn: server, cancel: cancel}, nil)
		reader.SetTimeout(10 * time.Second)

		go func() { _, _ = client.Write(soh("8=FIX.4.2|9=20|35=D|")) }()

		start := time.Now()
		_, err := reader.ReadMessageContext(ctx)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("contexto ya cancelado con frame en buffer", func(t *testing.T) {
		server, client := net.Pipe()
		defer server.Close()
		defer client.Close()

		reader := NewFrameReader(server, nil)
		reader.Decoder().Feed(Encode(newOrder()))

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		msg, err := reader.ReadMessageContext(ctx)
		require.NoError(t, err)
		assert.Equal(t, MsgTypeNewOrderSingle, msg.MsgType())

		_, err = reader.ReadMessageContext(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("timeout de lectura sin cancelación", func(t *testing.T) {
		server, client := net.Pipe()
		defer server.Close()
		defer client.Close()

		reader := NewFrameReader(server, nil)
		reader.SetTimeout(20 * time.Millisecond)

		_, err := reader.ReadMessageContext(context.Background())
		assert.ErrorIs(t, err, ErrReadTimeout)
	})
}
