package replication

import (
	"context"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"net"

	"golang.org/x/sync/errgroup"

	"github.com/tessera-db/tessera/rpc/common"
)

// --------------------------------------------------------------------------
// Stream Framing
// --------------------------------------------------------------------------

// Each update travels as
//
//	u32 payloadLen LE ∥ payload ∥ u32 crc LE
//
// where crc is the Castagnoli CRC32 of the payload. The consumer answers
// each update with a single byte: AckOK accepts it, AckRetry requests a
// resend.
const (
	AckOK    byte = 0x01
	AckRetry byte = 0x00

	// maxUpdateSize bounds what a consumer will allocate for one update.
	maxUpdateSize = 64 << 20
)

var streamCRC = crc32.MakeTable(crc32.Castagnoli)

// WriteUpdate frames and writes one update payload.
func WriteUpdate(w io.Writer, payload []byte) error {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	var trailer [4]byte
	binary.LittleEndian.PutUint32(trailer[:], crc32.Checksum(payload, streamCRC))

	buffers := net.Buffers{header[:], payload, trailer[:]}
	if _, err := buffers.WriteTo(onlyWriter{w}); err != nil {
		return fmt.Errorf("replication: write update: %w", err)
	}
	return nil
}

// onlyWriter hides any ReadFrom the underlying connection may have so that
// net.Buffers falls back to plain sequential writes.
type onlyWriter struct{ io.Writer }

// ReadUpdate reads one framed update and validates its checksum. A
// checksum mismatch is reported as an EKCorruptedFrame error; the caller
// should answer with AckRetry.
func ReadUpdate(r io.Reader) ([]byte, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, err
	}
	size := binary.LittleEndian.Uint32(header[:])
	if size > maxUpdateSize {
		return nil, common.NewError(common.EKCorruptedFrame,
			fmt.Sprintf("update of %d bytes exceeds limit", size))
	}

	buf := make([]byte, size+4)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	payload := buf[:size]
	want := binary.LittleEndian.Uint32(buf[size:])
	if got := crc32.Checksum(payload, streamCRC); got != want {
		return nil, common.NewError(common.EKCorruptedFrame,
			fmt.Sprintf("update checksum mismatch: got %08x, want %08x", got, want))
	}
	return payload, nil
}

// --------------------------------------------------------------------------
// Producer
// --------------------------------------------------------------------------

// Producer pushes the updates of one subscription over one connection.
// The subscription is created by the producer itself and stays referenced
// by the producer goroutine until the stream ends.
type Producer struct {
	hub  *Hub
	conn net.Conn
}

func NewProducer(hub *Hub, conn net.Conn) *Producer {
	return &Producer{hub: hub, conn: conn}
}

// Run streams updates until the context is cancelled, the subscription is
// dropped, or the connection fails. Errors end only this stream.
func (p *Producer) Run(ctx context.Context) error {
	sub := p.hub.Subscribe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		<-ctx.Done()
		sub.Close()
		p.conn.Close()
		return nil
	})

	g.Go(func() error {
		// Ending the stream releases the ctx watcher above.
		defer cancel()
		for payload := range sub.Updates() {
			if err := p.send(payload); err != nil {
				return err
			}
		}
		// Channel closed: either Close was called or the consumer lagged.
		return nil
	})

	err := g.Wait()
	if err != nil && ctx.Err() == nil {
		Logger.Warningf("replication stream ended: %s", err)
	}
	return err
}

// send delivers one update, resending until the consumer acknowledges it.
func (p *Producer) send(payload []byte) error {
	for {
		if err := WriteUpdate(p.conn, payload); err != nil {
			return err
		}
		var ack [1]byte
		if _, err := io.ReadFull(p.conn, ack[:]); err != nil {
			return fmt.Errorf("replication: read ack: %w", err)
		}
		switch ack[0] {
		case AckOK:
			return nil
		case AckRetry:
			Logger.Debugf("consumer requested resend")
		default:
			return common.NewError(common.EKCorruptedFrame,
				fmt.Sprintf("unexpected ack byte %#02x", ack[0]))
		}
	}
}
