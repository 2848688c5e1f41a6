package replication

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"math"
	"net"
	"testing"
	"time"

	"github.com/tessera-db/tessera/lib/storage"
	"github.com/tessera-db/tessera/rpc/common"
)

func TestUpdateCodecRoundTrip(t *testing.T) {
	ops := []storage.BatchOp{
		{Key: []byte("put-key"), Value: []byte("value")},
		{Key: []byte("empty-value"), Value: []byte{}},
		{Key: []byte("del-key"), Delete: true},
		{Key: []byte("range-start"), EndKey: []byte("range-end"), Delete: true},
	}

	payload := EncodeUpdate(nil, 42, ops)
	ksID, got, err := DecodeUpdate(payload)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if ksID != 42 {
		t.Fatalf("keyspace id = %d, want 42", ksID)
	}
	if len(got) != len(ops) {
		t.Fatalf("decoded %d ops, want %d", len(got), len(ops))
	}
	for i, want := range ops {
		op := got[i]
		if !bytes.Equal(op.Key, want.Key) {
			t.Errorf("op %d key = %q, want %q", i, op.Key, want.Key)
		}
		if !bytes.Equal(op.EndKey, want.EndKey) {
			t.Errorf("op %d end key = %q, want %q", i, op.EndKey, want.EndKey)
		}
		if string(op.Value) != string(want.Value) {
			t.Errorf("op %d value = %q, want %q", i, op.Value, want.Value)
		}
		if op.Delete != want.Delete {
			t.Errorf("op %d delete = %v, want %v", i, op.Delete, want.Delete)
		}
	}
}

func TestDecodeUpdateRejectsTrailingBytes(t *testing.T) {
	payload := EncodeUpdate(nil, 1, []storage.BatchOp{{Key: []byte("k"), Value: []byte("v")}})
	if _, _, err := DecodeUpdate(append(payload, 0x00)); err == nil {
		t.Fatalf("trailing bytes accepted")
	}
}

func TestDecodeUpdateRejectsTruncation(t *testing.T) {
	payload := EncodeUpdate(nil, 1, []storage.BatchOp{
		{Key: []byte("key"), Value: []byte("value")},
		{Key: []byte("a"), EndKey: []byte("b"), Delete: true},
	})
	for n := 0; n < len(payload); n++ {
		if _, _, err := DecodeUpdate(payload[:n]); err == nil {
			t.Fatalf("truncation to %d bytes accepted", n)
		}
	}
}

func TestDecodeUpdateRejectsForgedOpCount(t *testing.T) {
	// A header declaring the maximum op count over an empty op section must
	// fail as truncated, not allocate space for the declared count.
	payload := binary.LittleEndian.AppendUint32(nil, 1)
	payload = binary.LittleEndian.AppendUint32(payload, math.MaxUint32)
	if _, _, err := DecodeUpdate(payload); err == nil {
		t.Fatalf("forged op count accepted")
	}
}

func TestHubPublishFanOut(t *testing.T) {
	hub := NewHub()
	a := hub.Subscribe()
	defer a.Close()
	b := hub.Subscribe()
	defer b.Close()

	ops := []storage.BatchOp{{Key: []byte("k"), Value: []byte("v")}}
	hub.Observer()(7, ops)

	for name, sub := range map[string]*Subscription{"a": a, "b": b} {
		select {
		case payload := <-sub.Updates():
			ksID, got, err := DecodeUpdate(payload)
			if err != nil {
				t.Fatalf("%s: decode: %v", name, err)
			}
			if ksID != 7 || len(got) != 1 || !bytes.Equal(got[0].Key, []byte("k")) {
				t.Fatalf("%s: unexpected update: ks=%d ops=%v", name, ksID, got)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: update not delivered", name)
		}
	}
}

func TestHubDropsLaggingSubscription(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()

	ops := []storage.BatchOp{{Key: []byte("k"), Value: []byte("v")}}
	// One more publish than the buffer holds: the last one finds the
	// channel full and drops the subscription.
	for i := 0; i <= subscriptionBuffer; i++ {
		hub.publish(1, ops)
	}

	drained := 0
	for range sub.Updates() {
		drained++
	}
	if drained != subscriptionBuffer {
		t.Fatalf("drained %d updates, want %d", drained, subscriptionBuffer)
	}

	// The dropped subscription no longer receives publishes, and a second
	// Close is harmless.
	hub.publish(1, ops)
	sub.Close()
}

func TestHubCloseUnblocksReceiver(t *testing.T) {
	hub := NewHub()
	sub := hub.Subscribe()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range sub.Updates() {
		}
	}()
	sub.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("receiver not unblocked by Close")
	}
}

func TestWriteReadUpdate(t *testing.T) {
	payload := EncodeUpdate(nil, 3, []storage.BatchOp{{Key: []byte("k"), Value: []byte("v")}})

	var buf bytes.Buffer
	if err := WriteUpdate(&buf, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadUpdate(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload differs after framing round trip")
	}
}

func TestReadUpdateChecksumMismatch(t *testing.T) {
	payload := []byte("some update payload")

	var buf bytes.Buffer
	if err := WriteUpdate(&buf, payload); err != nil {
		t.Fatalf("write: %v", err)
	}
	framed := buf.Bytes()
	framed[6] ^= 0xff // flip a payload byte

	_, err := ReadUpdate(bytes.NewReader(framed))
	if !errors.Is(err, common.NewError(common.EKCorruptedFrame, "")) {
		t.Fatalf("err = %v, want a corrupted frame error", err)
	}
}

func TestReadUpdateRejectsHugeFrame(t *testing.T) {
	var header [4]byte
	binary.LittleEndian.PutUint32(header[:], maxUpdateSize+1)
	_, err := ReadUpdate(bytes.NewReader(header[:]))
	if !errors.Is(err, common.NewError(common.EKCorruptedFrame, "")) {
		t.Fatalf("err = %v, want a corrupted frame error", err)
	}
}

func TestProducerDeliversAndResends(t *testing.T) {
	hub := NewHub()
	server, client := net.Pipe()
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- NewProducer(hub, server).Run(ctx)
	}()

	// The subscription is created inside Run; give it a moment to register.
	waitForSubscribers(t, hub, 1)

	ops := []storage.BatchOp{{Key: []byte("k"), Value: []byte("v")}}
	hub.publish(9, ops)

	// First delivery: answer with a retry to force a resend.
	first, err := ReadUpdate(client)
	if err != nil {
		t.Fatalf("first read: %v", err)
	}
	if _, err := client.Write([]byte{AckRetry}); err != nil {
		t.Fatalf("write retry: %v", err)
	}

	// Resent frame, acknowledged this time.
	second, err := ReadUpdate(client)
	if err != nil {
		t.Fatalf("second read: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("resent payload differs from the original")
	}
	if _, err := client.Write([]byte{AckOK}); err != nil {
		t.Fatalf("write ack: %v", err)
	}

	ksID, got, err := DecodeUpdate(second)
	if err != nil || ksID != 9 || len(got) != 1 {
		t.Fatalf("decoded ks=%d ops=%d err=%v", ksID, len(got), err)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatalf("producer did not stop on cancel")
	}
}

func TestProducerStopsOnConsumerDisconnect(t *testing.T) {
	hub := NewHub()
	server, client := net.Pipe()

	done := make(chan error, 1)
	go func() {
		done <- NewProducer(hub, server).Run(context.Background())
	}()
	waitForSubscribers(t, hub, 1)

	client.Close()
	hub.publish(1, []storage.BatchOp{{Key: []byte("k"), Value: []byte("v")}})

	select {
	case err := <-done:
		if err == nil {
			t.Fatalf("producer ended without error after disconnect")
		}
	case <-time.After(time.Second):
		t.Fatalf("producer did not stop after disconnect")
	}
	waitForSubscribers(t, hub, 0)
}

func waitForSubscribers(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for {
		hub.mu.Lock()
		n := len(hub.subs)
		hub.mu.Unlock()
		if n == want {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d subscriptions, want %d", n, want)
		}
		time.Sleep(time.Millisecond)
	}
}
