package dataplane

import (
	"bytes"
	"errors"
	"testing"

	"github.com/tessera-db/tessera/rpc/common"
)

func TestCheckedUint32RoundTrip(t *testing.T) {
	for _, v := range []uint32{0, 1, CodeUnknownFile, 0xffffffff} {
		var buf bytes.Buffer
		if err := writeCheckedUint32(&buf, v); err != nil {
			t.Fatalf("write %d: %v", v, err)
		}
		if buf.Len() != 8 {
			t.Fatalf("checked integer is %d bytes, want 8", buf.Len())
		}
		got, err := readCheckedUint32(&buf)
		if err != nil {
			t.Fatalf("read %d: %v", v, err)
		}
		if got != v {
			t.Fatalf("got %d, want %d", got, v)
		}
	}
}

func TestCheckedUint32DetectsCorruption(t *testing.T) {
	var buf bytes.Buffer
	if err := writeCheckedUint32(&buf, CodeOK); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw := buf.Bytes()
	raw[0] ^= 0x01 // CodeOK becomes CodeOther with a stale checksum

	_, err := readCheckedUint32(bytes.NewReader(raw))
	if !errors.Is(err, common.NewError(common.EKCorruptedFrame, "")) {
		t.Fatalf("err = %v, want a corrupted frame error", err)
	}
}

func TestVersionRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	if err := writeVersion(&buf, localVersion()); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := readVersion(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got != localVersion() {
		t.Fatalf("version = %s, want %s", got, localVersion())
	}
}

func TestCheckVersion(t *testing.T) {
	if err := checkVersion(version{VersionMajor, VersionMinor + 5, 9}); err != nil {
		t.Fatalf("minor/bugfix skew rejected: %v", err)
	}
	err := checkVersion(version{VersionMajor + 1, 0, 0})
	if !errors.Is(err, common.NewError(common.EKBadVersion, "")) {
		t.Fatalf("err = %v, want a bad version error", err)
	}
}
