package base

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"net"

	"github.com/tessera-db/tessera/rpc/common"
)

// Frame layout (all integers little endian):
//   - 8 bytes: requestID (uint64)
//   - 4 bytes: payload length (uint32)
//   - 4 bytes: crcHeader = maskedCRC32C over the first 12 bytes
//   - N bytes: payload
//   - 4 bytes: crcPayload = maskedCRC32C(payload) XOR crcHeader
//
// A header CRC mismatch means the stream is unframed garbage and the
// connection must close. A payload CRC mismatch corrupts only this frame.
const headerSize = 16

// crcMask post-processes a raw CRC32C so that checksums of data containing
// embedded CRCs stay well distributed (snappy/leveldb masking).
const crcMaskDelta = 0xa282ead8

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// maskedCRC returns the masked CRC32C of b.
func maskedCRC(b []byte) uint32 {
	crc := crc32.Checksum(b, castagnoli)
	return (crc>>15 | crc<<17) + crcMaskDelta
}

// writeFrame writes one frame to the connection.
func writeFrame(conn net.Conn, requestID uint64, data []byte) error {
	header := make([]byte, headerSize)
	binary.LittleEndian.PutUint64(header[:8], requestID)
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(data)))
	crcHeader := maskedCRC(header[:12])
	binary.LittleEndian.PutUint32(header[12:16], crcHeader)

	trailer := make([]byte, 4)
	binary.LittleEndian.PutUint32(trailer, maskedCRC(data)^crcHeader)

	b := net.Buffers{header, data, trailer}
	_, err := b.WriteTo(conn)
	return err
}

// readFrame reads one frame from the connection using the provided buffer.
// If the buffer is too small, it will allocate a new temporary buffer for
// the data.
func readFrame(conn net.Conn, buf []byte) (uint64, []byte, error) {
	if buf == nil || len(buf) < headerSize {
		buf = make([]byte, headerSize)
	}

	if _, err := io.ReadFull(conn, buf[:headerSize]); err != nil {
		return 0, nil, err
	}

	crcHeader := binary.LittleEndian.Uint32(buf[12:16])
	if maskedCRC(buf[:12]) != crcHeader {
		return 0, nil, common.NewError(common.EKCorruptedFrame, "header checksum mismatch")
	}
	requestID := binary.LittleEndian.Uint64(buf[:8])
	contentLength := binary.LittleEndian.Uint32(buf[8:12])

	if len(buf) < int(contentLength)+4 {
		buf = make([]byte, contentLength+4)
	}
	n, err := io.ReadFull(conn, buf[:contentLength+4])
	if err == io.ErrUnexpectedEOF {
		return requestID, nil, common.NewError(common.EKInconsistentLength,
			fmt.Sprintf("expected %d payload bytes, got %d", contentLength, n))
	}
	if err != nil {
		return requestID, nil, err
	}

	data := buf[:contentLength]
	crcPayload := binary.LittleEndian.Uint32(buf[contentLength : contentLength+4])
	if maskedCRC(data)^crcHeader != crcPayload {
		return requestID, nil, common.NewError(common.EKCorruptedFrame, "payload checksum mismatch")
	}
	return requestID, data, nil
}
