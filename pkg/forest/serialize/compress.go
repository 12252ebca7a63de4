package serialize

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/pierrec/lz4/v4"

	"github.com/Sumatoshi-tech/treestore/pkg/safeconv"
)

// compressedMagic prefixes every payload produced by Compress.
var compressedMagic = []byte("TSZ4")

// compressedExt is the conventional suffix of compressed documents.
const compressedExt = ".lz4"

const (
	// headerLen covers the magic, the mode byte and the original length.
	headerLen = 9

	modeBlock  byte = 1
	modeStored byte = 0
)

// ErrCorruptPayload is returned when compressed data cannot be decoded.
var ErrCorruptPayload = errors.New("corrupt compressed payload")

// IsCompressed reports whether data carries the Compress header.
func IsCompressed(data []byte) bool {
	return len(data) >= headerLen && bytes.Equal(data[:len(compressedMagic)], compressedMagic)
}

// Compress wraps data in an LZ4 block with a small header recording the
// original length. Incompressible input is stored as is.
func Compress(data []byte) ([]byte, error) {
	size, err := safeconv.IntToUint32(len(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTooLarge, err)
	}

	out := make([]byte, headerLen+lz4.CompressBlockBound(len(data)))
	copy(out, compressedMagic)
	binary.LittleEndian.PutUint32(out[5:headerLen], size)

	written, err := lz4.CompressBlock(data, out[headerLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}

	if written == 0 || written >= len(data) {
		out[4] = modeStored
		out = append(out[:headerLen], data...)

		return out, nil
	}

	out[4] = modeBlock

	return out[:headerLen+written], nil
}

// maxBlockRatio bounds how far an LZ4 block can expand. A header claiming
// more than this is forged or corrupt.
const maxBlockRatio = 255

// Decompress reverses Compress. When limit is positive, a payload whose
// recorded length exceeds it fails with ErrTooLarge before anything is
// allocated.
func Decompress(data []byte, limit int64) ([]byte, error) {
	if !IsCompressed(data) {
		return nil, fmt.Errorf("%w: missing header", ErrCorruptPayload)
	}

	size := binary.LittleEndian.Uint32(data[5:headerLen])
	body := data[headerLen:]

	if limit > 0 && int64(size) > limit {
		return nil, fmt.Errorf("%w: decompresses to %d bytes, limit %d", ErrTooLarge, size, limit)
	}

	switch data[4] {
	case modeStored:
		if len(body) != int(size) {
			return nil, fmt.Errorf("%w: stored length mismatch", ErrCorruptPayload)
		}

		return append([]byte(nil), body...), nil
	case modeBlock:
		if uint64(size) > uint64(len(body))*maxBlockRatio {
			return nil, fmt.Errorf("%w: %d bytes cannot expand to %d", ErrCorruptPayload, len(body), size)
		}

		decompressed := make([]byte, size)

		read, err := lz4.UncompressBlock(body, decompressed)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCorruptPayload, err)
		}

		if read != int(size) {
			return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrCorruptPayload, size, read)
		}

		return decompressed, nil
	default:
		return nil, fmt.Errorf("%w: unknown mode %d", ErrCorruptPayload, data[4])
	}
}
