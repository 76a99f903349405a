package columnar

import (
	"bytes"
	"compress/flate"
	"crypto/sha256"
	"fmt"
	"io"
)

// WriteCompressedChunk DEFLATE-compresses a change-chunk body and frames it
// as chunk-type 0x02. The checksum still matches the uncompressed body
// (spec.md §6), so it is computed before compression and stored alongside
// the compressed bytes rather than recomputed by ReadChunk (which checksums
// whatever payload it is given — callers distinguish chunk types before
// checksumming against the right payload).
func WriteCompressedChunk(uncompressedChangeBody []byte) ([]byte, error) {
	var compressed bytes.Buffer
	w, err := flate.NewWriter(&compressed, flate.BestCompression)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(uncompressedChangeBody); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.Write(Magic[:])
	sum := sha256.Sum256(append([]byte{ChunkTypeChange}, uncompressedChangeBody...))
	buf.Write(sum[:4])
	buf.WriteByte(ChunkTypeCompressed)
	putUleb128(&buf, uint64(compressed.Len()))
	buf.Write(compressed.Bytes())
	return buf.Bytes(), nil
}

// ReadCompressedChunk parses a chunk-type 0x02 chunk, inflating its body
// and verifying the checksum against the *uncompressed* change-chunk body.
func ReadCompressedChunk(data []byte) (body []byte, consumed int, err error) {
	r := newReader(data)
	magic, err := r.bytesN(4)
	if err != nil {
		return nil, 0, err
	}
	if !bytes.Equal(magic, Magic[:]) {
		return nil, 0, fmt.Errorf("%w: bad magic bytes", errParse)
	}
	checksum, err := r.bytesN(4)
	if err != nil {
		return nil, 0, err
	}
	chunkType, err := r.byte()
	if err != nil {
		return nil, 0, err
	}
	if chunkType != ChunkTypeCompressed {
		return nil, 0, fmt.Errorf("%w: not a compressed chunk", errParse)
	}
	length, err := r.uleb128()
	if err != nil {
		return nil, 0, err
	}
	compressed, err := r.bytesN(int(length))
	if err != nil {
		return nil, 0, err
	}

	rd := flate.NewReader(bytes.NewReader(compressed))
	defer rd.Close()
	uncompressed, err := io.ReadAll(rd)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: inflate failed: %v", errParse, err)
	}

	sum := sha256.Sum256(append([]byte{ChunkTypeChange}, uncompressed...))
	if !bytes.Equal(sum[:4], checksum) {
		return nil, 0, fmt.Errorf("%w: checksum mismatch", errParse)
	}
	return uncompressed, r.pos, nil
}
