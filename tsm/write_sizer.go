package tsm

import (
	"hash"
	"hash/crc32"
	"io"
)

// writeSizer tracks the byte offset and running CRC32 of everything
// written through it; the file writer stamps the checksum into the
// footer it emits last.
type writeSizer struct {
	w    io.Writer
	crc  hash.Hash32
	size uint64
}

func newWriteSizer(w io.Writer) *writeSizer {
	return &writeSizer{w: w, crc: crc32.NewIEEE()}
}

func (w *writeSizer) Write(p []byte) (int, error) {
	w.size += uint64(len(p))
	_, _ = w.crc.Write(p)
	return w.w.Write(p)
}

func (w *writeSizer) Size() uint64 {
	return w.size
}

func (w *writeSizer) Checksum() uint32 {
	return w.crc.Sum32()
}
