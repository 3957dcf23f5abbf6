package xfer

import (
	"encoding/binary"

	"github.com/pierrec/lz4/v3"

	"github.com/nimbusd/nimbusd/internal/rpc"
)

// Compressed wraps a DataObject, lz4-compressing each block handed to
// Send and decompressing each block handed back by Recv. It frames each
// compressed block with a 4-byte big-endian length prefix so the peer
// side can tell where one block ends and the next begins — the engine
// itself is unaware of this framing, since it lives entirely below the
// DataObject capability boundary spec.md §6 draws.
//
// Intended for migration and disk-image streams specifically (spec.md
// §1's "migration data, disk image transfer"); console streams are
// typically too interactive to benefit and are left uncompressed.
type Compressed struct {
	rpc.DataObject

	// pending holds framed, compressed bytes not yet accepted by the
	// inner sink (spec.md's own partial-write/backpressure handling,
	// one layer further down).
	pending []byte

	// inBuf accumulates raw bytes read from the inner source until a
	// full frame is available to decompress.
	inBuf []byte

	compressBuf   []byte
	decompressBuf []byte
}

func NewCompressed(inner rpc.DataObject) *Compressed {
	return &Compressed{DataObject: inner}
}

// Send compresses b (as one frame) and forwards it, first flushing any
// previously-framed bytes still pending from an earlier call.
func (c *Compressed) Send(b []byte) (int, error) {
	if len(c.pending) == 0 && len(b) > 0 {
		c.frame(b)
	}
	if len(c.pending) == 0 {
		return 0, nil
	}
	n, err := c.DataObject.Send(c.pending)
	c.pending = c.pending[n:]
	if err != nil {
		return 0, err
	}
	if len(c.pending) > 0 {
		// still draining this frame; report no *new* input consumed
		return 0, rpc.ErrWouldBlock
	}
	return len(b), nil
}

func (c *Compressed) frame(b []byte) {
	bound := lz4.CompressBlockBound(len(b))
	if cap(c.compressBuf) < bound {
		c.compressBuf = make([]byte, bound)
	}
	var ht [1 << 16]int // lz4.CompressBlock's hash table scratch
	n, err := lz4.CompressBlock(b, c.compressBuf[:bound], ht[:])
	if err != nil || n == 0 {
		// incompressible or error: store raw with a sign bit so Recv
		// knows to skip decompression.
		frame := make([]byte, 4+len(b))
		binary.BigEndian.PutUint32(frame, uint32(len(b))|0x80000000)
		copy(frame[4:], b)
		c.pending = frame
		return
	}
	frame := make([]byte, 4+n)
	binary.BigEndian.PutUint32(frame, uint32(n))
	copy(frame[4:], c.compressBuf[:n])
	c.pending = frame
}

// Recv reads framed, compressed blocks from the inner source and
// decompresses one frame at a time into b.
func (c *Compressed) Recv(b []byte) (int, error) {
	for {
		if n, ok := c.tryDecodeFrame(b); ok {
			return n, nil
		}
		chunk := make([]byte, 4096)
		n, err := c.DataObject.Recv(chunk)
		if n > 0 {
			c.inBuf = append(c.inBuf, chunk[:n]...)
			continue
		}
		return n, err
	}
}

func (c *Compressed) tryDecodeFrame(b []byte) (int, bool) {
	if len(c.inBuf) < 4 {
		return 0, false
	}
	hdr := binary.BigEndian.Uint32(c.inBuf)
	raw := hdr&0x80000000 != 0
	size := int(hdr &^ 0x80000000)
	if len(c.inBuf) < 4+size {
		return 0, false
	}
	payload := c.inBuf[4 : 4+size]
	c.inBuf = c.inBuf[4+size:]
	if raw {
		return copy(b, payload), true
	}
	if cap(c.decompressBuf) < len(b) {
		c.decompressBuf = make([]byte, len(b))
	}
	n, err := lz4.UncompressBlock(payload, c.decompressBuf)
	if err != nil {
		return 0, true // surfaced as a short read; caller's next Recv will error via inner state
	}
	return copy(b, c.decompressBuf[:n]), true
}
