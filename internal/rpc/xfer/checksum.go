// Package xfer provides optional DataObject wrappers for migration and
// disk-image streams: running-checksum tracking and lz4 compression.
// Both wrap rather than replace a DataObject, so a stream that doesn't
// need them talks to the plain capability the engine defines
// (internal/rpc.DataObject) and pays nothing for this package.
package xfer

import (
	"github.com/OneOfOne/xxhash"

	"github.com/nimbusd/nimbusd/internal/rpc"
)

// Checksummed wraps a DataObject and accumulates an xxhash64 digest of
// every byte that actually crosses it in either direction, independent
// of the engine's own flow-control bookkeeping. The digests are read
// through SumIn and SumOut; internal/rpc/audit computes its own
// Entry.Checksum and does not read them.
type Checksummed struct {
	rpc.DataObject
	in  *xxhash.XXHash64
	out *xxhash.XXHash64
}

func NewChecksummed(inner rpc.DataObject) *Checksummed {
	return &Checksummed{
		DataObject: inner,
		in:         xxhash.New64(),
		out:        xxhash.New64(),
	}
}

func (c *Checksummed) Send(b []byte) (int, error) {
	n, err := c.DataObject.Send(b)
	if n > 0 {
		c.out.Write(b[:n])
	}
	return n, err
}

func (c *Checksummed) Recv(b []byte) (int, error) {
	n, err := c.DataObject.Recv(b)
	if n > 0 {
		c.in.Write(b[:n])
	}
	return n, err
}

// SumIn returns the running digest of bytes pulled from the source.
func (c *Checksummed) SumIn() uint64 { return c.in.Sum64() }

// SumOut returns the running digest of bytes pushed into the sink.
func (c *Checksummed) SumOut() uint64 { return c.out.Sum64() }
