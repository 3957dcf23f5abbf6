package audit

// Code generated by msgp would normally live here; hand-written to the
// same shape (one map of 8 fields) since `go generate` isn't run as
// part of this build. Keep in sync with the Entry struct in audit.go if
// its fields change.

import "github.com/tinylib/msgp/msgp"

// MarshalMsg implements msgp.Marshaler.
func (z Entry) MarshalMsg(b []byte) (o []byte, err error) {
	o = msgp.Require(b, z.Msgsize())
	o = msgp.AppendMapHeader(o, 8)
	o = msgp.AppendString(o, "client")
	o = msgp.AppendString(o, z.Client)
	o = msgp.AppendString(o, "procedure")
	o = msgp.AppendUint64(o, z.Procedure)
	o = msgp.AppendString(o, "serial")
	o = msgp.AppendUint64(o, z.Serial)
	o = msgp.AppendString(o, "bytes_in")
	o = msgp.AppendUint64(o, z.BytesIn)
	o = msgp.AppendString(o, "bytes_out")
	o = msgp.AppendUint64(o, z.BytesOut)
	o = msgp.AppendString(o, "reason")
	o = msgp.AppendString(o, z.Reason)
	o = msgp.AppendString(o, "checksum")
	o = msgp.AppendUint64(o, z.Checksum)
	o = msgp.AppendString(o, "at")
	o = msgp.AppendInt64(o, z.At)
	return
}

// UnmarshalMsg implements msgp.Unmarshaler.
func (z *Entry) UnmarshalMsg(bts []byte) (o []byte, err error) {
	var field []byte
	n, bts, err := msgp.ReadMapHeaderBytes(bts)
	if err != nil {
		return bts, err
	}
	for i := uint32(0); i < n; i++ {
		field, bts, err = msgp.ReadStringZC(bts)
		if err != nil {
			return bts, err
		}
		switch string(field) {
		case "client":
			z.Client, bts, err = msgp.ReadStringBytes(bts)
		case "procedure":
			z.Procedure, bts, err = msgp.ReadUint64Bytes(bts)
		case "serial":
			z.Serial, bts, err = msgp.ReadUint64Bytes(bts)
		case "bytes_in":
			z.BytesIn, bts, err = msgp.ReadUint64Bytes(bts)
		case "bytes_out":
			z.BytesOut, bts, err = msgp.ReadUint64Bytes(bts)
		case "reason":
			z.Reason, bts, err = msgp.ReadStringBytes(bts)
		case "checksum":
			z.Checksum, bts, err = msgp.ReadUint64Bytes(bts)
		case "at":
			z.At, bts, err = msgp.ReadInt64Bytes(bts)
		default:
			bts, err = msgp.Skip(bts)
		}
		if err != nil {
			return bts, err
		}
	}
	return bts, nil
}

// Msgsize returns an upper bound estimate of the encoded size.
func (z Entry) Msgsize() (s int) {
	s = 1 + 7 + msgp.StringPrefixSize + len(z.Client)
	s += 10 + msgp.Uint64Size
	s += 7 + msgp.Uint64Size
	s += 9 + msgp.Uint64Size
	s += 10 + msgp.Uint64Size
	s += 7 + msgp.StringPrefixSize + len(z.Reason)
	s += 9 + msgp.Uint64Size
	s += 3 + msgp.Int64Size
	return
}
