// Error taxonomy for the engine (spec.md §7), expressed as zeebo/errs
// classes rather than the sentinel-per-condition style elsewhere in the
// teacher, because spec.md enumerates a severity *ladder* (1-6) and
// errs.Class gives each rung a distinct, Is()-compatible identity while
// still letting the stream-teardown path treat anything in the "local"
// classes alike. Grounded on storj.io/drpc's drpcmanager (see
// DESIGN.md), which uses the same library for exactly this "local
// failure vs. must-close-the-connection" split.
package rpc

import "github.com/zeebo/errs"

var (
	// ErrSink classifies a data-sink send failure (spec.md §7 severity
	// 2): the stream is torn down with a reply-error; the client
	// survives.
	ErrSink = errs.Class("stream sink")

	// ErrSource classifies a data-source recv failure (severity 3):
	// the stream is torn down with a STREAM error frame; the client
	// survives.
	ErrSource = errs.Class("stream source")

	// ErrUnexpectedStatus classifies an inbound STREAM packet carrying
	// a status the engine doesn't recognize (severity 4): treated as
	// abort, recorded distinctly from a real peer ERROR.
	ErrUnexpectedStatus = errs.Class("stream unexpected status")

	// ErrHangup classifies a peer HANGUP or event-layer ERROR
	// (severity 5): the stream is closed and a STREAM error frame is
	// sent; the client survives unless that send itself fails.
	ErrHangup = errs.Class("stream hangup")

	// ErrCreditUnderrun classifies a failure to enqueue the synthetic
	// credit-return reply (severity 1): never recovered, forces
	// immediate client close.
	ErrCreditUnderrun = errs.Class("stream credit underrun")

	// ErrFrameSend classifies any failure to queue a frame into the
	// transport at all (severity 6): fatal for the client.
	ErrFrameSend = errs.Class("stream frame send")
)

// Fatal reports whether err belongs to one of the client-fatal classes
// (severities 1 and 6); everything else is stream-local and recoverable
// by tearing the stream down while keeping the client connection.
func Fatal(err error) bool {
	return ErrCreditUnderrun.Has(err) || ErrFrameSend.Has(err)
}
