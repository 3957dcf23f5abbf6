package cos

import (
	"strconv"
	"sync/atomic"

	"github.com/OneOfOne/xxhash"
	"github.com/teris-io/shortid"
)

// Alphabet for generated IDs, mirrors the teacher's uuidABC constant.
const idABC = "-5nZJDft6LuzsjGNpPwY7rQa39vehq4i1cV2FROo8yHSlC0BUEdWbIxMmTgKXAk_"

var sid *shortid.Shortid

// InitIDGen seeds the filter-ID generator. Call once at daemon startup;
// tests that don't care about ID collisions may skip it; GenFilterID
// falls back to a counter if the generator was never seeded.
func InitIDGen(seed uint64) {
	sid = shortid.MustNew(4, idABC, seed)
}

var fallback int64

// GenFilterID returns a short, human-loggable identifier for a newly
// installed inbound-message filter (StreamState.filterId in spec terms).
// Called under each client's own lock (spec.md §5: different clients run
// concurrently under different locks), so the fallback counter has to be
// safe across clients on its own rather than borrow a lock it doesn't own.
func GenFilterID() string {
	if sid == nil {
		return "f" + strconv.FormatInt(atomic.AddInt64(&fallback, 1), 36)
	}
	id, err := sid.Generate()
	if err != nil {
		return "f" + strconv.FormatInt(atomic.AddInt64(&fallback, 1), 36)
	}
	return id
}

// Checksum64 hashes b, used by internal/rpc/audit to compute
// Entry.Checksum over an entry's client, procedure, serial and BytesIn.
func Checksum64(b []byte) uint64 {
	return xxhash.Checksum64(b)
}
