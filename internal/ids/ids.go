package ids

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// cutman's ids are exposed directly in URLs and API responses (repo ids,
// namespace ids, token ids), so unlike a purely internal ledger key they
// must not be guessable from their timestamp component alone. Monotonic
// entropy seeded from crypto/rand rather than a time-seeded math/rand
// source keeps ids sortable by creation time while making the random
// component unpredictable.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
