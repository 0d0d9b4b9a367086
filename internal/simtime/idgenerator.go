package simtime

import (
	"strconv"
	"sync/atomic"

	"github.com/rs/xid"
)

// IDGenerator hands out identifiers used to tag messages. It does not
// participate in scheduling decisions.
type IDGenerator interface {
	Generate() string
}

// NewSequentialIDGenerator returns an IDGenerator that produces small
// monotonically increasing IDs. Runs built with it are deterministic and
// reproducible across machines (§8 invariant 6).
func NewSequentialIDGenerator() IDGenerator {
	return &sequentialIDGenerator{}
}

type sequentialIDGenerator struct {
	next uint64
}

func (g *sequentialIDGenerator) Generate() string {
	n := atomic.AddUint64(&g.next, 1)
	return strconv.FormatUint(n, 10)
}

// NewXIDGenerator returns an IDGenerator backed by github.com/rs/xid. IDs are
// globally unique but not deterministic between runs; use only when trace
// determinism is not required (e.g. interactive exploration).
func NewXIDGenerator() IDGenerator {
	return &xidGenerator{}
}

type xidGenerator struct{}

func (xidGenerator) Generate() string {
	return xid.New().String()
}
