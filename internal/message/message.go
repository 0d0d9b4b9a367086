// Package message defines the Message struct shared by the pipeline (which
// creates messages) and the NoC scheduler (which schedules them). It is
// deliberately a leaf package so neither of those import each other.
package message

import "github.com/SLAM-Lab/sana-fe/internal/simtime"

// Message is one spike packet traveling from a source neuron's core to one
// destination core, per spec §3. Identity fields are set once at creation;
// the rest are filled in as the message moves through generation, the NoC,
// and receive processing.
type Message struct {
	ID string

	Timestep int64

	// Source identity.
	SrcNeuronID      int
	SrcNeuronGroupID string
	SrcX, SrcY       int
	SrcTileID        int
	SrcCoreID        int
	SrcCoreOffset    int

	// Destination identity.
	DstX, DstY     int
	DstTileID      int
	DstCoreID      int
	DstCoreOffset  int
	DstAxonHWName  string
	DstAxonAddress int

	// Placeholder messages carry no spike; a core appends one at the end of
	// its queue when processing latency is left over that no generated
	// message consumed, so the scheduler still advances that core's clock
	// by it (§4.3.1).
	Placeholder bool
	SpikeCount  int
	Hops        int

	// Timing, filled in across generation -> NoC -> receive.
	GenerationDelay   simtime.VTimeInSec
	NetworkDelay      simtime.VTimeInSec
	ReceiveDelay      simtime.VTimeInSec
	BlockedDelay      simtime.VTimeInSec
	SentTimestamp     simtime.VTimeInSec
	ReceivedTimestamp simtime.VTimeInSec
	ProcessedTimestamp simtime.VTimeInSec

	// InNoc is true from the moment the scheduler accepts the message
	// until it is marked received; used to size the in-flight count the
	// congestion estimate is based on (§4.5.2).
	InNoc bool

	// seq breaks sent-timestamp ties in scheduling order (§4.5.4); set by
	// the scheduler when the message is pushed onto the heap, not by the
	// pipeline.
	seq uint64
}

// Seq returns the scheduler's tie-break sequence number.
func (m *Message) Seq() uint64 { return m.seq }

// SetSeq is called once by the scheduler when the message enters the heap.
func (m *Message) SetSeq(seq uint64) { m.seq = seq }
