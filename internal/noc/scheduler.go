// Package noc implements the global message scheduler (C4+C5): a single
// timeline shared by every tile, ordering messages by sent timestamp and
// applying congestion back-pressure as they enter the mesh (§4.5).
//
// The min-heap here is a container/heap of messages keyed by sent
// timestamp, augmented with the per-source "next message" chaining §4.5.3
// requires.
package noc

import (
	"container/heap"

	"github.com/SLAM-Lab/sana-fe/internal/hook"
	"github.com/SLAM-Lab/sana-fe/internal/mesh"
	"github.com/SLAM-Lab/sana-fe/internal/message"
	"github.com/SLAM-Lab/sana-fe/internal/simerr"
	"github.com/SLAM-Lab/sana-fe/internal/simtime"
)

// epsilon bounds the floating-point slack tolerated when asserting that a
// departing message's density contribution was fully present on its links.
const epsilon = 1e-9

// Config holds the scheduler parameters that do not change between runs.
type Config struct {
	// BufferSize is the per-link buffer depth used by the congestion
	// threshold, route_density > (hops+1)*buffer_size (§4.5.4).
	BufferSize int
}

// Scheduler holds the mutable NoC state described in §4.5.2: the per-link
// message-density vector, the rolling mean in-flight receive delay, the
// per-destination-core receive-unit busy time, and the set of messages
// currently occupying the mesh, none of which belongs to the static mesh
// addressing scheme in package mesh.
type Scheduler struct {
	hook.Base

	mesh   *mesh.Mesh
	config Config

	density []float64 // indexed by mesh.Index(x, y, dir)

	meanInFlightReceiveDelay simtime.VTimeInSec
	messagesInNoc            int

	// coreFinishedReceiving[core] is the earliest time that destination
	// core's receive unit is idle again; absent entries default to 0.
	coreFinishedReceiving map[int]simtime.VTimeInSec

	// inFlight holds every message currently occupying the mesh, in place
	// of the per-destination-core messages_received lists in §4.5.2: a
	// single slice is swept on every schedule_update_noc call regardless
	// of which core a message targets, which departs the same messages in
	// the same order without the extra per-core bookkeeping.
	inFlight []*message.Message

	nextSeq uint64
}

// NewScheduler creates a Scheduler over m's addressing scheme.
func NewScheduler(m *mesh.Mesh, config Config) *Scheduler {
	return &Scheduler{
		mesh:                  m,
		config:                config,
		density:               make([]float64, m.DensityVectorLen()),
		coreFinishedReceiving: map[int]simtime.VTimeInSec{},
	}
}

// msgHeap is a container/heap of messages ordered by sent timestamp, with
// insertion order breaking ties so that same-timestamp messages schedule in
// the order they were generated (§4.5.3, §4.5.6).
type msgHeap []*message.Message

func (h msgHeap) Len() int { return len(h) }

func (h msgHeap) Less(i, j int) bool {
	if h[i].SentTimestamp != h[j].SentTimestamp {
		return h[i].SentTimestamp < h[j].SentTimestamp
	}
	return h[i].Seq() < h[j].Seq()
}

func (h msgHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *msgHeap) Push(x interface{}) {
	*h = append(*h, x.(*message.Message))
}

func (h *msgHeap) Pop() interface{} {
	old := *h
	n := len(old)
	m := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return m
}

// ScheduleMessages runs one timestep's worth of messages (one queue per
// source core, in source-core mapping order) through the global NoC
// timeline, returning the total timestep latency (§4.5.1, §4.5.4). A
// source core can only have one message in flight at a time, so the next
// message from a core is pushed only once the one before it has been
// popped, its sent_timestamp derived from that message rather than
// scheduled independently.
func (s *Scheduler) ScheduleMessages(queues [][]*message.Message) (simtime.VTimeInSec, error) {
	pending := make([][]*message.Message, len(queues))
	copy(pending, queues)

	h := &msgHeap{}
	heap.Init(h)
	for core, q := range pending {
		if len(q) == 0 {
			continue
		}
		m := q[0]
		pending[core] = q[1:]
		m.SentTimestamp = m.GenerationDelay
		m.SetSeq(s.nextSeq)
		s.nextSeq++
		heap.Push(h, m)
	}

	var lastTimestamp simtime.VTimeInSec
	for h.Len() > 0 {
		m := heap.Pop(h).(*message.Message)
		if m.SentTimestamp > lastTimestamp {
			lastTimestamp = m.SentTimestamp
		}
		s.updateNoc(m.SentTimestamp)

		if !m.Placeholder {
			s.scheduleOne(m)
			if m.ProcessedTimestamp > lastTimestamp {
				lastTimestamp = m.ProcessedTimestamp
			}
		}

		core := m.SrcCoreID
		if q := pending[core]; len(q) > 0 {
			next := q[0]
			pending[core] = q[1:]
			next.SentTimestamp = m.SentTimestamp + next.GenerationDelay
			next.SetSeq(s.nextSeq)
			s.nextSeq++
			heap.Push(h, next)
		}
	}

	return lastTimestamp, nil
}

// scheduleOne admits a non-placeholder message to the mesh, steps 1-9 of
// §4.5.4.
func (s *Scheduler) scheduleOne(m *message.Message) {
	route := mesh.Route(m.SrcX, m.SrcY, m.SrcCoreOffset, m.DstX, m.DstY, m.DstCoreOffset)

	// 1. route_density as it stands before m's own contribution is added.
	routeDensity := s.routeDensity(route)

	// 2. Congestion back-pressure.
	threshold := float64(m.Hops+1) * float64(s.config.BufferSize)
	if routeDensity > threshold {
		m.BlockedDelay = simtime.VTimeInSec((routeDensity - threshold) * float64(s.meanInFlightReceiveDelay))
		m.SentTimestamp += m.BlockedDelay
	}

	// 3. Admit to the NoC.
	m.InNoc = true
	s.inFlight = append(s.inFlight, m)

	// 4. Add m's own contribution to link density.
	s.addDensity(route)

	// 5. Roll the mean in-flight receive delay forward.
	n := s.messagesInNoc + 1
	s.meanInFlightReceiveDelay += (m.ReceiveDelay - s.meanInFlightReceiveDelay) / simtime.VTimeInSec(n)
	s.messagesInNoc = n

	// 6. Effective network delay, using the density from before m joined
	// and the mean just updated in step 5.
	effectiveNetworkDelay := simtime.VTimeInSec(routeDensity) * s.meanInFlightReceiveDelay / simtime.VTimeInSec(m.Hops+1)
	networkDelay := m.NetworkDelay
	if effectiveNetworkDelay > networkDelay {
		networkDelay = effectiveNetworkDelay
	}
	earliestReceived := m.SentTimestamp + networkDelay

	// 7-9. Serialize against the destination core's receive unit; read
	// its old finish time before overwriting it in step 8.
	dst := m.DstCoreID
	oldFinished := s.coreFinishedReceiving[dst]

	m.ReceivedTimestamp = earliestReceived
	if oldFinished > earliestReceived {
		m.ReceivedTimestamp = oldFinished
	}

	newFinished := oldFinished + m.ReceiveDelay
	if alt := earliestReceived + m.ReceiveDelay; alt > newFinished {
		newFinished = alt
	}
	s.coreFinishedReceiving[dst] = newFinished
	m.ProcessedTimestamp = newFinished

	s.InvokeHook(hook.Ctx{Domain: s, Pos: hook.PosMessageScheduled, Item: m})
}

// updateNoc departs every in-flight message whose received timestamp is no
// later than now, rolling back its density and mean contribution (§4.5.5).
func (s *Scheduler) updateNoc(now simtime.VTimeInSec) {
	kept := s.inFlight[:0]
	for _, m := range s.inFlight {
		if m.ReceivedTimestamp <= now {
			s.departMessage(m)
			continue
		}
		kept = append(kept, m)
	}
	s.inFlight = kept
}

func (s *Scheduler) departMessage(m *message.Message) {
	route := mesh.Route(m.SrcX, m.SrcY, m.SrcCoreOffset, m.DstX, m.DstY, m.DstCoreOffset)
	s.removeDensity(route)
	m.InNoc = false

	if s.messagesInNoc > 1 {
		s.meanInFlightReceiveDelay += (s.meanInFlightReceiveDelay - m.ReceiveDelay) / simtime.VTimeInSec(s.messagesInNoc-1)
	} else {
		s.meanInFlightReceiveDelay = 0
	}
	s.messagesInNoc--
}

func (s *Scheduler) routeDensity(route []mesh.Link) float64 {
	var total float64
	for _, link := range route {
		total += s.density[s.mesh.Index(link.X, link.Y, link.Dir)]
	}
	return total
}

func (s *Scheduler) addDensity(route []mesh.Link) {
	for _, link := range route {
		s.density[s.mesh.Index(link.X, link.Y, link.Dir)] += 1.0 / float64(len(route))
	}
}

func (s *Scheduler) removeDensity(route []mesh.Link) {
	for _, link := range route {
		idx := s.mesh.Index(link.X, link.Y, link.Dir)
		s.density[idx] -= 1.0 / float64(len(route))
		simerr.Assertf(s.density[idx] >= -epsilon, "link (%d,%d,%d) density went negative: %g", link.X, link.Y, link.Dir, s.density[idx])
	}
}

// Reset clears all scheduler state, ready for the next run (e.g. between
// table-driven tests sharing one Scheduler).
func (s *Scheduler) Reset() {
	for i := range s.density {
		s.density[i] = 0
	}
	s.meanInFlightReceiveDelay = 0
	s.messagesInNoc = 0
	s.coreFinishedReceiving = map[int]simtime.VTimeInSec{}
	s.inFlight = nil
	s.nextSeq = 0
}
