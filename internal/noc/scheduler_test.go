package noc

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/SLAM-Lab/sana-fe/internal/mesh"
	"github.com/SLAM-Lab/sana-fe/internal/message"
	"github.com/SLAM-Lab/sana-fe/internal/simtime"
)

func singleHopMessage() *message.Message {
	return &message.Message{
		SrcX: 0, SrcY: 0, SrcCoreID: 0, SrcCoreOffset: 0,
		DstX: 1, DstY: 0, DstCoreID: 1, DstCoreOffset: 0,
		Hops:            1,
		GenerationDelay: 1e-9,
		NetworkDelay:    2e-9,
		ReceiveDelay:    3e-9,
	}
}

var _ = Describe("Scheduler", func() {
	var m *mesh.Mesh

	BeforeEach(func() {
		m = mesh.New(2, 1, 1)
	})

	It("schedules a single message without congestion", func() {
		s := NewScheduler(m, Config{BufferSize: 4})
		msg := singleHopMessage()

		last, err := s.ScheduleMessages([][]*message.Message{{msg}, nil})

		Expect(err).To(BeNil())
		Expect(msg.BlockedDelay).To(BeNumerically("==", 0))
		Expect(msg.SentTimestamp).To(BeNumerically("==", msg.GenerationDelay))
		Expect(msg.ReceivedTimestamp).To(BeNumerically("==", msg.SentTimestamp+msg.NetworkDelay))
		Expect(msg.ProcessedTimestamp).To(BeNumerically("==", msg.ReceivedTimestamp+msg.ReceiveDelay))
		Expect(last).To(BeNumerically("==", msg.ProcessedTimestamp))
	})

	It("chains a source core's messages by generation delay", func() {
		s := NewScheduler(m, Config{BufferSize: 4})
		first := singleHopMessage()
		second := singleHopMessage()
		second.GenerationDelay = 5e-9

		_, err := s.ScheduleMessages([][]*message.Message{{first, second}, nil})

		Expect(err).To(BeNil())
		Expect(second.SentTimestamp).To(BeNumerically("==", first.SentTimestamp+second.GenerationDelay))
	})

	It("adds blocked delay once route density exceeds the congestion threshold", func() {
		s := NewScheduler(m, Config{BufferSize: 1})

		var queues [][]*message.Message
		for i := 0; i < 4; i++ {
			msg := singleHopMessage()
			msg.SrcCoreID = i
			queues = append(queues, []*message.Message{msg})
		}
		queues = append(queues, nil)

		_, err := s.ScheduleMessages(queues)
		Expect(err).To(BeNil())

		var sawCongestion bool
		for _, q := range queues {
			for _, msg := range q {
				if msg.BlockedDelay > 0 {
					sawCongestion = true
				}
			}
		}
		Expect(sawCongestion).To(BeTrue())
	})

	It("returns density to zero once every in-flight message departs", func() {
		s := NewScheduler(m, Config{BufferSize: 4})
		msg := singleHopMessage()

		_, err := s.ScheduleMessages([][]*message.Message{{msg}, nil})
		Expect(err).To(BeNil())

		s.updateNoc(msg.ProcessedTimestamp + 1)
		for _, d := range s.density {
			Expect(d).To(BeNumerically("~", 0, 1e-12))
		}
		Expect(s.meanInFlightReceiveDelay).To(BeNumerically("==", simtime.VTimeInSec(0)))
	})
})
