package events

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("producer", Ordered, func() {
	Context("write", func() {
		It("writes succsessfully", func() {
			w := newTestWriter()
			kp := NewEventProducer(w)

			// add the first message
			msg := []byte("msg1")
			err := kp.Write(context.TODO(), PassCompletedKind, bytes.NewReader(msg))
			Expect(err).To(BeNil())
			Eventually(w.Len).Should(Equal(1))
			Expect(w.At(0).Context.GetType()).To(Equal(PassCompletedKind))
			Expect(w.At(0).Source()).To(Equal(eventSource))

			msg = []byte("msg2")
			err = kp.Write(context.TODO(), PassFailedKind, bytes.NewReader(msg))
			Expect(err).To(BeNil())

			Eventually(w.Len).Should(Equal(2))
			Expect(w.At(1).Context.GetType()).To(Equal(PassFailedKind))
			Expect(w.Topic()).To(Equal(defaultTopic))

			Expect(kp.Close()).To(Succeed())
		})

		It("keeps the order of a burst", func() {
			w := newTestWriter()
			kp := NewEventProducer(w, WithOutputTopic("planner.test"))

			for i := 0; i < 50; i++ {
				Expect(kp.WriteJSON(context.TODO(), WaveStatusKind, WaveEvent{Index: i})).To(Succeed())
			}

			Eventually(w.Len).Should(Equal(50))
			for i := 0; i < 50; i++ {
				ev := WaveEvent{}
				Expect(json.Unmarshal(w.At(i).Data(), &ev)).To(Succeed())
				Expect(ev.Index).To(Equal(i))
			}
			Expect(w.Topic()).To(Equal("planner.test"))

			Expect(kp.Close()).To(Succeed())
		})

		It("encodes pass events as json", func() {
			w := newTestWriter()
			kp := NewEventProducer(w)

			Expect(kp.WriteJSON(context.TODO(), PassCompletedKind, PassEvent{PassID: "p1", Kind: "classify", VMsAffected: 3})).To(Succeed())
			Eventually(w.Len).Should(Equal(1))

			ev := PassEvent{}
			Expect(json.Unmarshal(w.At(0).Data(), &ev)).To(Succeed())
			Expect(ev.PassID).To(Equal("p1"))
			Expect(ev.VMsAffected).To(Equal(3))

			Expect(kp.Close()).To(Succeed())
		})
	})
})

type testwriter struct {
	mu       sync.Mutex
	messages []cloudevents.Event
	topic    string
}

func newTestWriter() *testwriter {
	return &testwriter{messages: []cloudevents.Event{}}
}

func (t *testwriter) Write(ctx context.Context, topic string, e cloudevents.Event) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.messages = append(t.messages, e)
	t.topic = topic
	return nil
}

func (t *testwriter) Close(_ context.Context) error {
	return nil
}

func (t *testwriter) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.messages)
}

func (t *testwriter) At(i int) cloudevents.Event {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.messages[i]
}

func (t *testwriter) Topic() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.topic
}
