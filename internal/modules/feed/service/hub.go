package feed

import (
	"encoding/json"
	"sync"

	postDto "anoa.com/anomologita/internal/modules/post/dto"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
)

const EventPostCreated = "post.created"

var subscribersGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "anomologita_feed_subscribers",
	Help: "Current number of live feed subscribers",
})

func init() {
	prometheus.MustRegister(subscribersGauge)
}

type Event struct {
	Type string               `json:"type"`
	Post postDto.PostResponse `json:"post"`
}

// Subscription receives encoded events on C until it is unsubscribed or
// dropped for falling behind, at which point C is closed.
type Subscription struct {
	C            <-chan []byte
	ch           chan []byte
	universityID uuid.UUID
}

func (s *Subscription) wants(universityID uuid.UUID) bool {
	return s.universityID == uuid.Nil || s.universityID == universityID
}

// Hub fans newly created posts out to websocket subscribers in this process.
type Hub struct {
	mu     sync.Mutex
	subs   map[*Subscription]struct{}
	buffer int
}

func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = 16
	}
	return &Hub{subs: make(map[*Subscription]struct{}), buffer: buffer}
}

// Subscribe registers a subscriber. uuid.Nil means every university.
func (h *Hub) Subscribe(universityID uuid.UUID) *Subscription {
	ch := make(chan []byte, h.buffer)
	sub := &Subscription{C: ch, ch: ch, universityID: universityID}

	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	subscribersGauge.Inc()
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

// remove must be called with h.mu held.
func (h *Hub) remove(sub *Subscription) {
	if _, ok := h.subs[sub]; !ok {
		return
	}
	delete(h.subs, sub)
	close(sub.ch)
	subscribersGauge.Dec()
}

func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) PublishPost(post postDto.PostResponse) {
	payload, err := json.Marshal(Event{Type: EventPostCreated, Post: post})
	if err != nil {
		log.Warn().Err(err).Msg("failed to encode feed event")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.subs {
		if !sub.wants(post.UniversityID) {
			continue
		}
		select {
		case sub.ch <- payload:
		default:
			log.Warn().Msg("dropping slow feed subscriber")
			h.remove(sub)
		}
	}
}
