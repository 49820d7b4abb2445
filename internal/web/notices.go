package web

import "sync"

// Notice is a one-shot user-facing toast, pushed to every connected page
// over the event stream.
type Notice struct {
	Kind    string `json:"kind"` // "success" or "error"
	Message string `json:"message"`
}

// NoticeHub fans notifications out to stream subscribers. It satisfies the
// board's Notifier so mutation outcomes reach the page without an extra
// wiring layer.
type NoticeHub struct {
	mu   sync.Mutex
	subs map[chan Notice]struct{}
}

// NewNoticeHub creates an empty hub.
func NewNoticeHub() *NoticeHub {
	return &NoticeHub{subs: make(map[chan Notice]struct{})}
}

// Success pushes a success toast to all subscribers.
func (h *NoticeHub) Success(message string) {
	h.broadcast(Notice{Kind: "success", Message: message})
}

// Failure pushes an error toast to all subscribers.
func (h *NoticeHub) Failure(message string) {
	h.broadcast(Notice{Kind: "error", Message: message})
}

// Subscribe registers a notice channel. The returned cancel must be called
// when the subscriber disconnects; it closes the channel.
func (h *NoticeHub) Subscribe() (<-chan Notice, func()) {
	ch := make(chan Notice, 16)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, ch)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// broadcast never blocks; a subscriber that stopped draining loses toasts
// rather than stalling everyone else.
func (h *NoticeHub) broadcast(n Notice) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
}
