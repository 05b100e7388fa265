package reader

import "sync"

// Key is a navigation key understood by a Session.
type Key string

// Navigation keys.
const (
	KeyRight  Key = "right"
	KeyLeft   Key = "left"
	KeyEscape Key = "esc"
)

// HandleKey applies the navigation binding for k and reports whether k is bound.
// Escape only closes the overlay.
func (s *Session) HandleKey(k Key) bool {
	switch k {
	case KeyRight:
		s.NextPage()
	case KeyLeft:
		s.PreviousPage()
	case KeyEscape:
		s.CloseOverlay()
	default:
		return false
	}
	return true
}

// Keyboard fans key presses out to subscribed listeners. It stands in for a
// view-wide key event source.
type Keyboard struct {
	mu        sync.Mutex
	listeners map[uint64]func(Key)
	nextID    uint64
}

// NewKeyboard creates a keyboard with no listeners.
func NewKeyboard() *Keyboard {
	return &Keyboard{listeners: make(map[uint64]func(Key))}
}

// Subscribe registers fn for every dispatched key. The returned function
// removes the listener and is safe to call more than once.
func (kb *Keyboard) Subscribe(fn func(Key)) (unsubscribe func()) {
	kb.mu.Lock()
	id := kb.nextID
	kb.nextID++
	kb.listeners[id] = fn
	kb.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			kb.mu.Lock()
			delete(kb.listeners, id)
			kb.mu.Unlock()
		})
	}
}

// Dispatch delivers k to every current listener.
func (kb *Keyboard) Dispatch(k Key) {
	kb.mu.Lock()
	fns := make([]func(Key), 0, len(kb.listeners))
	for _, fn := range kb.listeners {
		fns = append(fns, fn)
	}
	kb.mu.Unlock()

	for _, fn := range fns {
		fn(k)
	}
}

// Listeners returns the number of subscribed listeners.
func (kb *Keyboard) Listeners() int {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	return len(kb.listeners)
}

// Attach subscribes s to kb. Call the returned function when the view that
// owns s goes away; after that, keys no longer reach the session.
func (s *Session) Attach(kb *Keyboard) (detach func()) {
	return kb.Subscribe(func(k Key) { s.HandleKey(k) })
}
