package state

// Subscribe returns a channel of snapshots published after every change and a
// cancel func. A slow subscriber loses intermediate snapshots but always
// receives the newest one once it catches up.
func (s *Store) Subscribe(buffer int) (<-chan View, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan View, buffer)

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// publish delivers v, evicting the oldest queued snapshot when ch is full.
// Only the store writes to ch, under its mutex.
func publish(ch chan View, v View) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
