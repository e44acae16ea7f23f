package ami

// Run is the session's reader loop. It must run on its own goroutine for
// the lifetime of the session: it reads every inbound message, routes
// responses carrying a known ActionID to their waiting caller, and hands
// everything else to the events queue in exact arrival order.
//
// Any transport error ends the loop: the running flag flips, all pending
// action waiters are failed, and the events channel and Done are closed.
// The loop never reconnects.
func (c *Client) Run() {
	defer c.shutdown()
	for {
		msg, err := ReadMessage(c.r)
		if err != nil {
			c.mu.Lock()
			if c.err == nil {
				c.err = err
			}
			c.mu.Unlock()
			c.log.Warnf("session reader stopped: %v", err)
			return
		}
		if c.route(msg) {
			continue
		}
		c.enqueue(msg)
	}
}

// route delivers a response to its pending waiter. Events are never routed
// even if a misbehaving peer echoes an ActionID on them.
func (c *Client) route(msg Message) bool {
	if msg.IsEvent() {
		return false
	}
	id := msg.Get("ActionID")
	if id == "" {
		return false
	}
	c.mu.Lock()
	ch, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	ch <- msg
	return true
}

// enqueue appends to the bounded hand-off queue. When the queue is full the
// oldest unapplied message is evicted so the reader never blocks; bounded
// staleness beats a stalled socket.
func (c *Client) enqueue(msg Message) {
	for {
		select {
		case c.events <- msg:
			return
		default:
		}
		select {
		case dropped := <-c.events:
			c.log.Warnf("event queue full, dropping oldest %q", dropped.Get("Event"))
		default:
		}
	}
}

func (c *Client) shutdown() {
	c.running.Store(false)
	c.mu.Lock()
	for id, ch := range c.pending {
		delete(c.pending, id)
		close(ch)
	}
	c.mu.Unlock()
	close(c.events)
	close(c.done)
}
