package ami

import (
	"bufio"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeClient returns a client wired to the near end of an in-memory
// connection plus a framed reader/writer for playing the switch side.
func pipeClient(t *testing.T, queueSize int) (*Client, net.Conn, *bufio.Reader) {
	t.Helper()
	near, far := net.Pipe()
	c := newClient(near, nil, queueSize)
	t.Cleanup(func() {
		_ = near.Close()
		_ = far.Close()
	})
	return c, far, bufio.NewReader(far)
}

func TestLoginSuccess(t *testing.T) {
	c, far, farR := pipeClient(t, defaultQueueSize)

	go func() {
		req, err := ReadMessage(farR)
		if err != nil {
			return
		}
		if req.Get("Action") != "Login" || req.Get("Events") != "on" {
			_ = far.Close()
			return
		}
		_ = WriteAction(far, []Field{
			{"Response", "Success"},
			{"Message", "Authentication accepted"},
		})
	}()

	require.NoError(t, c.Login("operator", "hunter2"))
}

func TestLoginRejected(t *testing.T) {
	c, far, farR := pipeClient(t, defaultQueueSize)

	go func() {
		_, _ = ReadMessage(farR)
		_ = WriteAction(far, []Field{
			{"Response", "Error"},
			{"Message", "Authentication failed"},
		})
	}()

	err := c.Login("operator", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rejected")
}

func TestLoginStreamClosed(t *testing.T) {
	c, far, farR := pipeClient(t, defaultQueueSize)

	go func() {
		_, _ = ReadMessage(farR)
		_ = far.Close()
	}()

	require.Error(t, c.Login("operator", "hunter2"))
}

func TestDoCorrelatesResponseAcrossEvents(t *testing.T) {
	c, far, farR := pipeClient(t, defaultQueueSize)
	go c.Run()

	go func() {
		req, err := ReadMessage(farR)
		if err != nil {
			return
		}
		id := req.Get("ActionID")
		// An unsolicited event lands between the send and its response; it
		// must reach the event queue, not the action waiter.
		_ = WriteAction(far, []Field{
			{"Event", "Newchannel"},
			{"Channel", "PJSIP/1001-0000002a"},
		})
		_ = WriteAction(far, []Field{
			{"Response", "Success"},
			{"ActionID", id},
		})
	}()

	require.NoError(t, c.Hangup("PJSIP/1001-0000002a"))

	select {
	case ev := <-c.Events():
		assert.Equal(t, EventNewchannel, ev.Kind())
	case <-time.After(time.Second):
		t.Fatal("interleaved event never reached the queue")
	}
}

func TestDoFailureResponse(t *testing.T) {
	c, far, farR := pipeClient(t, defaultQueueSize)
	go c.Run()

	go func() {
		req, err := ReadMessage(farR)
		if err != nil {
			return
		}
		_ = WriteAction(far, []Field{
			{"Response", "Error"},
			{"ActionID", req.Get("ActionID")},
			{"Message", "No such bridge"},
		})
	}()

	err := c.BridgeDestroy("nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No such bridge")
}

func TestDoTimeout(t *testing.T) {
	c, _, farR := pipeClient(t, defaultQueueSize)
	c.SetActionTimeout(50 * time.Millisecond)
	go c.Run()

	go func() {
		_, _ = ReadMessage(farR) // swallow the action, never answer
	}()

	err := c.Resync()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no response")
}

func TestTransportDeathFailsPendingAndFlipsRunning(t *testing.T) {
	c, far, farR := pipeClient(t, defaultQueueSize)
	go c.Run()

	go func() {
		_, _ = ReadMessage(farR)
		_ = far.Close()
	}()

	_, err := c.Do([]Field{{"Action", "CoreShowChannels"}})
	require.Error(t, err)

	select {
	case <-c.Done():
	case <-time.After(time.Second):
		t.Fatal("reader did not terminate on transport failure")
	}
	assert.False(t, c.Running())
	require.Error(t, c.Send([]Field{{"Action", "Logoff"}}))
}

func TestEventQueueDropsOldest(t *testing.T) {
	c, far, _ := pipeClient(t, 2)
	go c.Run()

	for i, name := range []string{"one", "two", "three", "four"} {
		err := WriteAction(far, []Field{
			{"Event", "Newchannel"},
			{"Channel", name},
		})
		require.NoError(t, err, "write %d", i)
	}
	_ = far.Close()
	<-c.Done()

	var got []string
	for ev := range c.Events() {
		got = append(got, ev.Get("Channel"))
	}
	assert.Equal(t, []string{"three", "four"}, got, "oldest entries are evicted, order preserved")
}

func TestEventOrderPreserved(t *testing.T) {
	c, far, _ := pipeClient(t, defaultQueueSize)
	go c.Run()

	names := []string{"a", "b", "c", "d", "e"}
	for _, name := range names {
		require.NoError(t, WriteAction(far, []Field{
			{"Event", "Newstate"},
			{"Channel", name},
		}))
	}
	_ = far.Close()
	<-c.Done()

	var got []string
	for ev := range c.Events() {
		got = append(got, ev.Get("Channel"))
	}
	assert.Equal(t, names, got)
}
