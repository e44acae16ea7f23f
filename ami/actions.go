package ami

import (
	"fmt"
	"strconv"
	"time"
)

// Control actions issued back at the switch. Every action that needs a
// definite outcome goes through Do, so its response is matched by ActionID
// instead of by position in the stream.

// Hangup requests termination of the named channel.
func (c *Client) Hangup(channel string) error {
	return c.doSimple([]Field{
		{"Action", "Hangup"},
		{"Channel", channel},
	})
}

// BridgeKick removes a channel from a bridge without hanging it up.
func (c *Client) BridgeKick(bridgeID, channel string) error {
	return c.doSimple([]Field{
		{"Action", "BridgeKick"},
		{"BridgeUniqueid", bridgeID},
		{"Channel", channel},
	})
}

// BridgeDestroy tears down a bridge and everything in it.
func (c *Client) BridgeDestroy(bridgeID string) error {
	return c.doSimple([]Field{
		{"Action", "BridgeDestroy"},
		{"BridgeUniqueid", bridgeID},
	})
}

// Resync requests a full topology dump. The switch acknowledges the action
// directly and then answers with a burst of CoreShowChannel events, which
// reach the store through the ordinary ingestion path.
func (c *Client) Resync() error {
	return c.doSimple([]Field{{"Action", "CoreShowChannels"}})
}

// OriginateRequest describes a new call leg to inject into the dialplan,
// used for the supervisory listen-in feature.
type OriginateRequest struct {
	Endpoint  string // channel technology/resource to dial, e.g. PJSIP/operator
	Context   string
	Exten     string
	Timeout   time.Duration
	Variables map[string]string
}

// Originate creates the requested leg asynchronously; the response only
// acknowledges that the switch accepted the attempt.
func (c *Client) Originate(req OriginateRequest) error {
	fields := []Field{
		{"Action", "Originate"},
		{"Channel", req.Endpoint},
		{"Context", req.Context},
		{"Exten", req.Exten},
		{"Priority", "1"},
		{"Async", "true"},
	}
	if req.Timeout > 0 {
		fields = append(fields, Field{"Timeout", strconv.FormatInt(req.Timeout.Milliseconds(), 10)})
	}
	for name, value := range req.Variables {
		fields = append(fields, Field{"Variable", name + "=" + value})
	}
	return c.doSimple(fields)
}

func (c *Client) doSimple(fields []Field) error {
	resp, err := c.Do(fields)
	if err != nil {
		return err
	}
	if !resp.Success() {
		return fmt.Errorf("%s failed: %s", fields[0].Value, resp.Get("Message"))
	}
	return nil
}
