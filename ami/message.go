package ami

import "strings"

// Message is one decoded AMI frame: a mapping of field name to value.
// Field names are case-sensitive as delivered by the manager interface.
type Message map[string]string

// Get returns the value of a field, or "" if the field is absent.
func (m Message) Get(key string) string { return m[key] }

// Has reports whether the field is present, even if empty.
func (m Message) Has(key string) bool {
	_, ok := m[key]
	return ok
}

// IsEvent reports whether the message is an unsolicited event.
func (m Message) IsEvent() bool { return m.Get("Event") != "" }

// IsResponse reports whether the message is a reply to an action.
func (m Message) IsResponse() bool { return m.Has("Response") }

// Success reports whether a response message signals success.
// The manager is not consistent about case, so the check is case-insensitive.
func (m Message) Success() bool {
	return strings.EqualFold(m.Get("Response"), "Success")
}

// EventKind identifies the recognized manager event types.
type EventKind int

const (
	// EventUnknown covers every event name this client does not handle.
	EventUnknown EventKind = iota
	EventNewchannel
	EventNewstate
	EventNewCallerid
	EventRename
	EventVarSet
	EventHangup
	EventCoreShowChannel
	EventCoreShowChannelsComplete
	EventBridgeCreate
	EventBridgeDestroy
	EventBridgeEnter
	EventBridgeLeave
)

var eventKinds = map[string]EventKind{
	"Newchannel":               EventNewchannel,
	"Newstate":                 EventNewstate,
	"NewCallerid":              EventNewCallerid,
	"Rename":                   EventRename,
	"VarSet":                   EventVarSet,
	"Hangup":                   EventHangup,
	"CoreShowChannel":          EventCoreShowChannel,
	"CoreShowChannelsComplete": EventCoreShowChannelsComplete,
	"BridgeCreate":             EventBridgeCreate,
	"BridgeDestroy":            EventBridgeDestroy,
	"BridgeEnter":              EventBridgeEnter,
	"BridgeLeave":              EventBridgeLeave,
}

// Kind maps the message's Event field onto the closed set of recognized
// event kinds. Non-events and unrecognized names map to EventUnknown.
func (m Message) Kind() EventKind {
	return eventKinds[m.Get("Event")]
}

// BridgeID returns the bridge identifier of a bridge-related event.
// Asterisk uses BridgeUniqueid on bridge events but BridgeId on
// CoreShowChannel, so both spellings are accepted.
func (m Message) BridgeID() string {
	if id := m.Get("BridgeUniqueid"); id != "" {
		return id
	}
	return m.Get("BridgeId")
}
