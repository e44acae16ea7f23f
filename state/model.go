package state

import (
	"sort"
	"strings"
	"time"
)

// Channel is one call leg as seen by the switch. The channel name is the
// identity key; a rename changes the key while preserving the record.
type Channel struct {
	Name              string
	UniqueID          string
	LinkedID          string
	CallerIDNum       string
	CallerIDName      string
	ConnectedLineNum  string
	ConnectedLineName string
	Context           string
	Exten             string
	StateDesc         string
	BridgeID          string
	DurationSec       int
	DirectionHint     string // set by the dialplan via a VarSet, wins in classification
	LastSeen          time.Time
}

// Tech returns the technology part of the channel name, e.g. "PJSIP" for
// PJSIP/1001-0000002a.
func (c Channel) Tech() string {
	if i := strings.IndexByte(c.Name, '/'); i >= 0 {
		return c.Name[:i]
	}
	return ""
}

// Peer returns the peer/resource part of the channel name with the trailing
// instance suffix stripped, e.g. "1001" for PJSIP/1001-0000002a.
func (c Channel) Peer() string {
	rest := c.Name
	if i := strings.IndexByte(rest, '/'); i >= 0 {
		rest = rest[i+1:]
	} else {
		return ""
	}
	if i := strings.LastIndexByte(rest, '-'); i > 0 {
		rest = rest[:i]
	}
	return rest
}

// Bridge is a point-in-time snapshot of one bridge: the set of channels
// currently joined into a single conversation.
type Bridge struct {
	ID        string
	Type      string
	Members   []string // sorted channel names
	FirstSeen time.Time
}

// bridge is the store-internal mutable form.
type bridge struct {
	id        string
	btype     string
	members   map[string]struct{}
	firstSeen time.Time
}

func (b *bridge) snapshot() Bridge {
	members := make([]string, 0, len(b.members))
	for name := range b.members {
		members = append(members, name)
	}
	sort.Strings(members)
	return Bridge{
		ID:        b.id,
		Type:      b.btype,
		Members:   members,
		FirstSeen: b.firstSeen,
	}
}
