package state

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"amiop/ami"
)

// directionVariable is the dialplan variable whose VarSet attaches an
// explicit direction hint to a channel.
const directionVariable = "CALLDIRECTION"

// Store holds the live channel/bridge topology. All reads and writes go
// through one mutex; queries return copies, never internal references.
type Store struct {
	mu       sync.Mutex
	channels map[string]*Channel
	bridges  map[string]*bridge
	log      *logrus.Entry
	now      func() time.Time
}

// NewStore creates an empty topology.
func NewStore(log *logrus.Entry) *Store {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = logrus.NewEntry(l)
	}
	return &Store{
		channels: make(map[string]*Channel),
		bridges:  make(map[string]*bridge),
		log:      log,
		now:      time.Now,
	}
}

// Apply folds one manager event into the topology. Events carrying an
// unrecognized name are ignored, which keeps the store forward-compatible
// with newer switch versions.
func (s *Store) Apply(msg ami.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch msg.Kind() {
	case ami.EventNewchannel, ami.EventNewstate, ami.EventNewCallerid, ami.EventCoreShowChannel:
		s.upsertLocked(msg)
	case ami.EventRename:
		s.renameLocked(msg.Get("Channel"), msg.Get("Newname"))
	case ami.EventVarSet:
		s.varSetLocked(msg)
	case ami.EventHangup:
		if name := msg.Get("Channel"); name != "" {
			s.removeChannelLocked(name)
		}
	case ami.EventBridgeCreate:
		s.bridgeCreateLocked(msg)
	case ami.EventBridgeDestroy:
		s.bridgeDestroyLocked(msg.BridgeID())
	case ami.EventBridgeEnter:
		s.bridgeEnterLocked(msg)
	case ami.EventBridgeLeave:
		s.bridgeLeaveLocked(msg)
	case ami.EventCoreShowChannelsComplete:
		s.log.Debug("topology resync complete")
	case ami.EventUnknown:
		// no-op
	}
}

// RemoveChannel deletes a channel and repairs bridge membership, deleting
// the bridge too if it would be left empty.
func (s *Store) RemoveChannel(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removeChannelLocked(name)
}

// Channel returns a copy of the named channel, if present.
func (s *Store) Channel(name string) (Channel, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[name]
	if !ok {
		return Channel{}, false
	}
	return *ch, true
}

// Channels returns copies of every channel, sorted by name.
func (s *Store) Channels() []Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, *ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Bridge returns a snapshot of the named bridge, if present.
func (s *Store) Bridge(id string) (Bridge, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bridges[id]
	if !ok {
		return Bridge{}, false
	}
	return b.snapshot(), true
}

// Bridges returns snapshots of every bridge, sorted by id.
func (s *Store) Bridges() []Bridge {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Bridge, 0, len(s.bridges))
	for _, b := range s.bridges {
		out = append(out, b.snapshot())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Members returns copies of the channel records behind a bridge snapshot.
// Channels the store has no record for are skipped.
func (s *Store) Members(b Bridge) []Channel {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Channel, 0, len(b.Members))
	for _, name := range b.Members {
		if ch, ok := s.channels[name]; ok {
			out = append(out, *ch)
		}
	}
	return out
}

// upsertLocked creates or merges a channel record. Merging never blanks a
// known field: an event that omits a field leaves the recorded value alone.
func (s *Store) upsertLocked(msg ami.Message) {
	name := msg.Get("Channel")
	if name == "" {
		return
	}
	ch := s.channelLocked(name)

	setIf(&ch.UniqueID, firstOf(msg.Get("Uniqueid"), msg.Get("UniqueID")))
	setIf(&ch.LinkedID, msg.Get("Linkedid"))
	setIf(&ch.CallerIDNum, msg.Get("CallerIDNum"))
	setIf(&ch.CallerIDName, msg.Get("CallerIDName"))
	setIf(&ch.ConnectedLineNum, msg.Get("ConnectedLineNum"))
	setIf(&ch.ConnectedLineName, msg.Get("ConnectedLineName"))
	setIf(&ch.Context, msg.Get("Context"))
	setIf(&ch.Exten, msg.Get("Exten"))
	setIf(&ch.StateDesc, msg.Get("ChannelStateDesc"))
	if d := parseDurationSec(msg.Get("Duration")); d > 0 {
		ch.DurationSec = d
	}
	ch.LastSeen = s.now()

	// CoreShowChannel reports bridge ownership directly; keep membership
	// symmetric with it.
	if bid := msg.BridgeID(); bid != "" {
		s.joinLocked(ch, bid, "")
	}
}

// varSetLocked records the direction hint variable; all other variables are
// deliberately not mirrored into the store.
func (s *Store) varSetLocked(msg ami.Message) {
	name := msg.Get("Channel")
	if name == "" {
		return
	}
	if !strings.EqualFold(msg.Get("Variable"), directionVariable) {
		return
	}
	ch := s.channelLocked(name)
	ch.DirectionHint = msg.Get("Value")
	ch.LastSeen = s.now()
}

// renameLocked moves a channel to a new key and re-points every bridge
// membership entry that referenced the old name. All of it happens under
// the store lock so no reader can observe the channel under neither or
// both keys.
func (s *Store) renameLocked(oldName, newName string) {
	if oldName == "" || newName == "" || oldName == newName {
		return
	}
	ch, ok := s.channels[oldName]
	if !ok {
		return
	}
	delete(s.channels, oldName)
	ch.Name = newName
	ch.LastSeen = s.now()
	s.channels[newName] = ch
	for _, b := range s.bridges {
		if _, ok := b.members[oldName]; ok {
			delete(b.members, oldName)
			b.members[newName] = struct{}{}
		}
	}
}

func (s *Store) bridgeCreateLocked(msg ami.Message) {
	bid := msg.BridgeID()
	if bid == "" {
		return
	}
	b := s.bridgeLocked(bid)
	setIf(&b.btype, firstOf(msg.Get("BridgeType"), msg.Get("BridgeTechnology")))
}

func (s *Store) bridgeDestroyLocked(bid string) {
	b, ok := s.bridges[bid]
	if !ok {
		return
	}
	for name := range b.members {
		if ch, ok := s.channels[name]; ok && ch.BridgeID == bid {
			ch.BridgeID = ""
		}
	}
	delete(s.bridges, bid)
}

func (s *Store) bridgeEnterLocked(msg ami.Message) {
	bid := msg.BridgeID()
	name := msg.Get("Channel")
	if bid == "" || name == "" {
		return
	}
	s.upsertLocked(msg)
	s.joinLocked(s.channelLocked(name), bid, firstOf(msg.Get("BridgeType"), msg.Get("BridgeTechnology")))
}

func (s *Store) bridgeLeaveLocked(msg ami.Message) {
	bid := msg.BridgeID()
	name := msg.Get("Channel")
	if bid == "" || name == "" {
		return
	}
	if b, ok := s.bridges[bid]; ok {
		delete(b.members, name)
		if len(b.members) == 0 {
			delete(s.bridges, bid)
		}
	}
	if ch, ok := s.channels[name]; ok && ch.BridgeID == bid {
		ch.BridgeID = ""
	}
}

func (s *Store) removeChannelLocked(name string) {
	ch, ok := s.channels[name]
	if !ok {
		return
	}
	delete(s.channels, name)
	if ch.BridgeID == "" {
		return
	}
	if b, ok := s.bridges[ch.BridgeID]; ok {
		delete(b.members, name)
		if len(b.members) == 0 {
			delete(s.bridges, ch.BridgeID)
		}
	}
}

// joinLocked moves a channel into a bridge, leaving any previous bridge
// first so membership stays symmetric.
func (s *Store) joinLocked(ch *Channel, bid, btype string) {
	if ch.BridgeID != "" && ch.BridgeID != bid {
		if prev, ok := s.bridges[ch.BridgeID]; ok {
			delete(prev.members, ch.Name)
			if len(prev.members) == 0 {
				delete(s.bridges, ch.BridgeID)
			}
		}
	}
	b := s.bridgeLocked(bid)
	setIf(&b.btype, btype)
	b.members[ch.Name] = struct{}{}
	ch.BridgeID = bid
}

// channelLocked returns the record for name, creating it on first sighting.
func (s *Store) channelLocked(name string) *Channel {
	ch, ok := s.channels[name]
	if !ok {
		ch = &Channel{Name: name, LastSeen: s.now()}
		s.channels[name] = ch
	}
	return ch
}

func (s *Store) bridgeLocked(bid string) *bridge {
	b, ok := s.bridges[bid]
	if !ok {
		b = &bridge{id: bid, members: make(map[string]struct{}), firstSeen: s.now()}
		s.bridges[bid] = b
	}
	return b
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func firstOf(a, b string) string {
	if a != "" {
		return a
	}
	return b
}

// parseDurationSec accepts either plain seconds or the HH:MM:SS form used
// by CoreShowChannel.
func parseDurationSec(v string) int {
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	parts := strings.Split(v, ":")
	if len(parts) != 3 {
		return 0
	}
	h, err1 := strconv.Atoi(parts[0])
	m, err2 := strconv.Atoi(parts[1])
	sec, err3 := strconv.Atoi(parts[2])
	if err1 != nil || err2 != nil || err3 != nil {
		return 0
	}
	return h*3600 + m*60 + sec
}
