package state

import "strings"

// Direction labels the traffic direction of a channel or bridge.
type Direction int

const (
	DirectionUnknown Direction = iota
	DirectionInbound
	DirectionOutbound
	DirectionInternal
	// DirectionMixed only applies to bridges joining inbound and outbound legs.
	DirectionMixed
)

func (d Direction) String() string {
	switch d {
	case DirectionInbound:
		return "inbound"
	case DirectionOutbound:
		return "outbound"
	case DirectionInternal:
		return "internal"
	case DirectionMixed:
		return "mixed"
	default:
		return "unknown"
	}
}

// Rules configures classification: contexts treated as inbound origin
// points and channel-name prefixes treated as outbound trunk legs. Rules
// never affect the store's raw data.
type Rules struct {
	InboundContexts  []string
	OutboundPrefixes []string
}

// DefaultRules matches the common FreePBX-style naming.
func DefaultRules() Rules {
	return Rules{
		InboundContexts:  []string{"from-external", "from-trunk", "inbound"},
		OutboundPrefixes: []string{"PJSIP/outbound", "PJSIP/mytrunk", "PJSIP/siptrunk"},
	}
}

// Classify labels one channel. It is a pure function: deterministic, no
// side effects, and total over arbitrary (including all-empty) records.
//
// Preference order: an explicit dialplan hint wins; then a case-insensitive
// context match marks inbound; then a name-prefix match marks outbound;
// then a numeric peer marks internal.
func Classify(ch Channel, rules Rules) Direction {
	if d, ok := parseHint(ch.DirectionHint); ok {
		return d
	}
	for _, ctx := range rules.InboundContexts {
		if strings.EqualFold(ch.Context, ctx) {
			return DirectionInbound
		}
	}
	for _, prefix := range rules.OutboundPrefixes {
		if strings.HasPrefix(ch.Name, prefix) {
			return DirectionOutbound
		}
	}
	if isNumeric(ch.Peer()) {
		return DirectionInternal
	}
	return DirectionUnknown
}

// ClassifyBridge aggregates member labels: mixed when both inbound and
// outbound legs are present, otherwise whichever of the two is, otherwise
// the unanimous member label, otherwise unknown.
func ClassifyBridge(members []Channel, rules Rules) Direction {
	var hasIn, hasOut bool
	unanimous := DirectionUnknown
	uniform := true
	for i, ch := range members {
		d := Classify(ch, rules)
		switch d {
		case DirectionInbound:
			hasIn = true
		case DirectionOutbound:
			hasOut = true
		}
		if i == 0 {
			unanimous = d
		} else if d != unanimous {
			uniform = false
		}
	}
	switch {
	case hasIn && hasOut:
		return DirectionMixed
	case hasIn:
		return DirectionInbound
	case hasOut:
		return DirectionOutbound
	case uniform && len(members) > 0:
		return unanimous
	default:
		return DirectionUnknown
	}
}

// parseHint accepts the direction variable values the dialplan may set.
// Unrecognized values fall through to the heuristics.
func parseHint(v string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "inbound", "in":
		return DirectionInbound, true
	case "outbound", "out":
		return DirectionOutbound, true
	case "internal":
		return DirectionInternal, true
	default:
		return DirectionUnknown, false
	}
}

func isNumeric(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
