package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyChannel(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		name string
		ch   Channel
		want Direction
	}{
		{"all empty", Channel{}, DirectionUnknown},
		{"inbound context", Channel{Name: "PJSIP/abc-001", Context: "from-external"}, DirectionInbound},
		{"inbound context case-insensitive", Channel{Name: "PJSIP/abc-001", Context: "From-Trunk"}, DirectionInbound},
		{"outbound prefix", Channel{Name: "PJSIP/mytrunk-0004", Context: "outbound-routes"}, DirectionOutbound},
		{"numeric peer is internal", Channel{Name: "PJSIP/1001-0000002a", Context: "internal"}, DirectionInternal},
		{"non-numeric peer unknown", Channel{Name: "PJSIP/reception-001", Context: "office"}, DirectionUnknown},
		{"hint wins over context", Channel{Name: "PJSIP/1001-001", Context: "from-external", DirectionHint: "outbound"}, DirectionOutbound},
		{"hint short form", Channel{Name: "PJSIP/abc-001", DirectionHint: "In"}, DirectionInbound},
		{"bad hint falls through", Channel{Name: "PJSIP/1001-001", DirectionHint: "sideways"}, DirectionInternal},
		{"inbound context beats outbound prefix", Channel{Name: "PJSIP/mytrunk-0004", Context: "inbound"}, DirectionInbound},
		{"name only, no slash", Channel{Name: "OutOfDialplan"}, DirectionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.ch, rules))
			// Determinism: same input, same label.
			assert.Equal(t, tt.want, Classify(tt.ch, rules))
		})
	}
}

func TestClassifyBridgeAggregate(t *testing.T) {
	rules := DefaultRules()
	inbound := Channel{Name: "PJSIP/trunk-001", Context: "from-external"}
	outbound := Channel{Name: "PJSIP/mytrunk-002"}
	internal := Channel{Name: "PJSIP/1001-003", Context: "internal"}
	stranger := Channel{Name: "PJSIP/fax-004"}

	tests := []struct {
		name    string
		members []Channel
		want    Direction
	}{
		{"no members", nil, DirectionUnknown},
		{"inbound plus internal", []Channel{inbound, internal}, DirectionInbound},
		{"outbound plus internal", []Channel{outbound, internal}, DirectionOutbound},
		{"inbound and outbound is mixed", []Channel{inbound, outbound}, DirectionMixed},
		{"unanimous internal", []Channel{internal, internal}, DirectionInternal},
		{"internal plus unknown", []Channel{internal, stranger}, DirectionUnknown},
		{"unanimous unknown", []Channel{stranger}, DirectionUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyBridge(tt.members, rules))
		})
	}
}

func TestDirectionString(t *testing.T) {
	assert.Equal(t, "inbound", DirectionInbound.String())
	assert.Equal(t, "outbound", DirectionOutbound.String())
	assert.Equal(t, "internal", DirectionInternal.String())
	assert.Equal(t, "mixed", DirectionMixed.String())
	assert.Equal(t, "unknown", DirectionUnknown.String())
	assert.Equal(t, "unknown", Direction(99).String())
}

func TestChannelNameParsing(t *testing.T) {
	ch := Channel{Name: "PJSIP/1001-0000002a"}
	assert.Equal(t, "PJSIP", ch.Tech())
	assert.Equal(t, "1001", ch.Peer())

	local := Channel{Name: "Local/123@internal-00000001;1"}
	assert.Equal(t, "Local", local.Tech())
	assert.Equal(t, "123@internal", local.Peer())

	bare := Channel{Name: "nonsense"}
	assert.Empty(t, bare.Tech())
	assert.Empty(t, bare.Peer())
}
