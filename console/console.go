package console

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"amiop/ami"
	"amiop/config"
	"amiop/state"
)

// Actions is the subset of the AMI client the console drives.
type Actions interface {
	Hangup(channel string) error
	BridgeKick(bridgeID, channel string) error
	BridgeDestroy(bridgeID string) error
	Resync() error
	Originate(req ami.OriginateRequest) error
	Running() bool
}

// Console is the interactive operator menu. It only ever reads snapshots
// from the store; all mutation happens through the ingestion path.
type Console struct {
	actions Actions
	store   *state.Store
	rules   state.Rules
	cfg     *config.Config
	in      *bufio.Scanner
	out     io.Writer
}

// New creates a console reading commands from in and rendering to out.
func New(actions Actions, store *state.Store, cfg *config.Config, in io.Reader, out io.Writer) *Console {
	return &Console{
		actions: actions,
		store:   store,
		rules:   cfg.Rules(),
		cfg:     cfg,
		in:      bufio.NewScanner(in),
		out:     out,
	}
}

// Run loops over the menu until the operator exits, input ends or the
// session dies. Session death is only noticed between iterations; the
// operator may need one more keypress to observe it.
func (c *Console) Run() {
	for c.actions.Running() {
		c.printMenu()
		choice, ok := c.readLine("Select an option: ")
		if !ok {
			return
		}
		switch choice {
		case "1":
			c.printBridges()
		case "2":
			if bid, ok := c.readLine("Enter BridgeId: "); ok && bid != "" {
				c.printBridgeDetails(bid)
			}
		case "3":
			c.hangupChannel()
		case "4":
			c.kickFromBridge()
		case "5":
			c.destroyBridge()
		case "6":
			c.hangupAll()
		case "7":
			c.configureRules()
		case "8":
			c.report(c.actions.Resync(), "Refresh requested.")
		case "s", "S":
			if c.cfg.SupervisorEnabled() {
				c.listenIn()
			} else {
				fmt.Fprintln(c.out, "Unknown option.")
			}
		case "9":
			return
		default:
			fmt.Fprintln(c.out, "Unknown option.")
		}
	}
}

func (c *Console) printMenu() {
	fmt.Fprint(c.out, "\n=== AMI Call Control Console (Bridge-aware) ===\n"+
		"1) List active calls (bridges)\n"+
		"2) Show call (bridge) details\n"+
		"3) Hang up a channel\n"+
		"4) Kick a channel from a bridge\n"+
		"5) Destroy a bridge\n"+
		"6) Hang up ALL channels\n"+
		"7) Configure inbound/outbound classification rules\n"+
		"8) Refresh snapshot\n")
	if c.cfg.SupervisorEnabled() {
		fmt.Fprint(c.out, "s) Listen in on a channel\n")
	}
	fmt.Fprint(c.out, "9) Exit\n")
}

func (c *Console) printBridges() {
	bridges := c.store.Bridges()
	fmt.Fprintf(c.out, "\nActive Calls (Bridges): %d\n", len(bridges))
	fmt.Fprintln(c.out, strings.Repeat("-", 77))
	fmt.Fprintln(c.out, "Idx | Type     | BridgeId                         | Members | MaxLegDuration")
	fmt.Fprintln(c.out, strings.Repeat("-", 77))
	for i, b := range bridges {
		members := c.store.Members(b)
		maxDur := 0
		for _, ch := range members {
			if ch.DurationSec > maxDur {
				maxDur = ch.DurationSec
			}
		}
		dir := state.ClassifyBridge(members, c.rules).String()
		shortID := b.ID
		if len(shortID) > 32 {
			shortID = shortID[:29] + "..."
		}
		fmt.Fprintf(c.out, "%-3d | %-8s | %-32s | %-7d | %ds\n", i+1, dir, shortID, len(b.Members), maxDur)
	}
	fmt.Fprintln(c.out, strings.Repeat("-", 77))
}

func (c *Console) printBridgeDetails(bid string) {
	b, ok := c.store.Bridge(bid)
	if !ok {
		fmt.Fprintln(c.out, "Bridge not found.")
		return
	}
	fmt.Fprintf(c.out, "\nBridge: %s\nMembers:\n", b.ID)
	for i, name := range b.Members {
		ch, ok := c.store.Channel(name)
		if !ok {
			fmt.Fprintf(c.out, "  %d) %s (no details)\n", i+1, name)
			continue
		}
		fmt.Fprintf(c.out, "  %d) %s | %ds | %s | %s -> %s | ctx=%s | dir=%s\n",
			i+1, ch.Name, ch.DurationSec, ch.StateDesc,
			party(ch.CallerIDName, ch.CallerIDNum),
			party(ch.ConnectedLineName, ch.ConnectedLineNum),
			ch.Context, state.Classify(ch, c.rules))
	}
}

// party formats "Name <num>" with an "unknown" placeholder for missing numbers.
func party(name, num string) string {
	if num == "" {
		num = "unknown"
	}
	if name == "" {
		return "<" + num + ">"
	}
	return name + " <" + num + ">"
}

func (c *Console) hangupChannel() {
	ch, ok := c.readLine("Enter Channel name to hang up: ")
	if !ok || ch == "" {
		return
	}
	c.report(c.actions.Hangup(ch), "Hangup sent.")
}

func (c *Console) kickFromBridge() {
	bid, ok := c.readLine("Enter BridgeId: ")
	if !ok || bid == "" {
		return
	}
	ch, ok := c.readLine("Enter Channel to kick: ")
	if !ok || ch == "" {
		return
	}
	c.report(c.actions.BridgeKick(bid, ch), "Kick sent.")
}

func (c *Console) destroyBridge() {
	bid, ok := c.readLine("Enter BridgeId to destroy: ")
	if !ok || bid == "" {
		return
	}
	c.report(c.actions.BridgeDestroy(bid), "Destroy sent.")
}

func (c *Console) hangupAll() {
	for _, ch := range c.store.Channels() {
		if err := c.actions.Hangup(ch.Name); err != nil {
			fmt.Fprintf(c.out, "hangup %s: %v\n", ch.Name, err)
		}
	}
	fmt.Fprintln(c.out, "Hangup ALL sent.")
}

func (c *Console) configureRules() {
	fmt.Fprintln(c.out, "\nCurrent inbound contexts:")
	for _, ctx := range c.rules.InboundContexts {
		fmt.Fprintf(c.out, "  - %s\n", ctx)
	}
	fmt.Fprintln(c.out, "Current outbound channel prefixes:")
	for _, p := range c.rules.OutboundPrefixes {
		fmt.Fprintf(c.out, "  - %s\n", p)
	}

	if in, ok := c.readLine("\nEnter comma-separated inbound contexts (blank to keep): "); ok {
		if list := splitList(in); list != nil {
			c.rules.InboundContexts = list
		}
	}
	if out, ok := c.readLine("Enter comma-separated outbound channel prefixes (blank to keep): "); ok {
		if list := splitList(out); list != nil {
			c.rules.OutboundPrefixes = list
		}
	}
	fmt.Fprintln(c.out, "Rules updated.")
}

// listenIn originates the supervisory monitor leg: the configured endpoint
// is dialed into the listen context, with the target channel carried both
// in the extension (prefix + peer) and as a channel variable.
func (c *Console) listenIn() {
	target, ok := c.readLine("Enter Channel to listen on: ")
	if !ok || target == "" {
		return
	}
	exten := c.cfg.SupervisorPrefix()
	if ch, found := c.store.Channel(target); found && ch.Peer() != "" {
		exten += ch.Peer()
	} else {
		exten += target
	}
	err := c.actions.Originate(ami.OriginateRequest{
		Endpoint:  c.cfg.SupervisorEndpoint(),
		Context:   c.cfg.SupervisorContext(),
		Exten:     exten,
		Timeout:   c.cfg.OriginateTimeout(),
		Variables: map[string]string{"SPY_CHANNEL": target},
	})
	c.report(err, "Listen leg originated.")
}

func (c *Console) report(err error, okMsg string) {
	if err != nil {
		fmt.Fprintf(c.out, "error: %v\n", err)
		return
	}
	fmt.Fprintln(c.out, okMsg)
}

func (c *Console) readLine(prompt string) (string, bool) {
	fmt.Fprint(c.out, prompt)
	if !c.in.Scan() {
		return "", false
	}
	return strings.TrimSpace(c.in.Text()), true
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	var out []string
	for _, tok := range strings.Split(v, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	return out
}
