package config

import (
	"fmt"
	"strings"
	"time"

	ini "gopkg.in/ini.v1"

	"amiop/state"
)

// Config holds application configuration loaded from amiop.ini.
type Config struct {
	host          string
	port          int
	username      string
	secret        string
	actionTimeout int

	inboundContexts  []string
	outboundPrefixes []string

	supervisorEnabled  bool
	supervisorEndpoint string
	supervisorContext  string
	supervisorPrefix   string
	originateTimeout   int
}

// Load reads configuration from an ini file and validates required fields.
func Load(cfg *ini.File) (*Config, error) {
	c := &Config{}

	sec := cfg.Section("ami")
	c.host = sec.Key("host").MustString("127.0.0.1")
	c.port = sec.Key("port").MustInt(5038)
	c.username = sec.Key("username").String()
	c.secret = sec.Key("secret").String()
	c.actionTimeout = sec.Key("action_timeout").MustInt(10)

	sec = cfg.Section("rules")
	defaults := state.DefaultRules()
	c.inboundContexts = commaList(sec.Key("inbound_contexts").String(), defaults.InboundContexts)
	c.outboundPrefixes = commaList(sec.Key("outbound_prefixes").String(), defaults.OutboundPrefixes)

	sec = cfg.Section("supervisor")
	c.supervisorEnabled = sec.Key("enabled").MustBool(false)
	c.supervisorEndpoint = sec.Key("endpoint").String()
	c.supervisorContext = sec.Key("context").MustString("spy-context")
	c.supervisorPrefix = sec.Key("exten_prefix").String()
	c.originateTimeout = sec.Key("originate_timeout").MustInt(30)

	if c.username == "" || c.secret == "" {
		return nil, fmt.Errorf("ami username and secret must be set")
	}
	if c.supervisorEnabled && c.supervisorEndpoint == "" {
		return nil, fmt.Errorf("supervisor endpoint must be set when supervisor is enabled")
	}

	return c, nil
}

// Override applies non-empty command-line values over the loaded file.
func (c *Config) Override(host string, port int, username, secret string) {
	if host != "" {
		c.host = host
	}
	if port != 0 {
		c.port = port
	}
	if username != "" {
		c.username = username
	}
	if secret != "" {
		c.secret = secret
	}
}

func (c *Config) Host() string     { return c.host }
func (c *Config) Port() int        { return c.port }
func (c *Config) Username() string { return c.username }
func (c *Config) Secret() string   { return c.secret }

func (c *Config) ActionTimeout() time.Duration {
	return time.Duration(c.actionTimeout) * time.Second
}

// Rules returns the configured classification rule lists.
func (c *Config) Rules() state.Rules {
	return state.Rules{
		InboundContexts:  append([]string(nil), c.inboundContexts...),
		OutboundPrefixes: append([]string(nil), c.outboundPrefixes...),
	}
}

func (c *Config) SupervisorEnabled() bool    { return c.supervisorEnabled }
func (c *Config) SupervisorEndpoint() string { return c.supervisorEndpoint }
func (c *Config) SupervisorContext() string  { return c.supervisorContext }
func (c *Config) SupervisorPrefix() string   { return c.supervisorPrefix }

func (c *Config) OriginateTimeout() time.Duration {
	return time.Duration(c.originateTimeout) * time.Second
}

func commaList(v string, fallback []string) []string {
	if strings.TrimSpace(v) == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, tok := range strings.Split(v, ",") {
		if tok = strings.TrimSpace(tok); tok != "" {
			out = append(out, tok)
		}
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
