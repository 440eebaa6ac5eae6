package escalation

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Channel types accepted in the broadcasters file.
const (
	ChannelSMS     = "sms"
	ChannelWebhook = "webhook"
	ChannelSlack   = "slack"
	ChannelRedis   = "redis"
	ChannelNATS    = "nats"
)

// FileConfig is the broadcasters file.
//
//	channels:
//	  - name: oncall-sms
//	    type: sms
//	    account_sid: ${TWILIO_ACCOUNT_SID}
//	    auth_token: ${TWILIO_AUTH_TOKEN}
//	    from: "+14370000000"
//	    to: "+16470000000"
//	  - name: ubi
//	    type: webhook
//	    url: https://portal.theubi.com/webapi/behaviour?access_token=${UBI_TOKEN}
type FileConfig struct {
	Channels []ChannelConfig `yaml:"channels"`
}

// ChannelConfig describes one channel. Only the fields of its type are used.
type ChannelConfig struct {
	Name string `yaml:"name"`
	Type string `yaml:"type"`

	// sms
	AccountSID string `yaml:"account_sid"`
	AuthToken  string `yaml:"auth_token"`
	From       string `yaml:"from"`
	To         string `yaml:"to"`

	// webhook
	URL    string `yaml:"url"`
	Method string `yaml:"method"`
	Param  string `yaml:"param"`

	// slack
	Token   string `yaml:"token"`
	Channel string `yaml:"channel"`

	// sms and slack
	APIURL string `yaml:"api_url"`

	// redis
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Stream   string `yaml:"stream"`
	MaxLen   int64  `yaml:"max_len"`

	// nats (url is shared with webhook)
	Subject string `yaml:"subject"`
}

// LoadFile reads a broadcasters file, expanding ${VAR} references from the
// environment before parsing.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read broadcasters file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses broadcasters YAML.
func ParseConfig(data []byte) (*FileConfig, error) {
	var cfg FileConfig
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse broadcasters file: %w", err)
	}
	return &cfg, nil
}

// Build creates the channels of cfg. The returned cleanup closes the network
// clients it opened. When Build fails it has already closed them.
func Build(cfg *FileConfig) ([]Broadcaster, func(), error) {
	return buildAll(cfg, buildChannel)
}

type channelBuilder func(cc ChannelConfig) (Broadcaster, func() error, error)

func buildAll(cfg *FileConfig, build channelBuilder) ([]Broadcaster, func(), error) {
	var (
		channels []Broadcaster
		closers  []func() error
	)
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn().Err(err).Msg("failed to close broadcaster client")
			}
		}
	}
	fail := func(err error) ([]Broadcaster, func(), error) {
		cleanup()
		return nil, func() {}, err
	}
	if cfg == nil {
		return nil, cleanup, nil
	}

	seen := make(map[string]bool)
	for i, cc := range cfg.Channels {
		if cc.Name == "" {
			cc.Name = fmt.Sprintf("%s-%d", cc.Type, i)
		}
		if seen[cc.Name] {
			return fail(fmt.Errorf("duplicate channel name %q", cc.Name))
		}
		seen[cc.Name] = true

		ch, closer, err := build(cc)
		if err != nil {
			return fail(fmt.Errorf("channel %q: %w", cc.Name, err))
		}
		if closer != nil {
			closers = append(closers, closer)
		}
		channels = append(channels, ch)
		log.Info().Str("channel", cc.Name).Str("type", cc.Type).Msg("escalation channel configured")
	}
	return channels, cleanup, nil
}

func buildChannel(cc ChannelConfig) (Broadcaster, func() error, error) {
	switch cc.Type {
	case ChannelSMS:
		if cc.AccountSID == "" || cc.AuthToken == "" || cc.From == "" || cc.To == "" {
			return nil, nil, errors.New("sms needs account_sid, auth_token, from and to")
		}
		return NewSMS(cc.Name, cc.AccountSID, cc.AuthToken, cc.From, cc.To, cc.APIURL), nil, nil

	case ChannelWebhook:
		if cc.URL == "" {
			return nil, nil, errors.New("webhook needs url")
		}
		return NewWebhook(cc.Name, cc.URL, cc.Method, cc.Param), nil, nil

	case ChannelSlack:
		if cc.Token == "" || cc.Channel == "" {
			return nil, nil, errors.New("slack needs token and channel")
		}
		return NewSlack(cc.Name, cc.Token, cc.Channel, cc.APIURL), nil, nil

	case ChannelRedis:
		if cc.Addr == "" || cc.Stream == "" {
			return nil, nil, errors.New("redis needs addr and stream")
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cc.Addr,
			Password: cc.Password,
			DB:       cc.DB,
		})
		return NewRedisStream(cc.Name, client, cc.Stream, cc.MaxLen), client.Close, nil

	case ChannelNATS:
		if cc.URL == "" || cc.Subject == "" {
			return nil, nil, errors.New("nats needs url and subject")
		}
		name := cc.Name
		nc, err := nats.Connect(cc.URL,
			nats.Name("livechat-"+name),
			nats.RetryOnFailedConnect(true),
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				log.Warn().Err(err).Str("channel", name).Msg("nats disconnected")
			}),
			nats.ReconnectHandler(func(_ *nats.Conn) {
				log.Info().Str("channel", name).Msg("nats reconnected")
			}),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("nats connect: %w", err)
		}
		return NewNATS(cc.Name, nc, cc.Subject), func() error { nc.Close(); return nil }, nil

	default:
		return nil, nil, fmt.Errorf("unknown channel type %q", cc.Type)
	}
}
