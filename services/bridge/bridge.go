// Package bridge mirrors the battery topics of the local bus onto an MQTT
// broker and feeds remote set-information requests back into the bus.
package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"batterycode-go/bus"
	"batterycode-go/errcode"
	"batterycode-go/internal/config"
	"batterycode-go/types"
)

// -----------------------------------------------------------------------------
// Public entry point
// -----------------------------------------------------------------------------

var (
	ConfigTopic = bus.T("config", "bridge")
	StateTopic  = bus.T("bridge", "state")
)

// Start runs the bridge until ctx is cancelled. It listens for configuration
// on config/bridge and (re)configures the link.
func Start(ctx context.Context, conn *bus.Connection, log logrus.FieldLogger) {
	s := &Service{
		conn: conn,
		log:  log.WithField("service", "bridge"),
	}
	s.run(ctx)
}

// -----------------------------------------------------------------------------
// Configuration
// -----------------------------------------------------------------------------

// Config is the payload expected on config/bridge.
type Config struct {
	Enabled     bool          `json:"enabled"`
	Broker      string        `json:"broker"`
	ClientID    string        `json:"client_id"`
	Username    string        `json:"username,omitempty"`
	Password    string        `json:"password,omitempty"`
	TopicPrefix string        `json:"topic_prefix"`
	QoS         byte          `json:"qos"`
	Timeout     time.Duration `json:"timeout"`
}

func FromConfig(c config.MQTTConfig) Config {
	return Config{
		Enabled:     c.Enabled,
		Broker:      c.Broker,
		ClientID:    c.ClientID,
		Username:    c.Username,
		Password:    c.Password,
		TopicPrefix: c.TopicPrefix,
		QoS:         c.QoS,
		Timeout:     c.Timeout,
	}
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 5 * time.Second
	}
	return c.Timeout
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn *bus.Connection
	log  logrus.FieldLogger

	mu     sync.Mutex
	curRun context.CancelFunc
	done   chan struct{}
}

func (s *Service) run(ctx context.Context) {
	cfgSub := s.conn.Subscribe(ConfigTopic)
	defer s.conn.Unsubscribe(cfgSub)

	s.publishState(types.LinkIdle, "awaiting_config", nil)

	for {
		select {
		case <-ctx.Done():
			s.stopCurrent()
			return
		case msg, ok := <-cfgSub.Channel():
			if !ok {
				s.publishState(types.LinkError, "config_subscription_closed", nil)
				s.stopCurrent()
				return
			}
			cfg, err := decodeConfig(msg.Payload)
			if err != nil {
				s.publishState(types.LinkError, "config_decode_failed", err)
				continue
			}
			s.reconfigure(ctx, cfg)
		}
	}
}

// stopCurrent cancels the running link and waits for it to exit.
func (s *Service) stopCurrent() {
	s.mu.Lock()
	cancel, done := s.curRun, s.done
	s.curRun, s.done = nil, nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}
}

func (s *Service) reconfigure(parent context.Context, cfg Config) {
	s.stopCurrent()
	if !cfg.Enabled {
		s.publishState(types.LinkIdle, "disabled", nil)
		return
	}

	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})
	s.mu.Lock()
	s.curRun, s.done = cancel, done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.runLink(ctx, cfg)
	}()
}

// -----------------------------------------------------------------------------
// Link supervision and I/O
// -----------------------------------------------------------------------------

func (s *Service) runLink(ctx context.Context, cfg Config) {
	if cfg.Broker == "" || cfg.TopicPrefix == "" {
		s.publishState(types.LinkError, "transport_init_failed", fmt.Errorf("broker and topic prefix are required"))
		return
	}

	backoff := backoffSeq(250*time.Millisecond, 5*time.Second)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		cl := Dial(cfg)
		if err := cl.Connect(ctx); err != nil {
			delay := backoff()
			s.publishState(types.LinkDegraded, "dial_failed_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}

		err := s.handleLink(ctx, cl, cfg)
		cl.Disconnect()
		if err != nil {
			delay := backoff()
			s.log.WithError(err).Warn("mqtt link lost")
			s.publishState(types.LinkDegraded, "link_lost_retrying", fmt.Errorf("%v (retry in %s)", err, delay))
			if !sleep(ctx, delay) {
				return
			}
			continue
		}
		return
	}
}

// handleLink owns the active link: local battery/# traffic goes up, remote
// set requests come down. It returns nil on ctx cancellation.
func (s *Service) handleLink(ctx context.Context, cl Client, cfg Config) error {
	up := s.conn.Subscribe(bus.T("battery", "#"))
	defer s.conn.Unsubscribe(up)

	var wg sync.WaitGroup
	defer wg.Wait()
	lctx, lcancel := context.WithCancel(ctx)
	defer lcancel()

	inbound := make(chan inboundSet, 8)
	setFilter := cfg.TopicPrefix + "/+/set/+"
	err := cl.Subscribe(setFilter, cfg.QoS, func(topic string, payload []byte) {
		in, ok := parseSetTopic(cfg.TopicPrefix, topic)
		if !ok {
			return
		}
		in.body = payload
		select {
		case inbound <- in:
		case <-lctx.Done():
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", setFilter, err)
	}
	s.publishState(types.LinkUp, "link_established", nil)
	s.log.WithField("broker", cfg.Broker).Info("mqtt link established")

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-cl.Lost():
			return err
		case msg, ok := <-up.Channel():
			if !ok {
				return nil
			}
			if isSetTopic(msg.Topic) {
				continue
			}
			if err := s.forward(cl, cfg, msg); err != nil {
				return err
			}
		case in := <-inbound:
			wg.Add(1)
			go func() {
				defer wg.Done()
				s.relaySet(lctx, cl, cfg, in)
			}()
		}
	}
}

func (s *Service) forward(cl Client, cfg Config, msg *bus.Message) error {
	b, err := json.Marshal(msg.Payload)
	if err != nil {
		s.log.WithError(err).WithField("topic", msg.Topic.String()).Warn("dropping unencodable payload")
		return nil
	}
	return cl.Publish(remoteTopic(cfg.TopicPrefix, msg.Topic), cfg.QoS, msg.Retained, b)
}

type inboundSet struct {
	id    string
	level string
	body  []byte
}

// setBody is the JSON accepted on <prefix>/<id>/set/<level>. An empty body
// sends a nil payload.
type setBody struct {
	Tag     uint32 `json:"tag,omitempty"`
	Payload []byte `json:"payload"`
}

func (s *Service) relaySet(ctx context.Context, cl Client, cfg Config, in inboundSet) {
	req := types.SetRequest{Level: in.level}
	if len(in.body) > 0 {
		var b setBody
		if err := json.Unmarshal(in.body, &b); err != nil {
			s.publishReply(cl, cfg, in, types.SetReply{Code: string(errcode.InvalidParameter), Error: err.Error()})
			return
		}
		req.Tag, req.Payload = b.Tag, b.Payload
	}

	rctx, cancel := context.WithTimeout(ctx, cfg.timeout())
	defer cancel()
	reply, err := s.conn.RequestWait(rctx, s.conn.NewMessage(bus.T("battery", in.id, "set"), req, false))
	if err != nil {
		s.log.WithError(err).WithField("battery", in.id).Warn("set request unanswered")
		return
	}
	if r, ok := reply.Payload.(types.SetReply); ok {
		s.publishReply(cl, cfg, in, r)
	}
}

func (s *Service) publishReply(cl Client, cfg Config, in inboundSet, r types.SetReply) {
	b, _ := json.Marshal(r)
	topic := strings.Join([]string{cfg.TopicPrefix, in.id, "set", in.level, "reply"}, "/")
	if err := cl.Publish(topic, cfg.QoS, false, b); err != nil {
		s.log.WithError(err).Warn("set reply publish failed")
	}
}

// -----------------------------------------------------------------------------
// Topic mapping
// -----------------------------------------------------------------------------

// remoteTopic maps battery/<id>/<kind> to <prefix>/<id>/<kind>.
func remoteTopic(prefix string, t bus.Topic) string {
	rest := t
	if len(rest) > 0 && rest[0] == "battery" {
		rest = rest[1:]
	}
	return prefix + "/" + rest.String()
}

func parseSetTopic(prefix, topic string) (inboundSet, bool) {
	rest, ok := strings.CutPrefix(topic, prefix+"/")
	if !ok {
		return inboundSet{}, false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 3 || parts[1] != "set" || parts[0] == "" || parts[2] == "" {
		return inboundSet{}, false
	}
	return inboundSet{id: parts[0], level: parts[2]}, true
}

func isSetTopic(t bus.Topic) bool {
	return len(t) == 3 && t[2] == "set"
}

// -----------------------------------------------------------------------------
// Utilities
// -----------------------------------------------------------------------------

func decodeConfig(p any) (Config, error) {
	var cfg Config
	switch v := p.(type) {
	case Config:
		return v, nil
	case config.MQTTConfig:
		return FromConfig(v), nil
	case []byte:
		if err := json.Unmarshal(v, &cfg); err != nil {
			return cfg, err
		}
	case string:
		if err := json.Unmarshal([]byte(v), &cfg); err != nil {
			return cfg, err
		}
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return cfg, err
		}
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config payload type: %T", p)
	}
	return cfg, nil
}

func (s *Service) publishState(level types.Link, status string, err error) {
	s.conn.Publish(s.conn.NewMessage(StateTopic, types.NewState(level, status, err), true))
}

func backoffSeq(min, max time.Duration) func() time.Duration {
	if min <= 0 {
		min = 100 * time.Millisecond
	}
	if max < min {
		max = min
	}
	var cur = min
	return func() time.Duration {
		d := cur
		cur *= 2
		if cur > max {
			cur = max
		}
		return d
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
