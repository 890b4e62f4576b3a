package bridge

import (
	"context"
	"errors"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// Client is the broker connection the bridge drives.
type Client interface {
	Connect(ctx context.Context) error
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(filter string, qos byte, handler func(topic string, payload []byte)) error
	// Lost yields once when an established connection drops.
	Lost() <-chan error
	Disconnect()
}

// Dial builds a client for cfg. Tests replace it.
var Dial = func(cfg Config) Client { return newPahoClient(cfg) }

var errTimeout = errors.New("mqtt: operation timed out")

type pahoClient struct {
	c       paho.Client
	lost    chan error
	timeout time.Duration
	status  string
}

func newPahoClient(cfg Config) *pahoClient {
	p := &pahoClient{
		lost:    make(chan error, 1),
		timeout: cfg.timeout(),
		status:  cfg.TopicPrefix + "/bridge",
	}

	opts := paho.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	// reconnects are supervised by the bridge's backoff loop
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(p.timeout)
	opts.SetWill(p.status, "offline", 1, true)
	opts.SetOnConnectHandler(func(c paho.Client) {
		c.Publish(p.status, 1, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		select {
		case p.lost <- err:
		default:
		}
	})
	p.c = paho.NewClient(opts)
	return p
}

func (p *pahoClient) wait(ctx context.Context, tok paho.Token) error {
	select {
	case <-tok.Done():
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(p.timeout):
		return errTimeout
	}
}

func (p *pahoClient) Connect(ctx context.Context) error {
	return p.wait(ctx, p.c.Connect())
}

func (p *pahoClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	return p.wait(context.Background(), p.c.Publish(topic, qos, retained, payload))
}

func (p *pahoClient) Subscribe(filter string, qos byte, handler func(string, []byte)) error {
	tok := p.c.Subscribe(filter, qos, func(_ paho.Client, m paho.Message) {
		handler(m.Topic(), m.Payload())
	})
	return p.wait(context.Background(), tok)
}

func (p *pahoClient) Lost() <-chan error { return p.lost }

func (p *pahoClient) Disconnect() {
	if p.c.IsConnectionOpen() {
		p.c.Publish(p.status, 1, true, "offline").WaitTimeout(250 * time.Millisecond)
	}
	p.c.Disconnect(250)
}
