// Package store mirrors the latest battery information into Redis hashes
// and announces changed fields on a pub/sub channel of the same name.
package store

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"batterycode-go/bus"
	"batterycode-go/types"
)

// Backend persists one hash update. changed lists the fields whose value
// differs from the previous write; they are announced on the channel.
type Backend interface {
	Write(ctx context.Context, key string, fields map[string]string, changed []string) error
}

// RedisBackend writes through a TxPipeline so the hash and its
// notifications land together.
type RedisBackend struct {
	rdb redis.UniversalClient
}

func NewRedisBackend(rdb redis.UniversalClient) *RedisBackend { return &RedisBackend{rdb: rdb} }

func (r *RedisBackend) Write(ctx context.Context, key string, fields map[string]string, changed []string) error {
	pipe := r.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	for _, f := range changed {
		pipe.Publish(ctx, key, f)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// -----------------------------------------------------------------------------
// Service
// -----------------------------------------------------------------------------

type Service struct {
	conn    *bus.Connection
	sub     *bus.Subscription
	backend Backend
	log     logrus.FieldLogger

	// last written fields per battery id
	last map[string]map[string]string
}

// New subscribes to battery/+/<kind> immediately so nothing published
// between New and Run is lost.
func New(conn *bus.Connection, backend Backend, log logrus.FieldLogger) *Service {
	return &Service{
		conn:    conn,
		sub:     conn.Subscribe(bus.T("battery", "+", "+")),
		backend: backend,
		log:     log.WithField("service", "store"),
		last:    make(map[string]map[string]string),
	}
}

// Run consumes battery/+/<kind> until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	sub := s.sub
	defer s.conn.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			s.handle(ctx, msg)
		}
	}
}

func (s *Service) handle(ctx context.Context, msg *bus.Message) {
	id := msg.Topic[1]
	fields := Fields(msg.Payload)
	if len(fields) == 0 {
		return
	}

	prev := s.last[id]
	var changed []string
	for k, v := range fields {
		if old, ok := prev[k]; !ok || old != v {
			changed = append(changed, k)
		}
	}
	if len(changed) == 0 {
		return
	}
	sort.Strings(changed)

	key := Key(id)
	if err := s.backend.Write(ctx, key, fields, changed); err != nil {
		s.log.WithError(err).WithField("key", key).Error("failed to write battery hash")
		return
	}
	if prev == nil {
		prev = make(map[string]string, len(fields))
		s.last[id] = prev
	}
	for k, v := range fields {
		prev[k] = v
	}
}

// Key is the hash and channel name for battery id.
func Key(id string) string { return "battery:" + id }

// Fields flattens a published payload into hash fields. Unknown payloads
// yield nil.
func Fields(p any) map[string]string {
	u := func(v uint32) string { return strconv.FormatUint(uint64(v), 10) }
	switch v := p.(type) {
	case types.BatteryStatus:
		f := map[string]string{
			"present":       "true",
			"state":         powerStateString(v),
			"capacity":      u(v.Capacity),
			"voltage":       u(v.Voltage),
			"rate":          strconv.FormatInt(int64(v.Rate), 10),
			"temperature":   u(v.TempDeciK),
			"power-state":   u(v.PowerState),
			"time-to-empty": "unknown",
		}
		if v.ETA != nil {
			f["time-to-empty"] = u(*v.ETA)
		}
		return f
	case types.BatteryInfo:
		return map[string]string{
			"tag":                u(v.Tag),
			"technology":         v.Technology,
			"chemistry":          v.Chemistry,
			"designed-capacity":  u(v.Designed_mWh),
			"full-capacity":      u(v.FullCharged_mWh),
			"cycle-count":        u(v.CycleCount),
			"device-name":        v.DeviceName,
			"manufacturer":       v.ManufactureName,
			"serial-number":      v.SerialNumber,
			"unique-id":          v.UniqueID,
			"manufacturing-date": v.ManufactureDate,
		}
	case types.State:
		f := map[string]string{
			"link":        string(v.Level),
			"link-status": v.Status,
		}
		if v.Level == types.LinkDown {
			f["present"] = "false"
		}
		return f
	default:
		return nil
	}
}

func powerStateString(s types.BatteryStatus) string {
	switch {
	case s.Critical:
		return "critical"
	case s.Charging:
		return "charging"
	case s.Discharging:
		return "discharging"
	case s.Online:
		return "online"
	default:
		return fmt.Sprintf("0x%x", s.PowerState)
	}
}
