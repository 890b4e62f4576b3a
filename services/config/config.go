package config

import (
	"context"
	"errors"

	appcfg "batterycode-go/internal/config"

	"batterycode-go/bus"
)

const (
	serviceName  = "config"
	configPrefix = "config"
)

// Section topics. Consumers subscribe to config/<section>.
const (
	SectionSensor  = "sensor"
	SectionMonitor = "monitor"
	SectionBridge  = "bridge"
	SectionRedis   = "redis"
	SectionHTTP    = "http"
)

func Topic(section string) bus.Topic { return bus.T(configPrefix, section) }

// -----------------------------------------------------------------------------
// Config Service
// -----------------------------------------------------------------------------

type ConfigService struct {
	Name string
	cfg  *appcfg.Config
}

func NewConfigService(cfg *appcfg.Config) *ConfigService {
	return &ConfigService{Name: serviceName, cfg: cfg}
}

// sections splits the loaded configuration into per-service payloads.
func (s *ConfigService) sections() map[string]any {
	c := s.cfg
	return map[string]any{
		SectionSensor:  c.Sensor,
		SectionMonitor: c.Monitor,
		SectionBridge:  c.MQTT,
		SectionRedis:   c.Redis,
		SectionHTTP:    c.HTTP,
	}
}

// Publish sends every section as a retained message.
func (s *ConfigService) Publish(conn *bus.Connection) error {
	if s.cfg == nil {
		return errors.New("no configuration loaded")
	}
	for k, v := range s.sections() {
		conn.Publish(&bus.Message{
			Topic:    Topic(k),
			Payload:  v,
			Retained: true,
		})
	}
	return nil
}

// Replace swaps the configuration and republishes it, so running services
// reconfigure from the retained values.
func (s *ConfigService) Replace(conn *bus.Connection, cfg *appcfg.Config) error {
	s.cfg = cfg
	return s.Publish(conn)
}

// Start publishes the configuration once the bus is ready.
func (s *ConfigService) Start(ctx context.Context, conn *bus.Connection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Publish(conn)
}
