// Package monitor is the battery class host role: it tracks the battery
// tag, publishes static information when the tag changes, polls live
// status and relays set-information requests from the bus.
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"batterycode-go/battery"
	"batterycode-go/bus"
	"batterycode-go/errcode"
	"batterycode-go/types"
)

// Battery is the miniclass surface the monitor drives. *battery.Miniclass
// satisfies it.
type Battery interface {
	QueryTag() (uint32, error)
	Information(tag uint32, level battery.InformationLevel, atRate int32) (battery.Result, error)
	QueryStatus(tag uint32) (battery.Status, error)
	SetInformationRaw(tag uint32, level battery.SetLevel, payload []byte) error
}

type Config struct {
	ID           string
	PollInterval time.Duration
}

// Topics for battery id.
func InfoTopic(id string) bus.Topic   { return bus.T("battery", id, "info") }
func StatusTopic(id string) bus.Topic { return bus.T("battery", id, "status") }
func StateTopic(id string) bus.Topic  { return bus.T("battery", id, "state") }
func SetTopic(id string) bus.Topic    { return bus.T("battery", id, "set") }

type Service struct {
	conn *bus.Connection
	bat  Battery
	cfg  Config
	log  logrus.FieldLogger

	tag       uint32
	lastState types.State
}

func New(conn *bus.Connection, bat Battery, cfg Config, log logrus.FieldLogger) *Service {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Service{
		conn: conn,
		bat:  bat,
		cfg:  cfg,
		log:  log.WithField("battery", cfg.ID),
		tag:  battery.TagInvalid,
	}
}

// Run polls until ctx is cancelled.
func (s *Service) Run(ctx context.Context) {
	setSub := s.conn.Subscribe(SetTopic(s.cfg.ID))
	defer s.conn.Unsubscribe(setSub)

	tick := time.NewTicker(s.cfg.PollInterval)
	defer tick.Stop()

	s.poll()
	for {
		select {
		case <-ctx.Done():
			s.log.Info("monitor stopping")
			return
		case <-tick.C:
			s.poll()
		case msg, ok := <-setSub.Channel():
			if !ok {
				return
			}
			s.handleSet(msg)
		}
	}
}

// -----------------------------------------------------------------------------
// Polling
// -----------------------------------------------------------------------------

func (s *Service) poll() {
	if err := s.pollOnce(); errors.Is(err, errcode.NoSuchDevice) {
		// tag moved under us: pick up the new one straight away
		s.tag = battery.TagInvalid
		s.publishState(types.LinkDegraded, "tag_changed", nil)
		_ = s.pollOnce()
	}
}

func (s *Service) pollOnce() error {
	if s.tag == battery.TagInvalid {
		tag, err := s.bat.QueryTag()
		if err != nil {
			s.publishState(types.LinkDown, "no_battery", nil)
			return nil
		}
		s.log.WithField("tag", tag).Info("battery tag acquired")
		s.tag = tag
		if err := s.refreshInfo(); err != nil {
			s.tag = battery.TagInvalid
			return s.failed("info_failed", err)
		}
	}

	st, err := s.readStatus()
	if err != nil {
		return s.failed("poll_failed", err)
	}
	s.conn.Publish(s.conn.NewMessage(StatusTopic(s.cfg.ID), st, false))
	s.publishState(types.LinkUp, "polling", nil)
	return nil
}

func (s *Service) failed(status string, err error) error {
	if errors.Is(err, errcode.NoSuchDevice) {
		return err
	}
	s.log.WithError(err).Warn("battery poll degraded")
	s.publishState(types.LinkDegraded, status, err)
	return err
}

func (s *Service) readStatus() (types.BatteryStatus, error) {
	st, err := s.bat.QueryStatus(s.tag)
	if err != nil {
		return types.BatteryStatus{}, err
	}
	eta, err := s.bat.Information(s.tag, battery.LevelEstimatedTime, 0)
	if err != nil {
		return types.BatteryStatus{}, err
	}
	temp, err := s.bat.Information(s.tag, battery.LevelTemperature, 0)
	if err != nil {
		return types.BatteryStatus{}, err
	}

	out := types.BatteryStatus{
		Tag:         s.tag,
		PowerState:  uint32(st.PowerState),
		Online:      st.PowerState.Has(battery.PowerOnLine),
		Charging:    st.PowerState.Has(battery.PowerCharging),
		Discharging: st.PowerState.Has(battery.PowerDischarging),
		Critical:    st.PowerState.Has(battery.PowerCritical),
		Capacity:    st.Capacity,
		Voltage:     st.Voltage,
		Rate:        st.Rate,
		TS:          types.NowMS(),
	}
	if e, ok := eta.(battery.EstimatedTime); ok && e.Known {
		secs := e.Seconds
		out.ETA = &secs
	}
	if t, ok := temp.(battery.Temperature); ok {
		out.TempDeciK = t.DeciKelvin
	}
	return out, nil
}

func (s *Service) refreshInfo() error {
	info := types.BatteryInfo{Tag: s.tag, TS: types.NowMS()}

	r, err := s.bat.Information(s.tag, battery.LevelStaticInformation, 0)
	if err != nil {
		return err
	}
	if si, ok := r.(battery.StaticInfo); ok {
		info.Capabilities = uint32(si.Capabilities)
		info.CapFlags = si.Capabilities.Names()
		info.Technology = "primary"
		if si.Technology == battery.TechnologyRechargeable {
			info.Technology = "rechargeable"
		}
		info.Chemistry = string(si.Chemistry[:])
		info.Designed_mWh = si.DesignedCapacity
		info.FullCharged_mWh = si.FullChargedCapacity
		info.Alert1_mWh = si.DefaultAlert1
		info.Alert2_mWh = si.DefaultAlert2
		info.CriticalBias = si.CriticalBias
		info.CycleCount = si.CycleCount
	}

	strs := []struct {
		level battery.InformationLevel
		dst   *string
	}{
		{battery.LevelDeviceName, &info.DeviceName},
		{battery.LevelManufactureName, &info.ManufactureName},
		{battery.LevelSerialNumber, &info.SerialNumber},
		{battery.LevelUniqueID, &info.UniqueID},
	}
	for _, sd := range strs {
		r, err := s.bat.Information(s.tag, sd.level, 0)
		if err != nil {
			return err
		}
		if is, ok := r.(battery.IdentityString); ok {
			*sd.dst = is.Value
		}
	}

	r, err = s.bat.Information(s.tag, battery.LevelManufactureDate, 0)
	if err != nil {
		return err
	}
	if d, ok := r.(battery.ManufactureDate); ok {
		info.ManufactureDate = fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}

	r, err = s.bat.Information(s.tag, battery.LevelGranularityInformation, 0)
	if err != nil {
		return err
	}
	if g, ok := r.(battery.ReportingScale); ok {
		info.Granularity_mWh = g.Granularity
		info.GranularityUpTo_mWh = g.Capacity
	}

	s.conn.Publish(s.conn.NewMessage(InfoTopic(s.cfg.ID), info, true))
	return nil
}

func (s *Service) publishState(level types.Link, status string, err error) {
	st := types.NewState(level, status, err)
	if st.Level == s.lastState.Level && st.Status == s.lastState.Status && st.Error == s.lastState.Error {
		return
	}
	s.lastState = st
	s.conn.Publish(s.conn.NewMessage(StateTopic(s.cfg.ID), st, true))
}

// -----------------------------------------------------------------------------
// Set information
// -----------------------------------------------------------------------------

func (s *Service) handleSet(msg *bus.Message) {
	req, err := decodeSetRequest(msg.Payload)
	if err != nil {
		s.reply(msg, errcode.New(errcode.InvalidParameter, "set_request", err.Error()))
		return
	}
	level, ok := battery.ParseSetLevel(req.Level)
	if !ok {
		s.reply(msg, errcode.New(errcode.InvalidParameter, "set_request", "unknown level "+strconv.Quote(req.Level)))
		return
	}
	tag := req.Tag
	if tag == battery.TagInvalid {
		tag = s.tag
	}
	err = s.bat.SetInformationRaw(tag, level, req.Payload)
	if err != nil {
		s.log.WithError(err).WithField("level", req.Level).Warn("set information rejected")
	}
	s.reply(msg, err)
}

func (s *Service) reply(msg *bus.Message, err error) {
	r := types.SetReply{Code: string(errcode.Of(err))}
	if err != nil {
		r.Error = err.Error()
	}
	s.conn.Reply(msg, r, false)
}

func decodeSetRequest(p any) (types.SetRequest, error) {
	var req types.SetRequest
	switch v := p.(type) {
	case types.SetRequest:
		return v, nil
	case *types.SetRequest:
		if v == nil {
			return req, errors.New("nil set request")
		}
		return *v, nil
	case []byte:
		err := json.Unmarshal(v, &req)
		return req, err
	case string:
		err := json.Unmarshal([]byte(v), &req)
		return req, err
	default:
		return req, fmt.Errorf("unsupported set payload type: %T", p)
	}
}
