package battery

import (
	"github.com/sirupsen/logrus"

	"batterycode-go/drivers/bq27541"
	"batterycode-go/errcode"
)

// Registers read by the miniclass.
const (
	regETA            = bq27541.CmdAtRateTimeToEmpty
	regTemperature    = bq27541.CmdTemperature
	regVoltage        = bq27541.CmdVoltage
	regFlags          = bq27541.CmdFlags
	regRate           = bq27541.CmdNominalAvailCap
	regPercentage     = bq27541.CmdRemainingCapacity
	regFullCharge     = bq27541.CmdFullChargeCapacity
	regCycleCount     = bq27541.CmdCycleCount
	regDesignCapacity = bq27541.CmdDesignCapacity
)

// etaFlags are the flag bits under which the gauge estimate is reported.
const etaFlags = byte(bq27541.FlagDSG | bq27541.FlagSOCF)

// read issues one register read. Callers hold the guard. Bus failures come
// back as TransferFailure with the cause attached.
func (m *Miniclass) read(op string, reg byte) (uint16, error) {
	v, err := m.sensor.ReadRegister(reg)
	if err != nil {
		m.log.WithFields(logrus.Fields{"op": op, "reg": reg}).WithError(err).Error("register read failed")
		return 0, &errcode.E{C: errcode.MapDriverErr(err), Op: op, Msg: "register read", Err: err}
	}
	return v, nil
}
