package vedirect

import "fmt"

// Register is an addressable parameter on the inverter's HEX protocol.
type Register uint16

const (
	RegisterDeviceMode           Register = 0x0200
	RegisterAlarmLowVoltageSet   Register = 0x0320
	RegisterAlarmLowVoltageClear Register = 0x0321
	RegisterShutdownLowVoltage   Register = 0x2210
)

// Values accepted by RegisterDeviceMode.
const (
	DeviceModeOn  uint64 = 2
	DeviceModeOff uint64 = 4
)

type registerSpec struct {
	name  string
	scale float64 // wire counts per engineering unit
	width int     // value width in bytes
}

// registers is the fixed table of known device parameters. Addresses, scale
// factors and widths are firmware constants.
var registers = map[Register]registerSpec{
	RegisterDeviceMode:           {name: "device_mode", scale: 1, width: 1},
	RegisterAlarmLowVoltageSet:   {name: "alarm_low_voltage_set", scale: 100, width: 2},
	RegisterAlarmLowVoltageClear: {name: "alarm_low_voltage_clear", scale: 100, width: 2},
	RegisterShutdownLowVoltage:   {name: "shutdown_low_voltage", scale: 100, width: 2},
}

func (r Register) String() string {
	if spec, ok := registers[r]; ok {
		return spec.name
	}
	return fmt.Sprintf("register(0x%04X)", uint16(r))
}

// Scale returns the number of wire counts per engineering unit, 1 for
// registers outside the fixed table.
func (r Register) Scale() float64 {
	if spec, ok := registers[r]; ok {
		return spec.scale
	}
	return 1
}

// Width returns the value width in bytes the device uses for this register,
// 0 for registers outside the fixed table.
func (r Register) Width() int {
	if spec, ok := registers[r]; ok {
		return spec.width
	}
	return 0
}
