package slcan

import (
	"github.com/pkg/errors"
	"go.bug.st/serial"
	"go.bug.st/serial/enumerator"
)

// SerialPort describes a serial port on the host.
type SerialPort struct {
	PortName  string
	Product   string
	IsUSB     bool
	VendorID  string
	ProductID string
}

// AvailablePorts returns all available serial ports on the current host.
func AvailablePorts() ([]SerialPort, error) {
	list, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, errors.Wrap(err, "listing serial ports")
	}

	ports := make([]SerialPort, len(list))
	for i, p := range list {
		ports[i] = SerialPort{
			PortName:  p.Name,
			Product:   p.Product,
			IsUSB:     p.IsUSB,
			VendorID:  p.VID,
			ProductID: p.PID,
		}
	}

	return ports, nil
}

// OpenSerialPort opens and configures the named port for an SLCAN adapter.
// A baud rate of 0 selects ConnectionBaudRate.
func OpenSerialPort(name string, baud int) (serial.Port, error) {
	if baud <= 0 {
		baud = ConnectionBaudRate
	}

	sp, err := serial.Open(name, &serial.Mode{
		BaudRate: baud,
		DataBits: ConnectionDataBits,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "opening serial port '%s'", name)
	}

	if err = sp.SetReadTimeout(ConnectionReadTimeout); err != nil {
		sp.Close()
		return nil, errors.Wrap(err, "setting serial port read timeout")
	}
	if err = sp.ResetInputBuffer(); err != nil {
		sp.Close()
		return nil, errors.Wrap(err, "resetting input buffer")
	}

	return sp, nil
}
