package slcan

import (
	"context"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// CommandType classifies a line sent to or echoed by the adapter.
type CommandType int

const (
	CommandUnknown CommandType = iota
	CommandOpen
	CommandClose
	CommandBitrate
	CommandVersion
	CommandStatus
	CommandFrame
)

// Command is a classified adapter line.
type Command struct {
	Type CommandType
	Raw  string
}

// Adapter control lines.
const (
	CommandLineOpen    = "O"
	CommandLineClose   = "C"
	CommandLineVersion = "V"
	CommandLineStatus  = "F"
)

// bitrates maps a nominal bus speed in kbit/s to its setup command.
var bitrates = map[int]string{
	10:   "S0",
	20:   "S1",
	50:   "S2",
	100:  "S3",
	125:  "S4",
	250:  "S5",
	500:  "S6",
	750:  "S7",
	1000: "S8",
}

// ErrUnsupportedBitrate is returned for a bus speed without a setup command.
var ErrUnsupportedBitrate = errors.New("unsupported bitrate")

// BitrateCommand returns the setup command for the bus speed in kbit/s.
func BitrateCommand(kbit int) (string, error) {
	cmd, ok := bitrates[kbit]
	if !ok {
		return "", errors.Wrapf(ErrUnsupportedBitrate, "%d kbit/s, want one of %v", kbit, SupportedBitrates())
	}
	return cmd, nil
}

// SupportedBitrates returns the known bus speeds in ascending order.
func SupportedBitrates() []int {
	rates := make([]int, 0, len(bitrates))
	for r := range bitrates {
		rates = append(rates, r)
	}
	sort.Ints(rates)
	return rates
}

// ParseCommand classifies raw. The line is kept as is in Raw.
func ParseCommand(raw string) Command {
	if raw == "" {
		return Command{Type: CommandUnknown, Raw: raw}
	}

	switch raw[0] {
	case 'O':
		return Command{Type: CommandOpen, Raw: raw}
	case 'C':
		return Command{Type: CommandClose, Raw: raw}
	case 'S':
		return Command{Type: CommandBitrate, Raw: raw}
	case 'V', 'v', 'N':
		return Command{Type: CommandVersion, Raw: raw}
	case 'F':
		return Command{Type: CommandStatus, Raw: raw}
	}
	if IsFrameMarker(raw[0]) {
		return Command{Type: CommandFrame, Raw: raw}
	}
	return Command{Type: CommandUnknown, Raw: raw}
}

func (t CommandType) String() string {
	switch t {
	case CommandOpen:
		return "open"
	case CommandClose:
		return "close"
	case CommandBitrate:
		return "bitrate"
	case CommandVersion:
		return "version"
	case CommandStatus:
		return "status"
	case CommandFrame:
		return "frame"
	}
	return "unknown"
}

// BusCommandDelay is the pause between the commands that reopen the bus.
const BusCommandDelay time.Duration = time.Millisecond * 150

// SendFunc writes a single line to the adapter. The delimiter is appended by
// the implementation.
type SendFunc func(ctx context.Context, line string) error

// OpenBus closes the bus, sets the bitrate, and opens it again, pausing
// BusCommandDelay between the commands.
func OpenBus(ctx context.Context, send SendFunc, kbit int) error {
	rate, err := BitrateCommand(kbit)
	if err != nil {
		return err
	}

	for i, cmd := range []string{CommandLineClose, rate, CommandLineOpen} {
		if i > 0 {
			if err := sleep(ctx, BusCommandDelay); err != nil {
				return err
			}
		}
		if err := send(ctx, cmd); err != nil {
			return errors.Wrapf(err, "sending %q", cmd)
		}
	}
	return nil
}

// CloseBus takes the adapter off the bus.
func CloseBus(ctx context.Context, send SendFunc) error {
	return errors.Wrap(send(ctx, CommandLineClose), "closing bus")
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
