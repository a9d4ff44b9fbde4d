package slcan

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Frame is a CAN frame decoded from (or destined for) the Lawicell ASCII
// wire format. The format is:
//
//	Marker ('t' std data, 'T' ext data, 'r' std remote, 'R' ext remote)
//	ID (3 hex digits standard, 8 hex digits extended)
//	DLC (1 hex digit)
//	Data (DLC*2 hex digits, absent for remote frames)
type Frame struct {
	ID       string
	Data     []byte
	Extended bool
	Remote   bool
	DLC      int
}

// Constant values used to describe pieces of a frame line.
const (
	MarkerStandardData   byte = 't'
	MarkerExtendedData   byte = 'T'
	MarkerStandardRemote byte = 'r'
	MarkerExtendedRemote byte = 'R'

	StandardIDLength int = 3
	ExtendedIDLength int = 8

	// Delimiter terminates every line on the wire in both directions.
	Delimiter byte = '\r'

	// EmptyData is how a frame without data bytes is displayed.
	EmptyData = "00"
)

var (
	// ErrUnrecognizedLine is returned when a line doesn't start with a frame
	// marker. Such lines are console text and never enter the CAN pipeline.
	ErrUnrecognizedLine = errors.New("unrecognized line")

	// ErrMalformedFrame is returned when a line starts with a frame marker but
	// is too short or carries an invalid DLC or data digit.
	ErrMalformedFrame = errors.New("malformed frame")
)

// IsFrameMarker reports whether b starts a frame line.
func IsFrameMarker(b byte) bool {
	switch b {
	case MarkerStandardData, MarkerExtendedData, MarkerStandardRemote, MarkerExtendedRemote:
		return true
	}
	return false
}

// ParseLine decodes a single trimmed line. Data bytes are taken from whatever
// digits follow the DLC, up to DLC*2 of them; a line that carries fewer digits
// than its DLC announces still decodes, with Data shorter than DLC.
func ParseLine(line string) (Frame, error) {
	if line == "" || !IsFrameMarker(line[0]) {
		return Frame{}, ErrUnrecognizedLine
	}

	marker := line[0]
	f := Frame{
		Extended: marker == MarkerExtendedData || marker == MarkerExtendedRemote,
		Remote:   marker == MarkerStandardRemote || marker == MarkerExtendedRemote,
	}
	idLen := StandardIDLength
	if f.Extended {
		idLen = ExtendedIDLength
	}
	if len(line) < 1+idLen+1 {
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "line %q too short for a %d digit id", line, idLen)
	}

	f.ID = strings.ToUpper(line[1 : 1+idLen])
	dlc, err := strconv.ParseUint(line[1+idLen:2+idLen], 16, 8)
	if err != nil {
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "invalid dlc in %q", line)
	}
	f.DLC = int(dlc)

	if f.Remote {
		f.Data = []byte{}
		return f, nil
	}

	raw := line[2+idLen:]
	if len(raw) > f.DLC*2 {
		raw = raw[:f.DLC*2]
	}
	raw = raw[:len(raw)-len(raw)%2] // a dangling nibble can't form a byte
	f.Data, err = hex.DecodeString(raw)
	if err != nil {
		return Frame{}, errors.Wrapf(ErrMalformedFrame, "invalid data in %q", line)
	}
	return f, nil
}

// FormattedData returns the data bytes as space-separated uppercase hex pairs.
// A frame without data formats as an empty string.
func (f Frame) FormattedData() string {
	return FormatData(f.Data)
}

// DisplayData is FormattedData with EmptyData substituted for no data.
func (f Frame) DisplayData() string {
	if len(f.Data) == 0 {
		return EmptyData
	}
	return f.FormattedData()
}

// String returns the wire line for the frame without the delimiter.
func (f Frame) String() string {
	var b strings.Builder
	switch {
	case f.Remote && f.Extended:
		b.WriteByte(MarkerExtendedRemote)
	case f.Remote:
		b.WriteByte(MarkerStandardRemote)
	case f.Extended:
		b.WriteByte(MarkerExtendedData)
	default:
		b.WriteByte(MarkerStandardData)
	}
	b.WriteString(f.ID)
	b.WriteString(strings.ToUpper(strconv.FormatInt(int64(f.DLC), 16)))
	if !f.Remote {
		b.WriteString(strings.ToUpper(hex.EncodeToString(f.Data)))
	}
	return b.String()
}

// FormatData renders bytes as space-separated uppercase hex pairs.
func FormatData(data []byte) string {
	parts := make([]string, len(data))
	for i, b := range data {
		parts[i] = fmt.Sprintf("%02X", b)
	}
	return strings.Join(parts, " ")
}

// EncodeFrame builds a data frame line (no delimiter) for the given id and
// hex data. Ids of up to 3 digits are sent as standard frames padded to 3
// digits, longer ids as extended frames padded to 8. Whitespace in dataHex is
// ignored. The DLC is len(data)/2 and is not range checked.
func EncodeFrame(id, dataHex string) string {
	id = strings.ToUpper(StripSpace(id))
	data := strings.ToUpper(StripSpace(dataHex))

	marker, width := MarkerStandardData, StandardIDLength
	if len(id) > StandardIDLength {
		marker, width = MarkerExtendedData, ExtendedIDLength
	}
	if len(id) < width {
		id = strings.Repeat("0", width-len(id)) + id
	}

	return string(marker) + id + strings.ToUpper(strconv.FormatInt(int64(len(data)/2), 16)) + data
}

// StripSpace removes every whitespace character from s.
func StripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

// IsHex reports whether s is non-empty and made only of hex digits.
func IsHex(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
