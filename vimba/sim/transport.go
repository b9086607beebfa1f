package sim

import (
	"github.com/pkg/errors"
	"github.com/snksoft/crc"

	"github.com/lightpath/vimgrab/vimba"
)

// stamp frames a payload the way the simulated transport does: the
// payload followed by a big-endian CRC-32 trailer.
func stamp(payload []byte) []byte {
	sum := uint32(crc.CalculateCRC(crc.CRC32, payload))
	out := make([]byte, 0, len(payload)+4)
	out = append(out, payload...)
	out = append(out, byte(sum>>24), byte(sum>>16), byte(sum>>8), byte(sum))
	return out
}

// receive verifies the trailer and strips it, returning the payload.
func receive(wire []byte) ([]byte, error) {
	if len(wire) < 4 {
		return nil, errors.Wrap(vimba.ErrTransfer, "block shorter than its trailer")
	}
	payload := wire[:len(wire)-4]
	t := wire[len(wire)-4:]
	want := uint32(t[0])<<24 | uint32(t[1])<<16 | uint32(t[2])<<8 | uint32(t[3])
	got := uint32(crc.CalculateCRC(crc.CRC32, payload))
	if got != want {
		return nil, errors.Wrapf(vimba.ErrTransfer, "crc mismatch: computed %08x, trailer %08x", got, want)
	}
	return payload, nil
}
