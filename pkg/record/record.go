// Package record owns the binary wire format shared with the external
// scanner: the fixed 64-byte security-test record, the companion name
// record, the discovery sections, and the generated symbol names.
package record

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/smith-xyz/golang-sectest-generator/pkg/models"
)

// Magic marks the first 8 bytes of every valid record. It is emitted
// little-endian, so a scanner sees the byte sequence
// BE BA FE CA EF BE AD DE at the start of each record.
const Magic uint64 = 0xDEADBEEFCAFEBABE

// Size is the fixed record size. Every record occupies exactly this many
// bytes regardless of configuration or name length, so a scanner can stride
// through the records section at constant intervals.
const Size = 64

// MaxNameLength is the capacity of the single-byte name_length field.
const MaxNameLength = 255

// Byte offsets within a record.
const (
	offMagic           = 0
	offNameLength      = 8
	offSQLInjection    = 9
	offRaceCondition   = 10
	offTimingAttack    = 11
	offBufferOverflow  = 12
	offThreatLevel     = 13
	offNameOffset      = 14 // uint16, little-endian
	offIntegerOverflow = 16
	// 17..63 reserved, zero-filled
)

// Record is the decoded form of one 64-byte entry. Encode/Decode round-trip
// exactly; Decode also mirrors what the scanner reads at analysis time.
type Record struct {
	NameLength int
	NameOffset int
	Config     models.SecurityConfig
}

// Encode produces the 64-byte record for one annotated function.
//
// name is the identifier stored in the companion name record; nameOffset is
// the byte offset of that identifier within the names section. Both fields
// have fixed capacities and Encode fails loudly instead of narrowing
// silently: names longer than 255 bytes and offsets beyond 65535 are errors.
func Encode(name string, cfg models.SecurityConfig, nameOffset int) ([Size]byte, error) {
	var buf [Size]byte

	if len(name) > MaxNameLength {
		return buf, fmt.Errorf("function name %q is %d bytes, exceeds the %d-byte name_length capacity", truncateForError(name), len(name), MaxNameLength)
	}
	if strings.ContainsRune(name, 0) {
		return buf, fmt.Errorf("function name %q contains a NUL byte; name records must be null-free", truncateForError(name))
	}
	if nameOffset < 0 || nameOffset > 0xFFFF {
		return buf, fmt.Errorf("name offset %d does not fit the 2-byte name_offset field", nameOffset)
	}
	if !cfg.ThreatLevel.Valid() {
		return buf, fmt.Errorf("invalid threat level ordinal %d", cfg.ThreatLevel)
	}

	binary.LittleEndian.PutUint64(buf[offMagic:], Magic)
	buf[offNameLength] = byte(len(name))
	buf[offSQLInjection] = flagByte(cfg.SQLInjection)
	buf[offRaceCondition] = flagByte(cfg.RaceCondition)
	buf[offTimingAttack] = flagByte(cfg.TimingAttack)
	buf[offBufferOverflow] = flagByte(cfg.BufferOverflow)
	buf[offThreatLevel] = byte(cfg.ThreatLevel)
	binary.LittleEndian.PutUint16(buf[offNameOffset:], uint16(nameOffset))
	buf[offIntegerOverflow] = flagByte(cfg.IntegerOverflow)

	return buf, nil
}

// Decode parses a 64-byte record, validating the magic. This is the read
// side of the wire contract; the external scanner performs the same steps.
func Decode(data []byte) (*Record, error) {
	if len(data) < Size {
		return nil, fmt.Errorf("record is %d bytes, need %d", len(data), Size)
	}
	if got := binary.LittleEndian.Uint64(data[offMagic:]); got != Magic {
		return nil, fmt.Errorf("bad magic 0x%016X, want 0x%016X", got, Magic)
	}

	rec := &Record{
		NameLength: int(data[offNameLength]),
		NameOffset: int(binary.LittleEndian.Uint16(data[offNameOffset:])),
		Config: models.SecurityConfig{
			SQLInjection:    data[offSQLInjection] != 0,
			RaceCondition:   data[offRaceCondition] != 0,
			TimingAttack:    data[offTimingAttack] != 0,
			BufferOverflow:  data[offBufferOverflow] != 0,
			IntegerOverflow: data[offIntegerOverflow] != 0,
			ThreatLevel:     models.ThreatLevel(data[offThreatLevel]),
		},
	}

	if !rec.Config.ThreatLevel.Valid() {
		return nil, fmt.Errorf("invalid threat level ordinal %d", data[offThreatLevel])
	}
	return rec, nil
}

func flagByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func truncateForError(name string) string {
	if len(name) > 40 {
		return name[:40] + "..."
	}
	return name
}
