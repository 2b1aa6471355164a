package quality

import (
	"fmt"
	"strings"
)

// Level is a discrete visual quality setting, totally ordered Low < Medium < High.
type Level int

const (
	Low Level = iota
	Medium
	High
)

// Levels lists every level in ascending order.
var Levels = []Level{Low, Medium, High}

func (l Level) String() string {
	switch l {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Valid reports whether l is one of the known levels.
func (l Level) Valid() bool {
	return l >= Low && l <= High
}

// Down returns the next lower level, saturating at Low.
func (l Level) Down() Level {
	if l <= Low {
		return Low
	}
	return l - 1
}

// Up returns the next higher level, saturating at High.
func (l Level) Up() Level {
	if l >= High {
		return High
	}
	return l + 1
}

// ParseLevel accepts names ("low", "Medium") and digits ("0".."2").
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low", "0":
		return Low, nil
	case "medium", "1":
		return Medium, nil
	case "high", "2":
		return High, nil
	}
	return Low, ErrInvalidLevel.WithMsgf("unknown quality level %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if !l.Valid() {
		return nil, ErrInvalidLevel.WithMsgf("unknown quality level %d", int(l))
	}
	return []byte(l.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(b []byte) error {
	v, err := ParseLevel(string(b))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// Mode tells whether the controller may change the level on its own.
type Mode int

const (
	Automatic Mode = iota
	ManualOverride
)

func (m Mode) String() string {
	if m == ManualOverride {
		return "manual"
	}
	return "automatic"
}
