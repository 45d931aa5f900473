package models

import (
	"fmt"
	"strings"
)

// Mode selects how deep a detail record is extracted.
type Mode int

const (
	ModeUnknown Mode = iota
	// ModeMini keeps essential fields only.
	ModeMini
	// ModeAll keeps every field the detail query returns.
	ModeAll
)

func (m Mode) String() string {
	switch m {
	case ModeMini:
		return "MINI"
	case ModeAll:
		return "ALL"
	default:
		return "UNKNOWN"
	}
}

// ParseMode accepts MINI or ALL in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "MINI":
		return ModeMini, nil
	case "ALL":
		return ModeAll, nil
	default:
		return ModeUnknown, fmt.Errorf("unknown extraction mode %q (want MINI or ALL)", s)
	}
}
