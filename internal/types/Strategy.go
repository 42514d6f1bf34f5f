/*

This file contains the lifecycle state of a strategy.

*/

package types

import (
	"fmt"
	"strings"
)

// StrategyState is the lifecycle state of a strategy.
type StrategyState uint8

const (
	StateActive StrategyState = iota
	StatePaused
	StatePanicked
	StateRetired
)

var strategyStateNames = map[StrategyState]string{
	StateActive:   "ACTIVE",
	StatePaused:   "PAUSED",
	StatePanicked: "PANICKED",
	StateRetired:  "RETIRED",
}

// String returns the upper-case name of the state.
func (s StrategyState) String() string {
	if name, ok := strategyStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN(%d)", uint8(s))
}

// CanDeploy reports whether new capital may flow into the liquidity source.
func (s StrategyState) CanDeploy() bool {
	return s == StateActive
}

// MarshalText encodes the state by name so snapshots stay readable.
func (s StrategyState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *StrategyState) UnmarshalText(text []byte) error {
	name := strings.ToUpper(strings.TrimSpace(string(text)))
	for state, n := range strategyStateNames {
		if n == name {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("unknown strategy state %q", string(text))
}
