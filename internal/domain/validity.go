package domain

import (
	"encoding/json"
	"fmt"
)

// Validity is the tri-state result of a single check. Unconfirmed is the only
// legal initial state; Valid and Invalid are terminal.
type Validity string

const (
	Valid       Validity = "valid"
	Invalid     Validity = "invalid"
	Unconfirmed Validity = "unconfirmed"
)

func (v *Validity) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch Validity(s) {
	case Valid, Invalid, Unconfirmed:
		*v = Validity(s)
		return nil
	}
	return fmt.Errorf("unknown validity %q", s)
}
