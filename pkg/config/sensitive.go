package config

import "encoding/json"

// SensitiveString is a string that redacts itself in logs and JSON output.
// Use Value() to access the raw secret.
type SensitiveString string

const redactedValue = "[REDACTED]"

func (s SensitiveString) String() string {
	if s == "" {
		return ""
	}
	return redactedValue
}

// Value returns the raw secret.
func (s SensitiveString) Value() string {
	return string(s)
}

// IsSet reports whether the secret carries a value.
func (s SensitiveString) IsSet() bool {
	return s != ""
}

func (s SensitiveString) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

func (s *SensitiveString) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*s = SensitiveString(raw)
	return nil
}
