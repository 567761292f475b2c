package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO-8601 calendar date used on disk and in payloads.
const DateLayout = "2006-01-02"

// CardDateLayout renders dates on cards, e.g. "10 May, 2008".
const CardDateLayout = "02 January, 2006"

var dateLayouts = []string{
	DateLayout,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	time.RFC3339Nano,
}

// Date is a calendar date without a time of day. A value decoded from disk that
// cannot be parsed keeps its raw text so the rest of the store stays readable;
// Valid reports false for it.
type Date struct {
	t   time.Time
	raw string
}

// ParseDate accepts YYYY-MM-DD, naive ISO datetimes and RFC 3339.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return Date{raw: s}, fmt.Errorf("unrecognised date %q", s)
}

// MustParseDate is ParseDate for literals; it panics on bad input.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// NewDate builds a date at UTC midnight.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// IsZero reports whether the date was never set.
func (d Date) IsZero() bool { return d.t.IsZero() && d.raw == "" }

// Valid reports whether the date holds a real calendar value.
func (d Date) Valid() bool { return !d.t.IsZero() }

// Time returns the date at UTC midnight.
func (d Date) Time() time.Time { return d.t }

// Before reports whether d is strictly earlier than other.
func (d Date) Before(other Date) bool { return d.t.Before(other.t) }

// String returns the ISO form, or the raw text for an unparsable value.
func (d Date) String() string {
	if !d.Valid() {
		return d.raw
	}
	return d.t.Format(DateLayout)
}

// CardFormat renders the date the way the card and QR payload show it.
func (d Date) CardFormat() (string, error) {
	if !d.Valid() {
		return "", fmt.Errorf("unrecognised date %q", d.raw)
	}
	return d.t.Format(CardDateLayout), nil
}

// MarshalJSON implements json.Marshaler.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler. Unparsable strings are retained.
func (d *Date) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, _ := ParseDate(s)
	*d = parsed
	return nil
}

// Timestamp is an instant serialised as ISO-8601. It also reads the naive
// local-time form ("2024-01-01T10:00:00.123456") written by older tools.
type Timestamp struct {
	time.Time
}

// Now returns the current instant truncated to microseconds.
func Now() Timestamp {
	return Timestamp{Time: time.Now().UTC().Truncate(time.Microsecond)}
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.Time.Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05.999999999", DateLayout} {
		if parsed, err := time.Parse(layout, s); err == nil {
			*t = Timestamp{Time: parsed}
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

// String returns the ISO-8601 representation or an empty string.
func (t Timestamp) String() string {
	if t.IsZero() {
		return ""
	}
	return t.Time.Format(time.RFC3339Nano)
}
