package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrProvisionalLine is returned when an operation needs a server-assigned
// line id but the line is still provisional.
var ErrProvisionalLine = errors.New("cart line is not confirmed by the server yet")

// LineKind tags a LineID.
type LineKind uint8

const (
	LineConfirmed   LineKind = iota // id assigned by the server
	LineProvisional                 // temporary id assigned locally
)

// LineID identifies a cart line. The zero value is the confirmed id 0.
type LineID struct {
	Kind  LineKind
	Value int64
}

// Confirmed returns the id of a server-confirmed line.
func Confirmed(serverID int64) LineID { return LineID{Kind: LineConfirmed, Value: serverID} }

// Provisional returns the id of a locally created line.
func Provisional(tempID int64) LineID { return LineID{Kind: LineProvisional, Value: tempID} }

// IsProvisional reports whether the line has not been confirmed yet.
func (id LineID) IsProvisional() bool { return id.Kind == LineProvisional }

// ServerID returns the server id and true for confirmed lines.
func (id LineID) ServerID() (int64, bool) {
	if id.Kind != LineConfirmed {
		return 0, false
	}
	return id.Value, true
}

func (id LineID) String() string {
	if id.IsProvisional() {
		return "tmp-" + strconv.FormatInt(id.Value, 10)
	}
	return strconv.FormatInt(id.Value, 10)
}

// ParseLineID parses the String form of a LineID.
func ParseLineID(s string) (LineID, error) {
	if len(s) > 4 && s[:4] == "tmp-" {
		n, err := strconv.ParseInt(s[4:], 10, 64)
		if err != nil {
			return LineID{}, fmt.Errorf("invalid line id %q: %w", s, err)
		}
		return Provisional(n), nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return LineID{}, fmt.Errorf("invalid line id %q: %w", s, err)
	}
	return Confirmed(n), nil
}

type provisionalJSON struct {
	TempID int64 `json:"tempId"`
}

// MarshalJSON encodes confirmed ids as the bare server number and provisional
// ids as {"tempId": n}.
func (id LineID) MarshalJSON() ([]byte, error) {
	if id.IsProvisional() {
		return json.Marshal(provisionalJSON{TempID: id.Value})
	}
	return []byte(strconv.FormatInt(id.Value, 10)), nil
}

func (id *LineID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var p provisionalJSON
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*id = Provisional(p.TempID)
		return nil
	}
	var n int64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid line id %s: %w", data, err)
	}
	*id = Confirmed(n)
	return nil
}
