package helpdesk

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedEnvelope reports a backend list response that violates the
// envelope contract (an entry without the expected singleton record). This is
// kept distinct from an empty list: the two must never be conflated.
var ErrMalformedEnvelope = errors.New("malformed helpdesk list envelope")

// The envelope is a JSON object whose entries are either the literal key
// "total_count" (an integer) or an arbitrary, undocumented key wrapping
// exactly one record. Entry order carries the backend's authoritative
// ordering, so the object is walked token by token instead of being decoded
// into a Go map, which would scramble it. Keys other than total_count are
// opaque and discarded.
func decodeList[T any](data []byte, kind string) ([]T, int64, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, 0, fmt.Errorf("%w: top level is not an object", ErrMalformedEnvelope)
	}

	records := make([]T, 0)
	var total int64
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, 0, fmt.Errorf("%w: non-string key", ErrMalformedEnvelope)
		}

		if key == "total_count" {
			if err := dec.Decode(&total); err != nil {
				return nil, 0, fmt.Errorf("%w: invalid total_count: %v", ErrMalformedEnvelope, err)
			}
			continue
		}

		var entry map[string]json.RawMessage
		if err := dec.Decode(&entry); err != nil {
			return nil, 0, fmt.Errorf("%w: entry %q: %v", ErrMalformedEnvelope, key, err)
		}
		raw, ok := entry[kind]
		if !ok {
			return nil, 0, fmt.Errorf("%w: entry %q has no %q record", ErrMalformedEnvelope, key, kind)
		}
		var record T
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, 0, fmt.Errorf("%w: entry %q: %v", ErrMalformedEnvelope, key, err)
		}
		records = append(records, record)
	}
	return records, total, nil
}

func decodeRecord[T any](data []byte, kind string) (*T, error) {
	var entry map[string]json.RawMessage
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	raw, ok := entry[kind]
	if !ok {
		return nil, fmt.Errorf("%w: no %q record", ErrMalformedEnvelope, kind)
	}
	var record T
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	return &record, nil
}

// DecodeCaseList normalizes a case list envelope into records in envelope
// order plus the backend's total count.
func DecodeCaseList(data []byte) ([]Case, int64, error) {
	return decodeList[Case](data, "case")
}

// DecodeMessageList normalizes a message list envelope.
func DecodeMessageList(data []byte) ([]Message, int64, error) {
	return decodeList[Message](data, "message")
}

// DecodeCase unwraps a single {"case": {...}} success envelope.
func DecodeCase(data []byte) (*Case, error) {
	return decodeRecord[Case](data, "case")
}

// DecodeMessage unwraps a single {"message": {...}} success envelope.
func DecodeMessage(data []byte) (*Message, error) {
	return decodeRecord[Message](data, "message")
}
