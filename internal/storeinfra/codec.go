package storeinfra

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeEntry serializes an entry for the wire. Struct values come back from
// decodeEntry as maps; callers that need their concrete types re-decode on
// their side.
func encodeEntry(entry Entry) ([]byte, error) {
	data, err := msgpack.Marshal(entry)
	if err != nil {
		return nil, fmt.Errorf("encode cache entry: %w", err)
	}
	return data, nil
}

func decodeEntry(data []byte) (Entry, error) {
	var entry Entry
	if err := msgpack.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("decode cache entry: %w", err)
	}
	return entry, nil
}
