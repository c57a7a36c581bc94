package store

import (
	"encoding/binary"
	"encoding/json"
	"math"
	"time"
)

// timeLayout is the canonical timestamp encoding for all tables. The
// fractional seconds are padded to a fixed nine digits so that stored
// strings compare lexicographically in time order; the dedup window's
// created_at cutoff and every ORDER BY created_at depend on that.
// RFC3339Nano would trim trailing zeros and break the ordering
// (".5Z" sorts after ".52Z").
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	// RFC3339Nano accepts any fraction width, including the padded
	// canonical form and older trimmed or second-precision stamps.
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// encodeVector serializes a float32 vector into a little-endian BLOB.
func encodeVector(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector deserializes a little-endian BLOB into a float32 vector.
func decodeVector(buf []byte) []float32 {
	if len(buf) < 4 {
		return nil
	}
	v := make([]float32, len(buf)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v
}

// marshalTags encodes a tag set as a JSON array. Nil stays NULL-friendly
// as an empty string.
func marshalTags(tags []string) string {
	if len(tags) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func unmarshalTags(s string) []string {
	if s == "" {
		return nil
	}
	var tags []string
	_ = json.Unmarshal([]byte(s), &tags)
	return tags
}

// marshalMetadata encodes free-form metadata as a JSON object.
func marshalMetadata(m map[string]interface{}) string {
	if len(m) == 0 {
		return "{}"
	}
	b, _ := json.Marshal(m)
	return string(b)
}

func unmarshalMetadata(s string) map[string]interface{} {
	if s == "" {
		return nil
	}
	var m map[string]interface{}
	_ = json.Unmarshal([]byte(s), &m)
	return m
}

// metadataFileList extracts a "files" string array from a raw metadata
// JSON document. Used by the one-time file-association migration.
func metadataFileList(raw string) []string {
	m := unmarshalMetadata(raw)
	if m == nil {
		return nil
	}
	list, ok := m["files"].([]interface{})
	if !ok {
		return nil
	}
	paths := make([]string, 0, len(list))
	for _, entry := range list {
		if p, ok := entry.(string); ok && p != "" {
			paths = append(paths, p)
		}
	}
	return paths
}
