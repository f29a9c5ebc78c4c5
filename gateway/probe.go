package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// LegacyIDLocations lists, in priority order, where older backends placed the
// identifier of a newly created attachment.
var LegacyIDLocations = []string{
	"id",
	"data.id",
	"data.attachment.id",
	"attachment.id",
	"data.attachment_id",
	"attachment_id",
	"result.id",
	"data.data.id",
	"data.0.id",
	"insertId",
	"data.insertId",
}

// ProbeID returns the first positive integer found at one of
// LegacyIDLocations, and the location it came from.
func ProbeID(raw json.RawMessage) (int64, string, bool) {
	if len(raw) == 0 {
		return 0, "", false
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return 0, "", false
	}
	for _, loc := range LegacyIDLocations {
		if id, ok := positiveInt(lookup(doc, strings.Split(loc, "."))); ok {
			return id, loc, true
		}
	}
	return 0, "", false
}

func lookup(node any, path []string) any {
	for _, key := range path {
		switch n := node.(type) {
		case map[string]any:
			node = n[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(n) {
				return nil
			}
			node = n[i]
		default:
			return nil
		}
	}
	return node
}

func positiveInt(v any) (int64, bool) {
	var s string
	switch n := v.(type) {
	case json.Number:
		s = n.String()
	case string:
		s = strings.TrimSpace(n)
	default:
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
