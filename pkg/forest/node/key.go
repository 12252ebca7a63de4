package node

import (
	"encoding/json"
	"fmt"
	"strings"
)

// derivedKeyMaxLen bounds the length of a content-derived natural key.
const derivedKeyMaxLen = 40

// NaturalKey returns the caller-supplied id when present and non-empty,
// otherwise a key derived from the node's own fields.
func NaturalKey(fields map[string]any) string {
	if raw, ok := fields[FieldID]; ok && raw != nil {
		if key := fmt.Sprint(raw); key != "" {
			return key
		}
	}

	return DeriveKey(fields)
}

// DeriveKey serializes fields canonically (sorted keys, children and internal
// id excluded), keeps only ASCII letters and digits, and truncates the result.
//
// The derived key is a fallback identity only: two nodes with the same leading
// content collide, and lookups by natural key then return the node indexed
// last. Internal ids are the identity for anything correctness-sensitive.
func DeriveKey(fields map[string]any) string {
	own := make(map[string]any, len(fields))

	for field, value := range fields {
		if field == FieldChildren || field == FieldInternalID {
			continue
		}

		own[field] = value
	}

	var canonical string

	encoded, err := json.Marshal(own)
	if err != nil {
		canonical = fmt.Sprint(own)
	} else {
		canonical = string(encoded)
	}

	var buf strings.Builder

	for idx := 0; idx < len(canonical) && buf.Len() < derivedKeyMaxLen; idx++ {
		ch := canonical[idx]
		if isAlnum(ch) {
			buf.WriteByte(ch)
		}
	}

	return buf.String()
}

func isAlnum(ch byte) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
