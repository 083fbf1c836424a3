package models

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Lineage metadata keys carried by every segment and embedding record.
const (
	MetaParentDocumentID = "parent_document_id"
	MetaSequenceNumber   = "sequence_number"
	MetaStartOffset      = "start_offset"
	MetaEndOffset        = "end_offset"
	MetaSource           = "source"
	MetaTags             = "tags"
)

// FlattenMetadata converts an open key->value map into the scalar string map
// the vector index accepts. Strings, numbers and booleans are converted;
// anything else is dropped and reported in the returned key list.
func FlattenMetadata(meta map[string]any) (map[string]string, []string) {
	if len(meta) == 0 {
		return map[string]string{}, nil
	}
	flat := make(map[string]string, len(meta))
	var dropped []string
	for k, v := range meta {
		s, ok := flattenValue(v)
		if !ok {
			dropped = append(dropped, k)
			continue
		}
		flat[k] = s
	}
	sort.Strings(dropped)
	return flat, dropped
}

func flattenValue(v any) (string, bool) {
	switch val := v.(type) {
	case string:
		return val, true
	case bool:
		return strconv.FormatBool(val), true
	case int:
		return strconv.Itoa(val), true
	case int32:
		return strconv.FormatInt(int64(val), 10), true
	case int64:
		return strconv.FormatInt(val, 10), true
	case float32:
		return strconv.FormatFloat(float64(val), 'g', -1, 32), true
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64), true
	case fmt.Stringer:
		return val.String(), true
	default:
		return "", false
	}
}

// JoinTags serializes a tag set for scalar metadata storage, sorted so the
// serialized form is deterministic.
func JoinTags(tags []string) string {
	if len(tags) == 0 {
		return ""
	}
	sorted := make([]string, len(tags))
	copy(sorted, tags)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}
