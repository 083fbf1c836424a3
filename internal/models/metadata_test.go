package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlattenMetadata_Scalars(t *testing.T) {
	flat, dropped := FlattenMetadata(map[string]any{
		"title":   "Policy Update",
		"year":    2024,
		"score":   0.75,
		"public":  true,
		"count64": int64(7),
	})
	assert.Empty(t, dropped)
	assert.Equal(t, map[string]string{
		"title":   "Policy Update",
		"year":    "2024",
		"score":   "0.75",
		"public":  "true",
		"count64": "7",
	}, flat)
}

func TestFlattenMetadata_DropsComplexValues(t *testing.T) {
	flat, dropped := FlattenMetadata(map[string]any{
		"ok":     "yes",
		"nested": map[string]string{"a": "b"},
		"list":   []int{1, 2},
	})
	assert.Equal(t, []string{"list", "nested"}, dropped)
	assert.Equal(t, map[string]string{"ok": "yes"}, flat)
}

func TestFlattenMetadata_Empty(t *testing.T) {
	flat, dropped := FlattenMetadata(nil)
	assert.Empty(t, dropped)
	assert.NotNil(t, flat)
	assert.Empty(t, flat)
}

func TestJoinTags_SortedAndStable(t *testing.T) {
	tags := []string{"inflation", "central bank", "rates"}
	assert.Equal(t, "central bank,inflation,rates", JoinTags(tags))
	// input order does not matter
	assert.Equal(t, JoinTags([]string{"rates", "inflation", "central bank"}), JoinTags(tags))
	// and the input is not reordered
	assert.Equal(t, []string{"inflation", "central bank", "rates"}, tags)

	assert.Equal(t, "", JoinTags(nil))
}

func TestSegmentID_Deterministic(t *testing.T) {
	assert.Equal(t, "doc-1#0", SegmentID("doc-1", 0))
	assert.Equal(t, "doc-1#12", SegmentID("doc-1", 12))

	seg := Segment{ParentDocumentID: "doc-1", SequenceNumber: 3}
	assert.Equal(t, "doc-1#3", seg.ID())
}
