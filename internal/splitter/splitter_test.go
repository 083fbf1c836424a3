package splitter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"policy-rag/internal/models"
)

func doc(id, content string) models.Document {
	return models.Document{ID: id, Content: content, Source: "test://" + id}
}

func TestNew_InvalidChunkSize(t *testing.T) {
	_, err := New(0, 0)
	require.Error(t, err)

	_, err = New(-5, 0)
	require.Error(t, err)
}

func TestNew_ClampsExcessiveOverlap(t *testing.T) {
	s, err := New(10, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, s.ChunkOverlap())

	s, err = New(10, 15)
	require.NoError(t, err)
	assert.Equal(t, 0, s.ChunkOverlap())

	s, err = New(10, 3)
	require.NoError(t, err)
	assert.Equal(t, 3, s.ChunkOverlap())
}

func TestSplit_OverlappingWindows(t *testing.T) {
	// length 25, size 10, overlap 3 -> [0,10) [7,17) [14,24) [21,25)
	s, err := New(10, 3)
	require.NoError(t, err)

	content := strings.Repeat("abcde", 5)
	segments, err := s.Split(doc("d1", content))
	require.NoError(t, err)
	require.Len(t, segments, 4)

	wantOffsets := [][2]int{{0, 10}, {7, 17}, {14, 24}, {21, 25}}
	for i, seg := range segments {
		assert.Equal(t, "d1", seg.ParentDocumentID)
		assert.Equal(t, i, seg.SequenceNumber)
		assert.Equal(t, wantOffsets[i][0], seg.StartOffset)
		assert.Equal(t, wantOffsets[i][1], seg.EndOffset)
		assert.Equal(t, content[seg.StartOffset:seg.EndOffset], seg.Content)
	}
}

func TestSplit_ContentExactlyChunkSize(t *testing.T) {
	s, err := New(10, 3)
	require.NoError(t, err)

	segments, err := s.Split(doc("d1", "0123456789"))
	require.NoError(t, err)
	require.Len(t, segments, 1)
	assert.Equal(t, 0, segments[0].StartOffset)
	assert.Equal(t, 10, segments[0].EndOffset)
	assert.Equal(t, "0123456789", segments[0].Content)
}

func TestSplit_OneCharLonger(t *testing.T) {
	// second segment has length 1 + overlap and is never empty
	s, err := New(10, 3)
	require.NoError(t, err)

	segments, err := s.Split(doc("d1", "0123456789X"))
	require.NoError(t, err)
	require.Len(t, segments, 2)
	assert.Equal(t, 7, segments[1].StartOffset)
	assert.Equal(t, 11, segments[1].EndOffset)
	assert.Equal(t, 1+s.ChunkOverlap(), segments[1].EndOffset-segments[1].StartOffset)
	assert.NotEmpty(t, segments[1].Content)
}

func TestSplit_ZeroOverlapTiles(t *testing.T) {
	s, err := New(5, 0)
	require.NoError(t, err)

	content := "abcdefghijklmnopqrst" // length 20
	segments, err := s.Split(doc("d1", content))
	require.NoError(t, err)
	require.Len(t, segments, 4)

	var rebuilt strings.Builder
	for i, seg := range segments {
		if i > 0 {
			assert.Equal(t, segments[i-1].EndOffset, seg.StartOffset)
		}
		rebuilt.WriteString(seg.Content)
	}
	assert.Equal(t, content, rebuilt.String())
}

func TestSplit_UnicodeOffsetsAreRunes(t *testing.T) {
	s, err := New(4, 1)
	require.NoError(t, err)

	content := "日本語のテキストです" // 10 runes, 30 bytes
	segments, err := s.Split(doc("d1", content))
	require.NoError(t, err)
	require.NotEmpty(t, segments)

	runes := []rune(content)
	for _, seg := range segments {
		assert.Equal(t, string(runes[seg.StartOffset:seg.EndOffset]), seg.Content)
	}
	last := segments[len(segments)-1]
	assert.Equal(t, len(runes), last.EndOffset)
}

func TestSplit_EmptyContent(t *testing.T) {
	s, err := New(10, 3)
	require.NoError(t, err)

	segments, err := s.Split(doc("d1", ""))
	require.NoError(t, err)
	assert.Empty(t, segments)
}

func TestSplit_Deterministic(t *testing.T) {
	s, err := New(10, 3)
	require.NoError(t, err)

	d := doc("d1", strings.Repeat("policy text ", 20))
	first, err := s.Split(d)
	require.NoError(t, err)
	second, err := s.Split(d)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	for i, seg := range first {
		assert.Equal(t, models.SegmentID("d1", i), seg.ID())
	}
}

func TestSplit_CoverageAndOverlapProperties(t *testing.T) {
	cases := []struct {
		size    int
		overlap int
		length  int
	}{
		{10, 3, 25},
		{10, 0, 100},
		{7, 6, 50},
		{100, 10, 99},
		{1, 0, 13},
	}
	for _, tc := range cases {
		s, err := New(tc.size, tc.overlap)
		require.NoError(t, err)

		content := strings.Repeat("x", tc.length)
		segments, err := s.Split(doc("d1", content))
		require.NoError(t, err)
		require.NotEmpty(t, segments)

		assert.Equal(t, 0, segments[0].StartOffset)
		assert.Equal(t, tc.length, segments[len(segments)-1].EndOffset)
		for i := 1; i < len(segments); i++ {
			// no gaps, and exact overlap between consecutive windows
			assert.LessOrEqual(t, segments[i].StartOffset, segments[i-1].EndOffset)
			assert.Equal(t, s.ChunkOverlap(), segments[i-1].EndOffset-segments[i].StartOffset,
				"size=%d overlap=%d len=%d segment=%d", tc.size, tc.overlap, tc.length, i)
			assert.Greater(t, segments[i].EndOffset, segments[i].StartOffset)
		}
	}
}

func TestSplit_LineageMetadata(t *testing.T) {
	s, err := New(10, 3)
	require.NoError(t, err)

	d := models.Document{
		ID:      "d1",
		Content: strings.Repeat("a", 25),
		Source:  "http://example.com/doc",
		Metadata: map[string]any{
			"author":          "central bank",
			"sequence_number": "should be replaced",
		},
		Tags: []string{"policy", "rates"},
	}

	segments, err := s.Split(d)
	require.NoError(t, err)
	require.Len(t, segments, 4)

	for i, seg := range segments {
		assert.Equal(t, "central bank", seg.Metadata["author"])
		assert.Equal(t, "http://example.com/doc", seg.Metadata[models.MetaSource])
		// lineage fields win on key collision
		assert.Equal(t, i, seg.Metadata[models.MetaSequenceNumber])
		assert.Equal(t, "d1", seg.Metadata[models.MetaParentDocumentID])
		assert.Equal(t, seg.StartOffset, seg.Metadata[models.MetaStartOffset])
		assert.Equal(t, seg.EndOffset, seg.Metadata[models.MetaEndOffset])
		assert.Equal(t, []string{"policy", "rates"}, seg.Tags)
	}

	// mutating a segment's metadata must not leak into the parent
	segments[0].Metadata["author"] = "someone else"
	assert.Equal(t, "central bank", d.Metadata["author"])
}
