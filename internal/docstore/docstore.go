package docstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNotFound distinguishes a missing entry from a storage failure.
var ErrNotFound = errors.New("document not found")

// maxKeyPathLen bounds the encoded path component of a storage key so keys
// stay inside filesystem path-length limits.
const maxKeyPathLen = 100

// Store persists original document content on the filesystem, keyed by a
// deterministic sanitized path derived from the document's external locator.
// Metadata lives in a sidecar JSON file beside the content so the two can be
// read and written independently.
type Store struct {
	basePath string
}

// NewStore creates the base directory if needed.
func NewStore(basePath string) (*Store, error) {
	if basePath == "" {
		return nil, fmt.Errorf("document store path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create document store directory: %w", err)
	}
	return &Store{basePath: basePath}, nil
}

// StorageKey derives the relative storage key for a source locator:
// authority and percent-encoded path, the path truncated to a bounded
// length, plus a content-type suffix sniffed from the source. The same
// source always maps to the same key. Truncated keys carry a short hash of
// the full source so distinct long sources stay distinct.
func (s *Store) StorageKey(sourceID string) string {
	authority := ""
	pathPart := sourceID
	if u, err := url.Parse(sourceID); err == nil && u.Host != "" {
		authority = strings.ReplaceAll(u.Host, ":", "_")
		pathPart = u.Path
	}

	encoded := url.QueryEscape(strings.Trim(pathPart, "/"))
	encoded = strings.ReplaceAll(encoded, "%", "_")
	if len(encoded) > maxKeyPathLen {
		encoded = encoded[:maxKeyPathLen] + "-" + shortHash(sourceID)
	}
	if encoded == "" {
		encoded = shortHash(sourceID)
	}

	if authority == "" {
		return encoded
	}
	return authority + string(filepath.Separator) + encoded
}

// contentExt sniffs a storage suffix from the source locator, defaulting to
// a binary/unknown suffix.
func contentExt(sourceID string) string {
	lower := strings.ToLower(sourceID)
	switch {
	case strings.HasSuffix(lower, ".pdf"):
		return ".pdf"
	case strings.HasSuffix(lower, ".html"), strings.HasSuffix(lower, ".htm"):
		return ".html"
	case strings.HasSuffix(lower, ".md"):
		return ".md"
	case strings.HasSuffix(lower, ".txt"):
		return ".txt"
	default:
		return ".bin"
	}
}

func shortHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}

func (s *Store) contentPath(sourceID string) string {
	return filepath.Join(s.basePath, s.StorageKey(sourceID)+contentExt(sourceID))
}

func metaPath(contentPath string) string {
	return contentPath + ".meta.json"
}

// Put writes the content and, when given, a metadata sidecar. Each file is
// written to a temp name and renamed so a cancelled write never leaves a
// partially written entry behind.
func (s *Store) Put(sourceID string, content []byte, metadata map[string]any) error {
	path := s.contentPath(sourceID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	if err := writeAtomic(path, content); err != nil {
		return fmt.Errorf("failed to write document %q: %w", sourceID, err)
	}
	log.Debug().Str("source", sourceID).Str("path", path).Msg("stored document")

	if metadata == nil {
		return nil
	}
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode metadata for %q: %w", sourceID, err)
	}
	if err := writeAtomic(metaPath(path), data); err != nil {
		return fmt.Errorf("failed to write metadata for %q: %w", sourceID, err)
	}
	return nil
}

// Get returns the stored content and metadata. A missing entry is reported
// as ErrNotFound; a corrupt or unreadable sidecar does not fail the read,
// the content comes back with nil metadata and the corruption is logged.
func (s *Store) Get(sourceID string) ([]byte, map[string]any, error) {
	path := s.contentPath(sourceID)
	content, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, fmt.Errorf("failed to read document %q: %w", sourceID, err)
	}

	data, err := os.ReadFile(metaPath(path))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("source", sourceID).Msg("failed to read metadata sidecar")
		}
		return content, nil, nil
	}
	var metadata map[string]any
	if err := json.Unmarshal(data, &metadata); err != nil {
		log.Warn().Err(err).Str("source", sourceID).Msg("corrupt metadata sidecar, returning content without metadata")
		return content, nil, nil
	}
	return content, metadata, nil
}

// Delete removes the content and its sidecar. Deletion is idempotent: an
// absent entry still reports true. False is returned only for a real
// storage failure.
func (s *Store) Delete(sourceID string) (bool, error) {
	path := s.contentPath(sourceID)
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to delete document %q: %w", sourceID, err)
	}
	if err := os.Remove(metaPath(path)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("failed to delete metadata for %q: %w", sourceID, err)
	}
	return true, nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
