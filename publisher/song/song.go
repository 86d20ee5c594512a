// Package song turns a song submitted from the admin console
// into the JSON document published under content/songs.
package song

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/tokura1222/music-platform/publisher/commitmsg"
	"github.com/tokura1222/music-platform/publisher/publish"
)

const (
	// Dir is the repository directory holding song
	// documents.
	Dir = "content/songs"
	// DefaultCategory is used when no category is given.
	DefaultCategory = "other"
	// MessageTemplate is the default commit message of
	// a published song.
	MessageTemplate = "Add song from admin console: {{title}}"
)

// ErrInvalid is returned for a song missing a required
// field.
var ErrInvalid = errors.New("invalid song")

// slugSeparators matches runs of characters that are not
// ASCII lower-case letters or digits, hiragana, katakana
// or CJK ideographs.
var slugSeparators = regexp.MustCompile(
	`[^a-z0-9\x{3040}-\x{309f}\x{30a0}-\x{30ff}\x{4e00}-\x{9faf}]+`,
)

// Song is one published track.
type Song struct {
	Title     string `json:"title"`
	Artist    string `json:"artist"`
	Category  string `json:"category"`
	URL       string `json:"url"`
	CoverPath string `json:"coverPath,omitempty"`
}

// Validate checks that title, artist and url are set.
func (s Song) Validate() error {
	var missing []string

	if strings.TrimSpace(s.Title) == "" {
		missing = append(missing, "title")
	}

	if strings.TrimSpace(s.Artist) == "" {
		missing = append(missing, "artist")
	}

	if strings.TrimSpace(s.URL) == "" {
		missing = append(missing, "url")
	}

	if len(missing) > 0 {
		return fmt.Errorf(
			"%w: missing %s", ErrInvalid, strings.Join(missing, ", "),
		)
	}

	return nil
}

// idAt derives the song identifier from its title,
// falling back to one based on now.
func (s Song) idAt(now time.Time) string {
	id := slugSeparators.ReplaceAllString(strings.ToLower(s.Title), "-")
	id = strings.TrimSuffix(strings.TrimPrefix(id, "-"), "-")

	if id == "" {
		return fmt.Sprintf("song-%d", now.UnixMilli())
	}

	return id
}

// Entry is a validated song ready to be written and
// published.
type Entry struct {
	// ID names the document.
	ID string
	// Song holds the stored fields, category defaulted.
	Song Song
	// Document is the JSON written to RepoPath.
	Document []byte
}

// NewEntry validates s, fills defaults and renders its
// document. now supplies the fallback identifier of a
// title without usable characters.
func NewEntry(s Song, now time.Time) (*Entry, error) {
	const errCtx = "preparing song"

	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	if s.Category == "" {
		s.Category = DefaultCategory
	}

	doc, err := document(s)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", errCtx, err)
	}

	return &Entry{
		ID:       s.idAt(now),
		Song:     s,
		Document: doc,
	}, nil
}

// document renders s as 2-space indented JSON without
// HTML escaping.
func document(s Song) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(s); err != nil {
		return nil, err
	}

	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// RepoPath returns the slash separated repository path of
// the document.
func (e *Entry) RepoPath() string {
	return path.Join(Dir, e.ID+".json")
}

const (
	filePerm os.FileMode = 0o644
	dirPerm  os.FileMode = 0o755
)

// WriteTo writes the document under root, creating
// directories as needed, and returns the file's path.
func (e *Entry) WriteTo(root string) (string, error) {
	const errCtx = "writing song"

	fp := filepath.Join(root, filepath.FromSlash(e.RepoPath()))

	//nolint:gosec // site content is world readable
	if err := os.MkdirAll(filepath.Dir(fp), dirPerm); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	//nolint:gosec // site content is world readable
	if err := os.WriteFile(fp, e.Document, filePerm); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	// WriteFile keeps the mode of an existing file.
	if err := os.Chmod(fp, filePerm); err != nil {
		return "", fmt.Errorf("%s: %w", errCtx, err)
	}

	return fp, nil
}

// CommitFile describes the document for a publish batch
// rooted at root.
func (e *Entry) CommitFile(root string) publish.CommitFile {
	return publish.CommitFile{
		Path:      e.RepoPath(),
		Content:   e.Document,
		LocalPath: filepath.Join(root, filepath.FromSlash(e.RepoPath())),
	}
}

// CommitMessage renders tpl for the song. The title,
// artist and id placeholders are available.
func (e *Entry) CommitMessage(tpl string) (string, error) {
	return commitmsg.Render(tpl, map[string]string{
		"title":  e.Song.Title,
		"artist": e.Song.Artist,
		"id":     e.ID,
	})
}
