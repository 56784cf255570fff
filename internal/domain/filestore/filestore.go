package filestore

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"media-caption-server/internal/platform/errors"
)

// Scheme is the only stream wrapper the store resolves.
const Scheme = "public://"

// Store keeps uploaded files under a root directory and addresses them as
// public://<name> URIs.
type Store struct {
	root          string
	publicBaseURL string
}

func New(root, publicBaseURL string) (*Store, error) {
	if root == "" {
		return nil, errors.New(errors.KindConfig, "filestore.new", "files root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(errors.KindStorage, "filestore.new", "failed to create files root", err)
	}
	return &Store{root: root, publicBaseURL: strings.TrimRight(publicBaseURL, "/")}, nil
}

func (s *Store) Root() string { return s.root }

// Put writes r under a unique name derived from filename.
func (s *Store) Put(filename string, r io.Reader) (string, int64, error) {
	name := uuid.NewString() + "-" + sanitize(filename)
	f, err := os.OpenFile(filepath.Join(s.root, name), os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", 0, errors.Wrap(errors.KindStorage, "filestore.put", "failed to create file", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return "", 0, errors.Wrap(errors.KindStorage, "filestore.put", "failed to write file", err)
	}
	return Scheme + name, size, nil
}

// RealPath resolves a public:// URI to a local path inside the root.
func (s *Store) RealPath(uri string) (string, error) {
	rel, err := relative(uri)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.root, filepath.FromSlash(rel)), nil
}

// PublicURL builds the externally reachable URL of a public:// URI.
func (s *Store) PublicURL(uri string) (string, error) {
	rel, err := relative(uri)
	if err != nil {
		return "", err
	}
	if s.publicBaseURL == "" {
		return "", errors.New(errors.KindConfig, "filestore.public_url", "public base url is not configured")
	}
	segments := strings.Split(rel, "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicBaseURL + "/" + strings.Join(segments, "/"), nil
}

func relative(uri string) (string, error) {
	if !strings.HasPrefix(uri, Scheme) {
		return "", errors.New(errors.KindResource, "filestore.resolve", fmt.Sprintf("unsupported uri %q", uri))
	}
	rel := path.Clean("/" + strings.TrimPrefix(uri, Scheme))
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return "", errors.New(errors.KindResource, "filestore.resolve", fmt.Sprintf("empty path in uri %q", uri))
	}
	return rel, nil
}

func sanitize(filename string) string {
	base := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, base)
	if base == "" || base == "." || base == ".." || base == "_" {
		return "upload"
	}
	return base
}
