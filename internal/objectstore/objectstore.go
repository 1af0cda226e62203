// Package objectstore stores uploaded file bytes outside the database.
package objectstore

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// UploadTicket tells a client where to PUT file bytes and which object path
// to record on the file row afterwards.
type UploadTicket struct {
	UploadURL  string `json:"uploadURL"`
	ObjectPath string `json:"objectPath"`
}

// Storage is the object storage surface used by the API and the file agent.
type Storage interface {
	IssueUpload(fileName string) (*UploadTicket, error)
	Put(objectPath string, data []byte) error
	GetBytes(objectPath string) ([]byte, error)
	GetText(objectPath string) (string, error)
	Delete(objectPath string) error
	List(prefix string) ([]string, error)
}

var unsafeNameChars = regexp.MustCompile(`[^a-zA-Z0-9.-]`)

// Disk is a filesystem-backed Storage rooted at a single directory. Object
// paths live under ".private/" and are always resolved relative to the root;
// path escapes are rejected.
type Disk struct {
	root   string
	logger zerolog.Logger
	now    func() time.Time
}

// NewDisk creates the root directory if needed.
func NewDisk(root string, logger zerolog.Logger) (*Disk, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Disk{
		root:   root,
		logger: logger.With().Str("component", "objectstore").Logger(),
		now:    time.Now,
	}, nil
}

// IssueUpload reserves an object path for the named file. The upload URL is
// an API route the server accepts a PUT on.
func (d *Disk) IssueUpload(fileName string) (*UploadTicket, error) {
	if fileName == "" {
		return nil, fmt.Errorf("file name is required")
	}
	safe := unsafeNameChars.ReplaceAllString(fileName, "_")
	objectPath := fmt.Sprintf(".private/%d-%s", d.now().UnixMilli(), safe)
	return &UploadTicket{
		UploadURL:  "/api/objects/" + objectPath,
		ObjectPath: objectPath,
	}, nil
}

// resolve maps an object path onto the root, refusing escapes.
func (d *Disk) resolve(objectPath string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(objectPath))
	if clean == "." || strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return "", fmt.Errorf("invalid object path %q", objectPath)
	}
	return filepath.Join(d.root, clean), nil
}

func (d *Disk) Put(objectPath string, data []byte) error {
	path, err := d.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create object dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	d.logger.Debug().Str("object_path", objectPath).Int("size", len(data)).Msg("object stored")
	return nil
}

func (d *Disk) GetBytes(objectPath string) ([]byte, error) {
	path, err := d.resolve(objectPath)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read object: %w", err)
	}
	return data, nil
}

func (d *Disk) GetText(objectPath string) (string, error) {
	data, err := d.GetBytes(objectPath)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (d *Disk) Delete(objectPath string) error {
	path, err := d.resolve(objectPath)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

// List returns object paths under the root matching the prefix, sorted.
func (d *Disk) List(prefix string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(d.root, func(path string, entry os.DirEntry, err error) error {
		if err != nil || entry.IsDir() {
			return err
		}
		rel, err := filepath.Rel(d.root, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if strings.HasPrefix(name, prefix) {
			out = append(out, name)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}
	sort.Strings(out)
	return out, nil
}
