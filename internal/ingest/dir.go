package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/lecternhq/lectern/internal/extract"
)

// DirSource ingests markdown files under a root directory.
type DirSource struct {
	root string
}

// NewDirSource creates a source over a directory tree of markdown files.
func NewDirSource(root string) (*DirSource, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving %s: %w", root, err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", abs, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", abs)
	}

	return &DirSource{root: abs}, nil
}

// Name identifies the source in logs and reports.
func (s *DirSource) Name() string {
	return "dir " + s.root
}

// List walks the tree and returns the absolute path of every markdown
// file, in lexical walk order so runs are deterministic.
func (s *DirSource) List(_ context.Context) ([]string, error) {
	var refs []string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Hidden directories hold no course content
			if name := d.Name(); name != "." && strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext == ".md" || ext == ".markdown" {
			refs = append(refs, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", s.root, err)
	}
	return refs, nil
}

// Fetch reads one markdown file and strips its formatting.
func (s *DirSource) Fetch(_ context.Context, ref string) (Document, error) {
	content, err := os.ReadFile(ref)
	if err != nil {
		return Document{}, fmt.Errorf("reading %s: %w", ref, err)
	}

	page := extract.FromMarkdown(string(content), ref)
	return Document{
		ID:    ref,
		Title: page.Title,
		Text:  page.Text,
	}, nil
}
