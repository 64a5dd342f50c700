package authors

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/webtide/changelog-go/internal/models"
)

// File is the on-disk layout of the authors file
type File struct {
	Authors []*models.Author `yaml:"authors"`
}

// Registry indexes known authors by email and tracker handle so that every
// commit by the same person resolves to one *models.Author
type Registry struct {
	authors  []*models.Author
	byEmail  map[string]*models.Author
	byHandle map[string]*models.Author
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byEmail:  make(map[string]*models.Author),
		byHandle: make(map[string]*models.Author),
	}
}

// Load reads a YAML authors file. A missing path yields an empty registry.
func Load(path string) (*Registry, error) {
	r := NewRegistry()
	if path == "" {
		return r, nil
	}

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read authors file %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse authors file %s: %w", path, err)
	}

	for i, a := range f.Authors {
		if a == nil || (a.Handle == "" && len(a.Emails) == 0) {
			return nil, fmt.Errorf("authors file %s: entry %d needs a github handle or an email", path, i)
		}
		r.Add(a)
	}
	return r, nil
}

// Save writes the registry as YAML
func (r *Registry) Save(path string) error {
	data, err := yaml.Marshal(File{Authors: r.All()})
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create authors directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write authors file %s: %w", path, err)
	}
	return nil
}

// Find returns the author owning email
func (r *Registry) Find(email string) (*models.Author, bool) {
	a, ok := r.byEmail[normalize(email)]
	return a, ok
}

// FindByHandle returns the author with the tracker handle
func (r *Registry) FindByHandle(handle string) (*models.Author, bool) {
	a, ok := r.byHandle[normalize(handle)]
	return a, ok
}

// Add registers a, merging it into an existing author with the same handle
// or email. It returns the registered instance.
func (r *Registry) Add(a *models.Author) *models.Author {
	existing := r.lookup(a)
	if existing == nil {
		emails := a.Emails
		a.Emails = nil
		for _, e := range emails {
			a.AddEmail(e)
		}
		r.authors = append(r.authors, a)
		existing = a
	} else {
		for _, e := range a.Emails {
			existing.AddEmail(e)
		}
		if existing.Handle == "" {
			existing.Handle = a.Handle
		}
		if existing.Name == "" {
			existing.Name = a.Name
		}
		existing.Committer = existing.Committer || a.Committer
	}
	r.index(existing)
	return existing
}

// SetHandle records the tracker handle of an author. If another author
// already owns the handle, the two are merged and the owner is returned.
func (r *Registry) SetHandle(a *models.Author, handle string) *models.Author {
	if handle == "" || strings.EqualFold(a.Handle, handle) {
		return a
	}
	if owner, ok := r.FindByHandle(handle); ok && owner != a {
		for _, e := range a.Emails {
			owner.AddEmail(e)
		}
		r.remove(a)
		r.index(owner)
		return owner
	}
	a.Handle = handle
	r.index(a)
	return a
}

// All returns every author ordered by key
func (r *Registry) All() []*models.Author {
	out := make([]*models.Author, len(r.authors))
	copy(out, r.authors)
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

func (r *Registry) Len() int {
	return len(r.authors)
}

func (r *Registry) lookup(a *models.Author) *models.Author {
	if a.Handle != "" {
		if found, ok := r.FindByHandle(a.Handle); ok {
			return found
		}
	}
	for _, e := range a.Emails {
		if found, ok := r.Find(e); ok {
			return found
		}
	}
	return nil
}

func (r *Registry) index(a *models.Author) {
	for _, e := range a.Emails {
		r.byEmail[normalize(e)] = a
	}
	if a.Handle != "" {
		r.byHandle[normalize(a.Handle)] = a
	}
}

func (r *Registry) remove(a *models.Author) {
	for i, existing := range r.authors {
		if existing == a {
			r.authors = append(r.authors[:i], r.authors[i+1:]...)
			return
		}
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
