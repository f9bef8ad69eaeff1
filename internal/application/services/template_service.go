package services

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/observability/logging"
	"github.com/pagecanvas/pagecanvas-go/internal/infrastructure/persistence/kv"
)

const (
	templateIndexKey  = "templates"
	templateKeyPrefix = "template:"
)

var templateNamePattern = regexp.MustCompile(`^[a-zA-Z0-9 _-]{1,64}$`)

// TemplateMeta is the index entry stored under the "templates" key.
type TemplateMeta struct {
	Name      string `json:"name"`
	UpdatedAt string `json:"updatedAt"`
}

// TemplateService persists serialized page trees under named keys in the
// key-value store and maintains the template index.
type TemplateService struct {
	store  *kv.Store
	logger *logging.ChanneledLogger
}

func NewTemplateService(store *kv.Store, logger *logging.ChanneledLogger) *TemplateService {
	return &TemplateService{store: store, logger: logger}
}

// Save stores a serialized tree under the given name, creating or replacing
// it, and updates the index.
func (s *TemplateService) Save(name string, tree []byte) error {
	if !templateNamePattern.MatchString(name) {
		return fmt.Errorf("invalid template name %q", name)
	}
	if len(tree) == 0 {
		return fmt.Errorf("template %s: empty tree", name)
	}
	if !json.Valid(tree) {
		return fmt.Errorf("template %s: tree is not valid JSON", name)
	}

	if err := s.store.Set(templateKeyPrefix+name, string(tree)); err != nil {
		return fmt.Errorf("failed to save template %s: %w", name, err)
	}
	if err := s.updateIndex(name, false); err != nil {
		return err
	}

	s.logger.Builder().Info("Template saved", "name", name, "bytes", len(tree))
	return nil
}

// Load returns the serialized tree stored under name.
func (s *TemplateService) Load(name string) ([]byte, error) {
	value, ok, err := s.store.Get(templateKeyPrefix + name)
	if err != nil {
		return nil, fmt.Errorf("failed to load template %s: %w", name, err)
	}
	if !ok {
		return nil, fmt.Errorf("template %s not found", name)
	}
	return []byte(value), nil
}

// List returns the template index sorted by name.
func (s *TemplateService) List() ([]TemplateMeta, error) {
	metas, err := s.readIndex()
	if err != nil {
		return nil, err
	}
	sort.Slice(metas, func(i, j int) bool { return metas[i].Name < metas[j].Name })
	return metas, nil
}

// Delete removes a template and its index entry.
func (s *TemplateService) Delete(name string) error {
	if _, err := s.Load(name); err != nil {
		return err
	}
	if err := s.store.Delete(templateKeyPrefix + name); err != nil {
		return fmt.Errorf("failed to delete template %s: %w", name, err)
	}
	if err := s.updateIndex(name, true); err != nil {
		return err
	}
	s.logger.Builder().Info("Template deleted", "name", name)
	return nil
}

// Export returns the template content along with the download filename
// (<name>.json) used by the HTTP layer.
func (s *TemplateService) Export(name string) (filename string, content []byte, err error) {
	content, err = s.Load(name)
	if err != nil {
		return "", nil, err
	}
	return name + ".json", content, nil
}

func (s *TemplateService) readIndex() ([]TemplateMeta, error) {
	value, ok, err := s.store.Get(templateIndexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read template index: %w", err)
	}
	if !ok || value == "" {
		return []TemplateMeta{}, nil
	}
	var metas []TemplateMeta
	if err := json.Unmarshal([]byte(value), &metas); err != nil {
		// A corrupt index is rebuilt from the stored keys rather than
		// blocking every template operation.
		s.logger.Builder().Warn("Template index corrupt, rebuilding", "error", err)
		return s.rebuildIndex()
	}
	return metas, nil
}

func (s *TemplateService) rebuildIndex() ([]TemplateMeta, error) {
	keys, err := s.store.Keys(templateKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to rebuild template index: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	metas := make([]TemplateMeta, 0, len(keys))
	for _, key := range keys {
		metas = append(metas, TemplateMeta{Name: key[len(templateKeyPrefix):], UpdatedAt: now})
	}
	return metas, nil
}

func (s *TemplateService) updateIndex(name string, removed bool) error {
	metas, err := s.readIndex()
	if err != nil {
		return err
	}

	out := metas[:0]
	for _, meta := range metas {
		if meta.Name != name {
			out = append(out, meta)
		}
	}
	if !removed {
		out = append(out, TemplateMeta{Name: name, UpdatedAt: time.Now().UTC().Format(time.RFC3339)})
	}

	encoded, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode template index: %w", err)
	}
	if err := s.store.Set(templateIndexKey, string(encoded)); err != nil {
		return fmt.Errorf("failed to write template index: %w", err)
	}
	return nil
}
