package engine

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/user/n8nops/configs"
)

// PatternSet maps one task type to its trigger phrases.
type PatternSet struct {
	Type           TaskType `yaml:"type"`
	Description    string   `yaml:"description"`
	TriggerPhrases []string `yaml:"trigger_phrases"`
}

type catalogFile struct {
	TaskTypes     []PatternSet `yaml:"task_types"`
	SynonymGroups [][]string   `yaml:"synonym_groups"`
}

// Catalog is the static pattern table the classifier scores against. It is
// immutable after load; adding a task type is a data change in the YAML
// files, not a code change.
type Catalog struct {
	sets     []PatternSet
	synonyms map[string][]string
}

// DefaultCatalog loads the embedded default pattern files.
func DefaultCatalog() (*Catalog, error) {
	return loadCatalogFS(configs.CatalogDefaults, "catalog")
}

// LoadCatalog loads the embedded defaults and merges any *.yaml override
// files found in dir. An override entry for an existing task type replaces
// that type's pattern set; new types are appended in file order.
func LoadCatalog(dir string) (*Catalog, error) {
	cat, err := DefaultCatalog()
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(dir) == "" {
		return cat, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return cat, nil
		}
		return nil, fmt.Errorf("read catalog dir %q: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read catalog file %q: %w", name, err)
		}
		if err := cat.merge(data); err != nil {
			return nil, fmt.Errorf("parse catalog file %q: %w", name, err)
		}
	}
	return cat, nil
}

func loadCatalogFS(fsys fs.FS, root string) (*Catalog, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("read embedded catalog: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)

	cat := &Catalog{synonyms: make(map[string][]string)}
	for _, name := range names {
		data, err := fs.ReadFile(fsys, root+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read embedded catalog file %q: %w", name, err)
		}
		if err := cat.merge(data); err != nil {
			return nil, fmt.Errorf("parse embedded catalog file %q: %w", name, err)
		}
	}
	if len(cat.sets) == 0 {
		return nil, fmt.Errorf("pattern catalog is empty")
	}
	return cat, nil
}

func (c *Catalog) merge(data []byte) error {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return err
	}
	for _, set := range file.TaskTypes {
		set.Type = TaskType(strings.TrimSpace(string(set.Type)))
		if set.Type == "" {
			return fmt.Errorf("pattern set with empty task type")
		}
		if idx := c.indexOf(set.Type); idx >= 0 {
			c.sets[idx] = set
		} else {
			c.sets = append(c.sets, set)
		}
	}
	for _, group := range file.SynonymGroups {
		cleaned := make([]string, 0, len(group))
		for _, word := range group {
			word = strings.ToLower(strings.TrimSpace(word))
			if word != "" {
				cleaned = append(cleaned, word)
			}
		}
		if len(cleaned) < 2 {
			continue
		}
		for _, word := range cleaned {
			c.synonyms[word] = cleaned
		}
	}
	return nil
}

func (c *Catalog) indexOf(t TaskType) int {
	for i, set := range c.sets {
		if set.Type == t {
			return i
		}
	}
	return -1
}

// Sets returns the pattern sets in catalog order. Callers must not mutate
// the returned slices.
func (c *Catalog) Sets() []PatternSet {
	return c.sets
}

// SynonymsFor returns the synonym group containing word, or nil.
func (c *Catalog) SynonymsFor(word string) []string {
	return c.synonyms[strings.ToLower(word)]
}

// Describe returns the description for a task type, if known.
func (c *Catalog) Describe(t TaskType) string {
	if idx := c.indexOf(t); idx >= 0 {
		return c.sets[idx].Description
	}
	return ""
}

// TaskTypes derives the discovery listing from the catalog.
func (c *Catalog) TaskTypes() []TaskTypeInfo {
	out := make([]TaskTypeInfo, 0, len(c.sets))
	for _, set := range c.sets {
		examples := set.TriggerPhrases
		if len(examples) > 3 {
			examples = examples[:3]
		}
		info := TaskTypeInfo{
			Type:           set.Type,
			Description:    set.Description,
			ExamplePhrases: append([]string(nil), examples...),
		}
		out = append(out, info)
	}
	return out
}
