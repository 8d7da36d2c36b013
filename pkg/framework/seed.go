package framework

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// SeedFile is the YAML layout of a framework definition. Categories and
// subcategories are nested under their parents, so the denormalized
// function id of each subcategory is derived rather than typed by hand.
type SeedFile struct {
	Functions []SeedFunction `yaml:"functions"`
}

// SeedFunction is a function with its categories.
type SeedFunction struct {
	ID         int64          `yaml:"id"`
	Code       string         `yaml:"code"`
	Name       string         `yaml:"name"`
	Categories []SeedCategory `yaml:"categories"`
}

// SeedCategory is a category with its subcategories.
type SeedCategory struct {
	ID            int64             `yaml:"id"`
	Code          string            `yaml:"code"`
	Name          string            `yaml:"name"`
	Subcategories []SeedSubcategory `yaml:"subcategories"`
}

// SeedSubcategory is a leaf control point.
type SeedSubcategory struct {
	ID          int64  `yaml:"id"`
	Code        string `yaml:"code"`
	Description string `yaml:"description"`
}

// ParseSeed decodes and validates a framework definition.
func ParseSeed(r io.Reader) (*SeedFile, error) {
	var seed SeedFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&seed); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("framework seed is empty")
		}
		return nil, fmt.Errorf("decode framework seed: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// LoadSeedFile reads a framework definition from disk.
func LoadSeedFile(path string) (*SeedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open framework seed: %w", err)
	}
	defer f.Close()
	return ParseSeed(f)
}

func (s *SeedFile) validate() error {
	fnIDs := map[int64]bool{}
	catIDs := map[int64]bool{}
	subIDs := map[int64]bool{}

	for _, fn := range s.Functions {
		if fn.ID <= 0 || fn.Code == "" {
			return fmt.Errorf("function %q: id must be positive and code non-empty", fn.Code)
		}
		if fnIDs[fn.ID] {
			return fmt.Errorf("duplicate function id %d", fn.ID)
		}
		fnIDs[fn.ID] = true

		for _, cat := range fn.Categories {
			if cat.ID <= 0 || cat.Code == "" {
				return fmt.Errorf("category %q in function %s: id must be positive and code non-empty", cat.Code, fn.Code)
			}
			if catIDs[cat.ID] {
				return fmt.Errorf("duplicate category id %d", cat.ID)
			}
			catIDs[cat.ID] = true

			for _, sub := range cat.Subcategories {
				if sub.ID <= 0 || sub.Code == "" {
					return fmt.Errorf("subcategory %q in %s.%s: id must be positive and code non-empty", sub.Code, fn.Code, cat.Code)
				}
				if subIDs[sub.ID] {
					return fmt.Errorf("duplicate subcategory id %d", sub.ID)
				}
				subIDs[sub.ID] = true
			}
		}
	}
	return nil
}

// Flatten turns the nested definition into table rows.
func (s *SeedFile) Flatten() ([]Function, []Category, []Subcategory) {
	var (
		fns  []Function
		cats []Category
		subs []Subcategory
	)
	for _, fn := range s.Functions {
		fns = append(fns, Function{ID: fn.ID, Code: fn.Code, Name: fn.Name})
		for _, cat := range fn.Categories {
			cats = append(cats, Category{ID: cat.ID, Code: cat.Code, Name: cat.Name, FunctionID: fn.ID})
			for _, sub := range cat.Subcategories {
				subs = append(subs, Subcategory{
					ID:          sub.ID,
					Code:        sub.Code,
					Description: sub.Description,
					CategoryID:  cat.ID,
					FunctionID:  fn.ID,
				})
			}
		}
	}
	return fns, cats, subs
}

// Seed upserts every row of the definition.
func (s *Store) Seed(ctx context.Context, seed *SeedFile) error {
	fns, cats, subs := seed.Flatten()
	return s.UpsertHierarchy(ctx, fns, cats, subs)
}
