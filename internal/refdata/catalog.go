// Package refdata loads the reference lists that job keys are validated
// against from a YAML catalog and writes them to the store.
package refdata

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/example/metabolic-ninja/api-go/internal/model"
	"github.com/example/metabolic-ninja/api-go/internal/store"
)

// Catalog mirrors the YAML file:
//
//	universal_models:
//	  - id: metanetx_universal_model_bigg
//	models:
//	  - id: iJO1366
//	    name: Escherichia coli str. K-12 substr. MG1655
//	carbon_sources:
//	  - id: EX_glc_lp_e_rp_
//	products:
//	  - id: vanillin
//	    universal_models: [metanetx_universal_model_bigg]
//
// A missing name defaults to the id.
type Catalog struct {
	UniversalModels []model.ReferenceItem `yaml:"universal_models"`
	Models          []model.ReferenceItem `yaml:"models"`
	CarbonSources   []model.ReferenceItem `yaml:"carbon_sources"`
	Products        []model.ReferenceItem `yaml:"products"`
}

func Load(r io.Reader) (*Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	for _, kind := range model.ReferenceKinds {
		items := c.items(kind)
		for i := range *items {
			if (*items)[i].Name == "" {
				(*items)[i].Name = (*items)[i].ID
			}
		}
	}
	return &c, nil
}

func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

func (c *Catalog) items(kind model.ReferenceKind) *[]model.ReferenceItem {
	switch kind {
	case model.KindUniversalModel:
		return &c.UniversalModels
	case model.KindModel:
		return &c.Models
	case model.KindCarbonSource:
		return &c.CarbonSources
	case model.KindProduct:
		return &c.Products
	}
	panic(fmt.Sprintf("unknown reference kind %q", kind))
}

// Items returns the entries of one reference list.
func (c *Catalog) Items(kind model.ReferenceKind) []model.ReferenceItem {
	return *c.items(kind)
}

// Validate reports every problem of the catalog at once.
func (c *Catalog) Validate() error {
	var errs error
	for _, kind := range model.ReferenceKinds {
		seen := make(map[string]bool)
		for i, item := range c.Items(kind) {
			if item.ID == "" {
				errs = multierr.Append(errs, fmt.Errorf("%s #%d: missing id", kind, i+1))
				continue
			}
			if seen[item.ID] {
				errs = multierr.Append(errs, fmt.Errorf("%s %q: duplicate id", kind, item.ID))
			}
			seen[item.ID] = true
			if kind != model.KindProduct && len(item.UniversalModels) > 0 {
				errs = multierr.Append(errs, fmt.Errorf("%s %q: only products list universal models", kind, item.ID))
			}
		}
	}

	universal := make([]string, 0, len(c.UniversalModels))
	for _, u := range c.UniversalModels {
		universal = append(universal, u.ID)
	}
	for _, p := range c.Products {
		if len(p.UniversalModels) == 0 {
			errs = multierr.Append(errs, fmt.Errorf("product %q: no universal models", p.ID))
		}
		for _, u := range p.UniversalModels {
			if !slices.Contains(universal, u) {
				errs = multierr.Append(errs, fmt.Errorf("product %q: unknown universal model %q", p.ID, u))
			}
		}
	}
	return errs
}

// Apply validates the catalog and upserts every list into refs.
func (c *Catalog) Apply(ctx context.Context, refs store.References) error {
	if err := c.Validate(); err != nil {
		return err
	}
	for _, kind := range model.ReferenceKinds {
		if err := refs.UpsertReferences(ctx, kind, c.Items(kind)); err != nil {
			return fmt.Errorf("upsert %s list: %w", kind, err)
		}
	}
	return nil
}

// Seed loads the catalog at path and applies it to refs.
func Seed(ctx context.Context, path string, refs store.References) (*Catalog, error) {
	c, err := LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	if err := c.Apply(ctx, refs); err != nil {
		return nil, err
	}
	return c, nil
}
