// Package catalog loads tenant catalogs (locations, items and recipes) from
// CUE files and imports them idempotently.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/bakehouse/internal/ledger"
)

//go:embed schema.cue
var schemaSource string

const schemaFile = "schema.cue"

// Catalog is a decoded catalog. Items are ordered by SKU and recipes by name.
type Catalog struct {
	Locations []string
	Items     []ItemSpec
	Recipes   []RecipeSpec
}

// ItemSpec is one item entry keyed by SKU.
type ItemSpec struct {
	SKU           string
	Name          string
	Unit          ledger.Unit
	Category      ledger.Category
	ReorderLevel  ledger.Quantity
	UnitCostCents ledger.Money
	HasCost       bool
}

// RecipeSpec is one recipe entry keyed by name. Product and ingredients are SKUs.
type RecipeSpec struct {
	Name        string
	Product     string
	Yield       ledger.Quantity
	Ingredients []IngredientSpec
	Pos         token.Pos
}

// IngredientSpec is one recipe ingredient, ordered by SKU.
type IngredientSpec struct {
	SKU      string
	Quantity ledger.Quantity
}

type rawItem struct {
	Name      string `json:"name"`
	Unit      string `json:"unit"`
	Category  string `json:"category"`
	Reorder   string `json:"reorder"`
	CostCents *int64 `json:"cost_cents"`
}

type rawRecipe struct {
	Product     string            `json:"product"`
	Yield       string            `json:"yield"`
	Ingredients map[string]string `json:"ingredients"`
}

type rawCatalog struct {
	Locations []string             `json:"locations"`
	Items     map[string]rawItem   `json:"items"`
	Recipes   map[string]rawRecipe `json:"recipes"`
}

// SchemaError is a catalog problem with its source position.
type SchemaError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *SchemaError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors collects every problem found in a catalog.
type ValidationErrors []*SchemaError

func (v ValidationErrors) Error() string {
	lines := make([]string, len(v))
	for i, e := range v {
		lines[i] = e.Error()
	}
	return strings.Join(lines, "\n")
}

// Load reads a catalog file, or every .cue file in a directory in name order.
func Load(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("load catalog: %w", err)
	}

	files := []string{path}
	if info.IsDir() {
		files, err = filepath.Glob(filepath.Join(path, "*.cue"))
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		slices.Sort(files)
		if len(files) == 0 {
			return nil, fmt.Errorf("load catalog: no .cue files in %s", path)
		}
	}

	sources := make(map[string][]byte, len(files))
	for _, f := range files {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("load catalog: %w", err)
		}
		sources[f] = b
	}
	return compile(files, sources)
}

// Parse decodes a single catalog source. filename is used in error positions.
func Parse(filename string, src []byte) (*Catalog, error) {
	return compile([]string{filename}, map[string][]byte{filename: src})
}

func compile(order []string, sources map[string][]byte) (*Catalog, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename(schemaFile))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile catalog schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Catalog"))
	for _, name := range order {
		data := ctx.CompileBytes(sources[name], cue.Filename(name))
		if err := data.Err(); err != nil {
			return nil, cueErrors(err)
		}
		v = v.Unify(data)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, cueErrors(err)
	}

	var raw rawCatalog
	if err := v.Decode(&raw); err != nil {
		return nil, cueErrors(err)
	}
	return decode(v, raw)
}

// decode converts the raw document and checks what the schema cannot:
// quantity parsing and recipe references.
func decode(v cue.Value, raw rawCatalog) (*Catalog, error) {
	var errs ValidationErrors
	fail := func(path cue.Path, msg string) {
		errs = append(errs, &SchemaError{Field: path.String(), Message: msg, Pos: v.LookupPath(path).Pos()})
	}

	c := &Catalog{}
	seenLoc := map[string]bool{}
	for i, name := range raw.Locations {
		key := strings.ToLower(ledger.NormalizeName(name))
		if seenLoc[key] {
			fail(cue.MakePath(cue.Str("locations"), cue.Index(i)), fmt.Sprintf("location %q listed twice", key))
			continue
		}
		seenLoc[key] = true
		c.Locations = append(c.Locations, key)
	}

	for _, sku := range sortedKeys(raw.Items) {
		ri := raw.Items[sku]
		reorder, err := ledger.ParseQuantity(ri.Reorder)
		if err != nil {
			fail(cue.MakePath(cue.Str("items"), cue.Str(sku), cue.Str("reorder")), err.Error())
			continue
		}
		it := ItemSpec{
			SKU:          sku,
			Name:         ledger.NormalizeName(ri.Name),
			Unit:         ledger.Unit(ri.Unit),
			Category:     ledger.Category(ri.Category),
			ReorderLevel: reorder,
		}
		if ri.CostCents != nil {
			it.UnitCostCents = ledger.Money(*ri.CostCents)
			it.HasCost = true
		}
		c.Items = append(c.Items, it)
	}

	for _, name := range sortedKeys(raw.Recipes) {
		rr := raw.Recipes[name]
		base := cue.MakePath(cue.Str("recipes"), cue.Str(name))
		yield, err := ledger.ParseQuantity(rr.Yield)
		if err != nil || yield <= 0 {
			fail(cue.MakePath(cue.Str("recipes"), cue.Str(name), cue.Str("yield")), "yield must be a positive quantity")
			continue
		}
		r := RecipeSpec{
			Name:    ledger.NormalizeName(name),
			Product: rr.Product,
			Yield:   yield,
			Pos:     v.LookupPath(base).Pos(),
		}
		for _, sku := range sortedKeys(rr.Ingredients) {
			path := cue.MakePath(cue.Str("recipes"), cue.Str(name), cue.Str("ingredients"), cue.Str(sku))
			qty, err := ledger.ParseQuantity(rr.Ingredients[sku])
			if err != nil || qty <= 0 {
				fail(path, "ingredient quantity must be positive")
				continue
			}
			if sku == rr.Product {
				fail(path, "recipe product cannot be its own ingredient")
				continue
			}
			r.Ingredients = append(r.Ingredients, IngredientSpec{SKU: sku, Quantity: qty})
		}
		if len(rr.Ingredients) == 0 {
			fail(base, "recipe needs at least one ingredient")
		}
		c.Recipes = append(c.Recipes, r)
	}

	if len(errs) > 0 {
		return nil, errs
	}
	return c, nil
}

// cueErrors flattens CUE errors into positioned SchemaErrors. Positions in
// the catalog files are preferred over positions in the embedded schema.
func cueErrors(err error) error {
	list := errors.Errors(err)
	if len(list) == 0 {
		return err
	}
	out := make(ValidationErrors, 0, len(list))
	for _, e := range list {
		format, args := e.Msg()
		se := &SchemaError{
			Field:   strings.Join(e.Path(), "."),
			Message: fmt.Sprintf(format, args...),
		}
		for _, p := range errors.Positions(e) {
			if p.Filename() != schemaFile {
				se.Pos = p
				break
			}
		}
		if se.Field == "" {
			se.Field = "catalog"
		}
		out = append(out, se)
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
