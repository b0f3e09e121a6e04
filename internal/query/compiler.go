// Package query compiles untrusted search parameters into a bounded,
// whitelisted query that a document store can execute.
package query

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrInvalidFilter = errors.New("invalid filter")
	ErrOutOfRange    = errors.New("this page does not exist")
)

// Control keys shape the result instead of filtering it.
const (
	KeyPage   = "page"
	KeySort   = "sort"
	KeyLimit  = "limit"
	KeyFields = "fields"
)

const (
	DefaultLimit = 100
	MaxLimit     = 200

	maxValueLength = 256
)

// Criterion is a single field/operator/value constraint.
type Criterion struct {
	Field Field
	Op    Op
	Value any
}

// Order is one sort key.
type Order struct {
	Field Field
	Desc  bool
}

// Projection is the set of fields returned for a matched record.
type Projection struct {
	Fields   []Field
	Explicit bool // chosen by the caller rather than the default
	Hidden   []Field
}

// Includes reports whether the named field is part of the projection.
func (p Projection) Includes(name string) bool {
	for _, f := range p.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Filter keeps only the projected keys of a rendered document.
func (p Projection) Filter(doc map[string]any) map[string]any {
	out := make(map[string]any, len(p.Fields))
	for _, f := range p.Fields {
		if v, ok := doc[f.Name]; ok {
			out[f.Name] = v
		}
	}
	return out
}

// Query is a complete, bounded search specification.
type Query struct {
	Filter     []Criterion
	Sort       []Order
	Projection Projection

	Page          int
	Limit         int
	Skip          int
	PageRequested bool
}

// CheckRange fails with ErrOutOfRange when an explicitly requested page starts
// past the last matching record.
func (q *Query) CheckRange(total int64) error {
	if q.PageRequested && int64(q.Skip) >= total {
		return fmt.Errorf("%w: page %d with limit %d, %d results", ErrOutOfRange, q.Page, q.Limit, total)
	}
	return nil
}

// Options bounds the queries a Compiler produces.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	DefaultSort  string // field name, "-" prefix for descending
}

// Compiler turns raw parameters into a Query against a Schema.
type Compiler struct {
	schema *Schema
	opts   Options
}

// NewCompiler creates a Compiler. Zero options fall back to package defaults
// and ascending price order.
func NewCompiler(schema *Schema, opts Options) *Compiler {
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = DefaultLimit
	}
	if opts.MaxLimit <= 0 {
		opts.MaxLimit = MaxLimit
	}
	if opts.DefaultLimit > opts.MaxLimit {
		opts.DefaultLimit = opts.MaxLimit
	}
	if opts.DefaultSort == "" {
		opts.DefaultSort = "product_price"
	}
	return &Compiler{schema: schema, opts: opts}
}

// Compile validates params and returns a complete Query. Any filter key that
// is not a declared field/operator pair fails with ErrInvalidFilter.
func (c *Compiler) Compile(params map[string]string) (*Query, error) {
	q := &Query{}

	criteria := make(map[string]string, len(params))
	for k, v := range params {
		switch k {
		case KeyPage, KeySort, KeyLimit, KeyFields:
		default:
			criteria[k] = v
		}
	}

	filter, err := c.compileFilter(criteria)
	if err != nil {
		return nil, err
	}
	q.Filter = filter

	sortSpec := params[KeySort]
	if strings.TrimSpace(sortSpec) == "" {
		sortSpec = c.opts.DefaultSort
	}
	if q.Sort, err = c.compileSort(sortSpec); err != nil {
		return nil, err
	}

	if q.Projection, err = c.compileProjection(params[KeyFields]); err != nil {
		return nil, err
	}

	_, q.PageRequested = params[KeyPage]
	q.Page = positiveInt(params[KeyPage], 1)
	q.Limit = positiveInt(params[KeyLimit], c.opts.DefaultLimit)
	if q.Limit > c.opts.MaxLimit {
		q.Limit = c.opts.MaxLimit
	}
	if q.Page > math.MaxInt32/q.Limit {
		q.Page = math.MaxInt32 / q.Limit
	}
	q.Skip = (q.Page - 1) * q.Limit

	return q, nil
}

func (c *Compiler) compileFilter(criteria map[string]string) ([]Criterion, error) {
	keys := make([]string, 0, len(criteria))
	for k := range criteria {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Criterion, 0, len(keys))
	for _, key := range keys {
		name, op, err := splitKey(key)
		if err != nil {
			return nil, err
		}
		field, ok := c.schema.Field(name)
		if !ok || len(field.Ops) == 0 {
			return nil, fmt.Errorf("%w: field %q cannot be filtered on", ErrInvalidFilter, name)
		}
		if !field.allows(op) {
			return nil, fmt.Errorf("%w: operator %q is not allowed on %q", ErrInvalidFilter, op, name)
		}
		value, err := convert(field, criteria[key])
		if err != nil {
			return nil, err
		}
		out = append(out, Criterion{Field: field, Op: op, Value: value})
	}
	return out, nil
}

// splitKey parses "field" or "field[op]".
func splitKey(key string) (string, Op, error) {
	open := strings.IndexByte(key, '[')
	if open < 0 {
		return key, Eq, nil
	}
	if open == 0 || !strings.HasSuffix(key, "]") || open != strings.LastIndexByte(key, '[') {
		return "", "", fmt.Errorf("%w: malformed key %q", ErrInvalidFilter, key)
	}
	return key[:open], Op(key[open+1 : len(key)-1]), nil
}

func convert(field Field, raw string) (any, error) {
	if len(raw) > maxValueLength {
		return nil, fmt.Errorf("%w: value for %q is too long", ErrInvalidFilter, field.Name)
	}
	switch field.Kind {
	case Number:
		n, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return nil, fmt.Errorf("%w: %q expects a number", ErrInvalidFilter, field.Name)
		}
		return n, nil
	case Bool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: %q expects a boolean", ErrInvalidFilter, field.Name)
		}
		return b, nil
	case ID:
		if raw == "" || strings.IndexFunc(raw, notIDRune) >= 0 {
			return nil, fmt.Errorf("%w: %q expects an identifier", ErrInvalidFilter, field.Name)
		}
		return raw, nil
	default:
		return raw, nil
	}
}

func notIDRune(r rune) bool {
	return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '-')
}

func (c *Compiler) compileSort(spec string) ([]Order, error) {
	var out []Order
	seen := make(map[string]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		name := strings.TrimPrefix(part, "-")
		field, ok := c.schema.Field(name)
		if !ok || !field.Sortable {
			return nil, fmt.Errorf("%w: cannot sort on %q", ErrInvalidFilter, name)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: duplicate sort key %q", ErrInvalidFilter, name)
		}
		seen[name] = true
		out = append(out, Order{Field: field, Desc: desc})
	}
	return out, nil
}

func (c *Compiler) compileProjection(spec string) (Projection, error) {
	p := Projection{Hidden: c.schema.Hidden()}
	if strings.TrimSpace(spec) == "" {
		p.Fields = c.schema.Projectable()
		return p, nil
	}

	p.Explicit = true
	if id, ok := c.schema.Field("_id"); ok {
		p.Fields = []Field{id}
	}
	for _, part := range strings.Split(spec, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		field, ok := c.schema.Field(name)
		if !ok || !field.Projectable {
			return Projection{}, fmt.Errorf("%w: unknown field %q", ErrInvalidFilter, name)
		}
		if !p.Includes(name) {
			p.Fields = append(p.Fields, field)
		}
	}
	return p, nil
}

// positiveInt parses a page or limit value; malformed or non-positive input
// degrades to def.
func positiveInt(raw string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 1 {
		return def
	}
	return n
}
