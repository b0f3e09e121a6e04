package query

// Op is a comparison operator accepted in a filter criterion.
type Op string

const (
	Eq  Op = "eq"
	Gt  Op = "gt"
	Gte Op = "gte"
	Lt  Op = "lt"
	Lte Op = "lte"
)

// Kind is the value type of a field; filter values are converted to it.
type Kind int

const (
	String Kind = iota
	Number
	Bool
	ID
)

// Field declares what a query may do with a document field.
type Field struct {
	Name        string // document key
	Column      string // relational column
	Kind        Kind
	Ops         []Op // empty when the field cannot be filtered on
	Sortable    bool
	Projectable bool
}

func (f Field) allows(op Op) bool {
	for _, o := range f.Ops {
		if o == op {
			return true
		}
	}
	return false
}

// Schema is the whitelist of fields a query may reference.
type Schema struct {
	fields map[string]Field
	order  []string
}

func NewSchema(fields ...Field) *Schema {
	s := &Schema{fields: make(map[string]Field, len(fields))}
	for _, f := range fields {
		if f.Column == "" {
			f.Column = f.Name
		}
		s.fields[f.Name] = f
		s.order = append(s.order, f.Name)
	}
	return s
}

// Field looks up a declared field by document key.
func (s *Schema) Field(name string) (Field, bool) {
	f, ok := s.fields[name]
	return f, ok
}

// Projectable returns the projectable fields in declaration order.
func (s *Schema) Projectable() []Field {
	var out []Field
	for _, name := range s.order {
		if f := s.fields[name]; f.Projectable {
			out = append(out, f)
		}
	}
	return out
}

// Hidden returns the fields never returned to clients.
func (s *Schema) Hidden() []Field {
	var out []Field
	for _, name := range s.order {
		if f := s.fields[name]; !f.Projectable {
			out = append(out, f)
		}
	}
	return out
}

// ListingSchema declares the listing fields available to search requests.
var ListingSchema = NewSchema(
	Field{Name: "_id", Column: "id", Kind: ID, Ops: []Op{Eq}, Sortable: true, Projectable: true},
	Field{Name: "product_name", Kind: String, Ops: []Op{Eq}, Sortable: true, Projectable: true},
	Field{Name: "product_description", Kind: String, Projectable: true},
	Field{Name: "product_price", Kind: Number, Ops: []Op{Eq, Gt, Gte, Lt, Lte}, Sortable: true, Projectable: true},
	Field{Name: "product_details", Projectable: true},
	Field{Name: "product_image", Projectable: true},
	Field{Name: "owner", Kind: ID, Ops: []Op{Eq}, Projectable: true},
	Field{Name: "sold", Kind: Bool, Ops: []Op{Eq}, Projectable: true},
	Field{Name: "sold_to", Kind: ID, Projectable: true},
	Field{Name: "__v", Column: "version", Kind: Number},
)
