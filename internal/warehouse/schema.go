package warehouse

// FieldType is a warehouse column type. Only STRING is used by the loader
type FieldType string

const (
	String FieldType = "STRING"
)

// Field is one declared destination column
type Field struct {
	Name string
	Type FieldType
}

// Schema is the ordered list of destination columns
type Schema []Field

// StringSchema declares every name as a STRING column, in order
func StringSchema(names ...string) Schema {
	s := make(Schema, len(names))
	for i, n := range names {
		s[i] = Field{Name: n, Type: String}
	}
	return s
}

// Names returns the column names in declared order
func (s Schema) Names() []string {
	names := make([]string, len(s))
	for i, f := range s {
		names[i] = f.Name
	}
	return names
}

// Has reports whether name is declared
func (s Schema) Has(name string) bool {
	for _, f := range s {
		if f.Name == name {
			return true
		}
	}
	return false
}
