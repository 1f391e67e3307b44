package route

import "github.com/tosca-iot/tosca-go/pkg/value"

// Params holds bound parameter values by name. After binding every schema
// parameter is present.
type Params map[string]value.Value

// Get returns the value of name.
func (p Params) Get(name string) (value.Value, bool) {
	v, ok := p[name]
	return v, ok
}

// Bool returns the boolean named name, or false.
func (p Params) Bool(name string) bool {
	b, _ := p[name].Bool()
	return b
}

// Int returns the integer named name, or 0.
func (p Params) Int(name string) int64 {
	i, _ := p[name].Int()
	return i
}

// Float returns the number named name, or 0. Integers are widened.
func (p Params) Float(name string) float64 {
	f, _ := p[name].Float()
	return f
}

// Text returns the text named name, or "".
func (p Params) Text(name string) string {
	s, _ := p[name].Text()
	return s
}

// Bytes returns the bytes named name, or nil.
func (p Params) Bytes(name string) []byte {
	b, _ := p[name].Bytes()
	return b
}
