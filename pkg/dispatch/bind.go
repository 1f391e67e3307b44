package dispatch

import (
	"errors"
	"fmt"

	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/value"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// ErrMissingParameter is reported when a required parameter is absent.
var ErrMissingParameter = errors.New("missing required parameter")

// bind maps the request's values onto schema. Named values win; positional
// values are only used when no named value is present. Unknown names and
// surplus positions are ignored.
func bind(schema route.Schema, req *wire.Request, segments []string) (route.Params, error) {
	params := make(route.Params, len(schema))
	named := req.HasNamed()

	for i, p := range schema {
		v, present, err := lookup(p, i, named, req, segments)
		if err != nil {
			return nil, err
		}
		if !present {
			if p.Required {
				return nil, fmt.Errorf("%w: %q", ErrMissingParameter, p.Name)
			}
			v = p.Default
		}
		v = widen(p.Kind, v)
		if err := p.Check(v); err != nil {
			return nil, err
		}
		params[p.Name] = v
	}
	return params, nil
}

func lookup(p route.Parameter, i int, named bool, req *wire.Request, segments []string) (value.Value, bool, error) {
	if named {
		if v, ok := req.Params[p.Name]; ok {
			return v, true, nil
		}
		if s, ok := req.Query[p.Name]; ok {
			v, err := value.Parse(p.Kind, s)
			if err != nil {
				return value.Value{}, false, fmt.Errorf("parameter %q: %w", p.Name, err)
			}
			return v, true, nil
		}
		return value.Value{}, false, nil
	}

	if i < len(req.Positional) {
		return req.Positional[i], true, nil
	}
	if i < len(segments) {
		v, err := value.Parse(p.Kind, segments[i])
		if err != nil {
			return value.Value{}, false, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
		return v, true, nil
	}
	return value.Value{}, false, nil
}

// widen lets integer values bind to float parameters.
func widen(k value.Kind, v value.Value) value.Value {
	if k == value.KindFloat && v.Kind() == value.KindInt {
		f, _ := v.Float()
		return value.Float(f)
	}
	return v
}
