package dispatch

import (
	"strings"

	"github.com/tosca-iot/tosca-go/pkg/route"
	"github.com/tosca-iot/tosca-go/pkg/wire"
)

// match finds the route for req. An exact (path, method) hit wins.
// Otherwise trailing path segments are peeled off one at a time and each
// shorter path is looked up exactly; peeled segments become positional
// values, so at most as many as the candidate's schema holds.
//
// It returns the route and the text positional values to bind.
func (e *Engine) match(req *wire.Request) (*route.Route, []string, bool) {
	if r, ok := e.desc.Lookup(req.Path, req.Method); ok {
		return r, req.Segments, true
	}
	if len(req.Positional) > 0 || req.Path == "/" {
		return nil, nil, false
	}

	segs := strings.Split(strings.TrimPrefix(req.Path, "/"), "/")
	limit := min(e.desc.MaxParameters(), len(segs))
	for peel := 1; peel <= limit; peel++ {
		candidate := "/" + strings.Join(segs[:len(segs)-peel], "/")
		r, ok := e.desc.Lookup(candidate, req.Method)
		if !ok || peel+len(req.Segments) > len(r.Schema) {
			continue
		}
		positional := make([]string, 0, peel+len(req.Segments))
		positional = append(positional, segs[len(segs)-peel:]...)
		positional = append(positional, req.Segments...)
		return r, positional, true
	}
	return nil, nil, false
}
