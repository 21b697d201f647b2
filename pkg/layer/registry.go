// Package layer rewrites object graphs built against the newest schema into
// the shapes an older client layer understands.
package layer

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/ZentaChain/zentalk-gateway/pkg/tl"
)

// ErrNoRule means a type was requested at a layer older than any rule
// registered for it.
var ErrNoRule = errors.New("layer: no downgrade rule for layer")

// Rule converts an object to an older shape. It must return a new object
// and leave its argument untouched. A nil Rule marks a layer at which the
// type needs no conversion.
type Rule func(tl.Object) tl.Object

type typeRules struct {
	layers []int32
	rules  []Rule
}

// Registry holds downgrade rules per constructor. A rule registered at
// layer X applies to every layer from X up to the next registered layer.
// Register is not safe for concurrent use; Downgrade is.
type Registry struct {
	current int32
	types   map[uint32]*typeRules
	fields  sync.Map // reflect.Type -> []int
}

func NewRegistry(current int32) *Registry {
	return &Registry{current: current, types: make(map[uint32]*typeRules)}
}

// Current returns the layer objects are produced in.
func (r *Registry) Current() int32 { return r.current }

// Register adds rule for constructor id at layer.
func (r *Registry) Register(id uint32, layer int32, rule Rule) {
	tr, ok := r.types[id]
	if !ok {
		tr = &typeRules{}
		r.types[id] = tr
	}
	i := sort.Search(len(tr.layers), func(i int) bool { return tr.layers[i] >= layer })
	if i < len(tr.layers) && tr.layers[i] == layer {
		tr.rules[i] = rule
		return
	}
	tr.layers = append(tr.layers, 0)
	tr.rules = append(tr.rules, nil)
	copy(tr.layers[i+1:], tr.layers[i:])
	copy(tr.rules[i+1:], tr.rules[i:])
	tr.layers[i] = layer
	tr.rules[i] = rule
}

// Layers returns the layers registered for id in ascending order.
func (r *Registry) Layers(id uint32) []int32 {
	tr, ok := r.types[id]
	if !ok {
		return nil
	}
	return append([]int32(nil), tr.layers...)
}

func (r *Registry) resolve(id uint32, layer int32) (Rule, error) {
	tr, ok := r.types[id]
	if !ok {
		return nil, nil
	}
	i := sort.Search(len(tr.layers), func(i int) bool { return tr.layers[i] > layer }) - 1
	if i < 0 {
		return nil, fmt.Errorf("%w: 0x%08x at %d", ErrNoRule, id, layer)
	}
	return tr.rules[i], nil
}

// Downgrade returns o rewritten for layer. Nested objects and object
// vectors are rewritten recursively. The input graph is not modified.
func (r *Registry) Downgrade(o tl.Object, layer int32) (tl.Object, error) {
	if o == nil || layer >= r.current {
		return o, nil
	}
	return r.walk(o, layer)
}

func (r *Registry) walk(o tl.Object, layer int32) (tl.Object, error) {
	if o == nil {
		return nil, nil
	}
	rule, err := r.resolve(o.CRC(), layer)
	if err != nil {
		return nil, err
	}
	if rule != nil {
		o = rule(o)
	}
	return r.walkFields(o, layer)
}

var (
	objectType      = reflect.TypeOf((*tl.Object)(nil)).Elem()
	objectSliceType = reflect.TypeOf([]tl.Object(nil))
)

// objectFields lists the indices of fields holding objects or object
// vectors.
func (r *Registry) objectFields(t reflect.Type) []int {
	if cached, ok := r.fields.Load(t); ok {
		return cached.([]int)
	}
	var idx []int
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if f.Type == objectType || f.Type == objectSliceType {
			idx = append(idx, i)
		}
	}
	r.fields.Store(t, idx)
	return idx
}

func (r *Registry) walkFields(o tl.Object, layer int32) (tl.Object, error) {
	v := reflect.ValueOf(o)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return o, nil
	}
	fields := r.objectFields(v.Elem().Type())
	if len(fields) == 0 {
		return o, nil
	}

	cp := reflect.New(v.Elem().Type())
	cp.Elem().Set(v.Elem())
	s := cp.Elem()
	for _, i := range fields {
		f := s.Field(i)
		if f.IsNil() {
			continue
		}
		if f.Type() == objectType {
			d, err := r.walk(f.Interface().(tl.Object), layer)
			if err != nil {
				return nil, err
			}
			setObject(f, d)
			continue
		}
		items := reflect.MakeSlice(objectSliceType, f.Len(), f.Len())
		for j := 0; j < f.Len(); j++ {
			elem := f.Index(j)
			if elem.IsNil() {
				continue
			}
			d, err := r.walk(elem.Interface().(tl.Object), layer)
			if err != nil {
				return nil, err
			}
			setObject(items.Index(j), d)
		}
		f.Set(items)
	}
	return cp.Interface().(tl.Object), nil
}

func setObject(dst reflect.Value, o tl.Object) {
	if o == nil {
		dst.Set(reflect.Zero(objectType))
		return
	}
	dst.Set(reflect.ValueOf(o))
}
