package manifest

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

const routingKey = "routing"

// Routing field suffixes used when a routing table is flattened.
const (
	SetupSuffix = "_Setup"
	RunSuffix   = "_Run"
	NoteSuffix  = "_Note"
)

// RoutingOp holds the setup and run hours for one work center.
type RoutingOp struct {
	Setup float64 `json:"setup"`
	Run   float64 `json:"run"`
}

// FieldSet is the content of one tier: scalar fields plus a routing table
// keyed by work center.
type FieldSet struct {
	Scalars map[string]Value
	Routing map[string]RoutingOp
}

// NewFieldSet returns an empty, tracked field set.
func NewFieldSet() *FieldSet {
	return &FieldSet{Scalars: map[string]Value{}, Routing: map[string]RoutingOp{}}
}

// Len returns the number of flattened fields.
func (f *FieldSet) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Scalars) + 2*len(f.Routing)
}

// Set stores a scalar field.
func (f *FieldSet) Set(name string, value Value) {
	if f.Scalars == nil {
		f.Scalars = map[string]Value{}
	}
	f.Scalars[name] = value
}

// SetRouting stores the routing hours of a work center.
func (f *FieldSet) SetRouting(workCenter string, op RoutingOp) {
	if f.Routing == nil {
		f.Routing = map[string]RoutingOp{}
	}
	f.Routing[workCenter] = op
}

// Lookup returns a field by its flattened name.
func (f *FieldSet) Lookup(name string) (Value, bool) {
	if f == nil {
		return Value{}, false
	}
	if value, ok := f.Scalars[name]; ok {
		return value, true
	}
	if wc, ok := strings.CutSuffix(name, SetupSuffix); ok {
		if op, found := f.Routing[wc]; found {
			return Number(op.Setup), true
		}
	}
	if wc, ok := strings.CutSuffix(name, RunSuffix); ok {
		if op, found := f.Routing[wc]; found {
			return Number(op.Run), true
		}
	}
	return Value{}, false
}

// Flatten returns every field keyed by its comparison name; routing entries
// become <WC>_Setup and <WC>_Run.
func (f *FieldSet) Flatten() map[string]Value {
	out := make(map[string]Value, f.Len())
	if f == nil {
		return out
	}
	for name, value := range f.Scalars {
		out[name] = value
	}
	for wc, op := range f.Routing {
		out[wc+SetupSuffix] = Number(op.Setup)
		out[wc+RunSuffix] = Number(op.Run)
	}
	return out
}

// Names returns the sorted flattened field names.
func (f *FieldSet) Names() []string {
	flat := f.Flatten()
	names := make([]string, 0, len(flat))
	for name := range flat {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clone returns a deep copy. A nil receiver clones to nil.
func (f *FieldSet) Clone() *FieldSet {
	if f == nil {
		return nil
	}
	out := NewFieldSet()
	for name, value := range f.Scalars {
		out.Scalars[name] = value
	}
	for wc, op := range f.Routing {
		out.Routing[wc] = op
	}
	return out
}

func (f FieldSet) MarshalJSON() ([]byte, error) {
	obj := make(map[string]any, len(f.Scalars)+1)
	for name, value := range f.Scalars {
		obj[name] = value
	}
	if len(f.Routing) > 0 {
		obj[routingKey] = f.Routing
	}
	return json.Marshal(obj)
}

func (f *FieldSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if raw == nil {
		return fmt.Errorf("field set must be an object")
	}
	*f = *NewFieldSet()
	for name, msg := range raw {
		if name == routingKey {
			if err := json.Unmarshal(msg, &f.Routing); err != nil {
				return fmt.Errorf("routing: %w", err)
			}
			if f.Routing == nil {
				f.Routing = map[string]RoutingOp{}
			}
			continue
		}
		value, ok := ParseValue(msg)
		if !ok {
			return fmt.Errorf("field %q: expected number, string or boolean", name)
		}
		f.Scalars[name] = value
	}
	return nil
}
