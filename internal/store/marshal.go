package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/aircurve/internal/ir"
)

// marshalObject converts an IRObject to canonical JSON TEXT for storage.
// A nil object is stored as "{}".
func marshalObject(what string, obj ir.IRObject) (string, error) {
	if obj == nil {
		return "{}", nil
	}
	data, err := ir.MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", what, err)
	}
	return string(data), nil
}

// unmarshalObject parses canonical JSON TEXT back into an IRObject.
// Numbers keep their kind: integral values come back as IRInt, so callers
// read floats through IRObject.GetFloat.
func unmarshalObject(what, data string) (ir.IRObject, error) {
	if data == "" || data == "{}" {
		return ir.IRObject{}, nil
	}
	var obj ir.IRObject
	if err := json.Unmarshal([]byte(data), &obj); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", what, err)
	}
	return obj, nil
}

// marshalSpec stores a machine definition as plain JSON. encoding/json writes
// the shortest float representation that round-trips, which is all replay
// needs to rebuild a bit-identical strategy.
func marshalSpec(spec ir.MachineSpec) (string, error) {
	data, err := json.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("marshal machine spec: %w", err)
	}
	return string(data), nil
}

func unmarshalSpec(data string) (ir.MachineSpec, error) {
	var spec ir.MachineSpec
	if err := json.Unmarshal([]byte(data), &spec); err != nil {
		return ir.MachineSpec{}, fmt.Errorf("unmarshal machine spec: %w", err)
	}
	return spec, nil
}
