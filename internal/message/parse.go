package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Frame keys. Matching is exact; "Source" or "HUE" are not these keys.
const (
	keySource      = "source"
	keyData        = "data"
	keyHue         = "hue"
	keyProgramName = "programName"
	keyPixels      = "pixels"
	keyEvent       = "event"
)

// Parse decodes one producer frame.
//
// Returns:
//   - Message: the typed variant, or Unknown for an unrecognised source
//   - error: a *ParseError wrapping ErrMalformed, ErrMissingSource or
//     ErrSchemaMismatch
func Parse(raw []byte) (Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil, &ParseError{Kind: ErrMalformed, Reason: "expected a JSON object"}
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, &ParseError{Kind: ErrMalformed, Reason: err.Error()}
	}

	rawSource := env[keySource]
	if isNull(rawSource) {
		return nil, &ParseError{Kind: ErrMissingSource}
	}
	var source string
	if err := json.Unmarshal(rawSource, &source); err != nil {
		return nil, &ParseError{Kind: ErrMissingSource, Reason: "source is not a string"}
	}
	if source == "" {
		return nil, &ParseError{Kind: ErrMissingSource, Reason: "source is empty"}
	}

	data := env[keyData]
	if isNull(data) {
		data = nil
	}

	switch source {
	case SourceColorPicker:
		return parseColorPicker(data)
	case SourceProgramName:
		return parseProgramName(data)
	case SourceDragonStaff:
		return parseDragonStaff(data)
	case SourceCroquet:
		return parseCroquet(data)
	case SourceDiscover:
		return Discover{}, nil
	case SourceStart:
		return Start{}, nil
	case SourceStop:
		return Stop{}, nil
	}

	if ev := Event(source); ev.Valid() {
		return Croquet{Event: ev, Legacy: true}, nil
	}
	return Unknown{Tag: source, Data: data}, nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// payload is a decoded data object keyed by exact field name.
type payload struct {
	source string
	fields map[string]json.RawMessage
}

// decodeData splits data into its fields, requiring data to be an object.
func decodeData(source string, data json.RawMessage) (payload, error) {
	if data == nil {
		return payload{}, schemaError(source, "data is required")
	}
	if t := bytes.TrimSpace(data); len(t) == 0 || t[0] != '{' {
		return payload{}, schemaError(source, "data must be an object")
	}
	p := payload{source: source}
	if err := json.Unmarshal(data, &p.fields); err != nil {
		return payload{}, schemaError(source, "%v", err)
	}
	return p, nil
}

// require decodes the named field into v. A missing or null field is a
// schema mismatch.
func (p payload) require(name string, v any) error {
	raw, ok := p.fields[name]
	if !ok || isNull(raw) {
		return schemaError(p.source, "%s is required", name)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return schemaError(p.source, "%s: %v", name, err)
	}
	return nil
}

func parseColorPicker(data json.RawMessage) (Message, error) {
	p, err := decodeData(SourceColorPicker, data)
	if err != nil {
		return nil, err
	}
	var hue float64
	if err := p.require(keyHue, &hue); err != nil {
		return nil, err
	}
	if hue < 0 || hue > 1 {
		return nil, schemaError(SourceColorPicker, "hue %v outside [0,1]", hue)
	}
	return ColorPicker{Hue: hue}, nil
}

func parseProgramName(data json.RawMessage) (Message, error) {
	p, err := decodeData(SourceProgramName, data)
	if err != nil {
		return nil, err
	}
	var name string
	if err := p.require(keyProgramName, &name); err != nil {
		return nil, err
	}
	if name == "" {
		return nil, schemaError(SourceProgramName, "programName is required")
	}
	return ProgramName{Name: name}, nil
}

func parseDragonStaff(data json.RawMessage) (Message, error) {
	p, err := decodeData(SourceDragonStaff, data)
	if err != nil {
		return nil, err
	}
	var rawPixels []json.RawMessage
	if err := p.require(keyPixels, &rawPixels); err != nil {
		return nil, err
	}

	pixels := make([]Pixel, 0, len(rawPixels))
	for i, raw := range rawPixels {
		var triple []float64
		if err := json.Unmarshal(raw, &triple); err != nil {
			return nil, schemaError(SourceDragonStaff, "pixel %d: %v", i, err)
		}
		if len(triple) != len(Pixel{}) {
			return nil, schemaError(SourceDragonStaff, "pixel %d has %d values, want 3", i, len(triple))
		}
		pixels = append(pixels, Pixel{triple[0], triple[1], triple[2]})
	}
	return DragonStaff{Pixels: pixels}, nil
}

func parseCroquet(data json.RawMessage) (Message, error) {
	p, err := decodeData(SourceCroquet, data)
	if err != nil {
		return nil, err
	}
	var name string
	if err := p.require(keyEvent, &name); err != nil {
		return nil, err
	}
	ev := Event(name)
	if !ev.Valid() {
		return nil, schemaError(SourceCroquet, "unknown event %q", name)
	}
	return Croquet{Event: ev}, nil
}

// Encode renders m back into its wire form. Unknown frames keep their raw data.
func Encode(m Message) ([]byte, error) {
	out := struct {
		Source string `json:"source"`
		Data   any    `json:"data,omitempty"`
	}{Source: m.Source()}

	switch v := m.(type) {
	case ColorPicker:
		out.Data = map[string]float64{"hue": v.Hue}
	case ProgramName:
		out.Data = map[string]string{"programName": v.Name}
	case DragonStaff:
		pixels := v.Pixels
		if pixels == nil {
			pixels = []Pixel{}
		}
		out.Data = map[string][]Pixel{"pixels": pixels}
	case Croquet:
		if !v.Legacy {
			out.Data = map[string]Event{"event": v.Event}
		}
	case Unknown:
		if v.Data != nil {
			out.Data = v.Data
		}
	case Discover, Start, Stop:
	default:
		return nil, fmt.Errorf("message: cannot encode %T", m)
	}
	return json.Marshal(out)
}
