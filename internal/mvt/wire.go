package mvt

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers fixed by the Mapbox Vector Tile wire format.
const (
	fieldTileLayers = protowire.Number(3)

	fieldLayerName    = protowire.Number(1)
	fieldLayerFeature = protowire.Number(2)
	fieldLayerKeys    = protowire.Number(3)
	fieldLayerValues  = protowire.Number(4)
	fieldLayerExtent  = protowire.Number(5)
	fieldLayerVersion = protowire.Number(15)

	fieldFeatureID       = protowire.Number(1)
	fieldFeatureTags     = protowire.Number(2)
	fieldFeatureType     = protowire.Number(3)
	fieldFeatureGeometry = protowire.Number(4)

	fieldValueString = protowire.Number(1)
	fieldValueFloat  = protowire.Number(2)
	fieldValueDouble = protowire.Number(3)
	fieldValueInt    = protowire.Number(4)
	fieldValueUint   = protowire.Number(5)
	fieldValueSint   = protowire.Number(6)
	fieldValueBool   = protowire.Number(7)

	defaultExtent = 4096
)

// unmarshalTile parses the Tile message: repeated Layer layers = 3.
func unmarshalTile(b []byte) (Tile, error) {
	var t Tile
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Tile{}, fmt.Errorf("tile: %w", protowire.ParseError(n))
		}
		b = b[n:]

		if num == fieldTileLayers && typ == protowire.BytesType {
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Tile{}, fmt.Errorf("tile: layer field: %w", protowire.ParseError(m))
			}
			b = b[m:]

			layer, err := unmarshalLayer(raw)
			if err != nil {
				return Tile{}, fmt.Errorf("tile: %w", err)
			}
			t.Layers = append(t.Layers, layer)
			continue
		}

		m := protowire.ConsumeFieldValue(num, typ, b)
		if m < 0 {
			return Tile{}, fmt.Errorf("tile: unknown field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return t, nil
}

func unmarshalLayer(b []byte) (Layer, error) {
	layer := Layer{Extent: defaultExtent}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Layer{}, fmt.Errorf("layer: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldLayerName && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Layer{}, fmt.Errorf("layer: name: %w", protowire.ParseError(m))
			}
			layer.Name = string(raw)
			b = b[m:]

		case num == fieldLayerFeature && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Layer{}, fmt.Errorf("layer: feature: %w", protowire.ParseError(m))
			}
			feat, err := unmarshalFeature(raw)
			if err != nil {
				return Layer{}, fmt.Errorf("layer %q: %w", layer.Name, err)
			}
			layer.Features = append(layer.Features, feat)
			b = b[m:]

		case num == fieldLayerKeys && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Layer{}, fmt.Errorf("layer: key: %w", protowire.ParseError(m))
			}
			layer.Keys = append(layer.Keys, string(raw))
			b = b[m:]

		case num == fieldLayerValues && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Layer{}, fmt.Errorf("layer: value: %w", protowire.ParseError(m))
			}
			val, err := unmarshalValue(raw)
			if err != nil {
				return Layer{}, fmt.Errorf("layer %q: %w", layer.Name, err)
			}
			layer.Values = append(layer.Values, val)
			b = b[m:]

		case num == fieldLayerExtent && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Layer{}, fmt.Errorf("layer: extent: %w", protowire.ParseError(m))
			}
			layer.Extent = uint32(v)
			b = b[m:]

		case num == fieldLayerVersion && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Layer{}, fmt.Errorf("layer: version: %w", protowire.ParseError(m))
			}
			layer.Version = uint32(v)
			b = b[m:]

		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Layer{}, fmt.Errorf("layer: unknown field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return layer, nil
}

func unmarshalFeature(b []byte) (Feature, error) {
	var f Feature
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Feature{}, fmt.Errorf("feature: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldFeatureID && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Feature{}, fmt.Errorf("feature: id: %w", protowire.ParseError(m))
			}
			f.HasID = true
			f.ID = v
			b = b[m:]

		case num == fieldFeatureTags:
			vals, m, err := consumePackedVarints(b, typ)
			if err != nil {
				return Feature{}, fmt.Errorf("feature: tags: %w", err)
			}
			f.Tags = append(f.Tags, vals...)
			b = b[m:]

		case num == fieldFeatureType && typ == protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Feature{}, fmt.Errorf("feature: type: %w", protowire.ParseError(m))
			}
			f.Type = GeomType(v)
			b = b[m:]

		case num == fieldFeatureGeometry:
			vals, m, err := consumePackedVarints(b, typ)
			if err != nil {
				return Feature{}, fmt.Errorf("feature: geometry: %w", err)
			}
			f.Geometry = append(f.Geometry, vals...)
			b = b[m:]

		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Feature{}, fmt.Errorf("feature: unknown field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return f, nil
}

// consumePackedVarints reads a repeated uint32 field that may be encoded
// either packed (length-delimited, the Mapbox Vector Tile default) or
// unpacked (one varint per tag, tolerated defensively since this is how
// proto2 sometimes emits repeated scalars). Returns the decoded values
// and bytes consumed (tag excluded, since the caller already consumed it).
func consumePackedVarints(b []byte, typ protowire.Type) ([]uint32, int, error) {
	switch typ {
	case protowire.BytesType:
		raw, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		var out []uint32
		for len(raw) > 0 {
			v, m := protowire.ConsumeVarint(raw)
			if m < 0 {
				return nil, 0, fmt.Errorf("packed varint: %w", protowire.ParseError(m))
			}
			out = append(out, uint32(v))
			raw = raw[m:]
		}
		return out, n, nil
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return []uint32{uint32(v)}, n, nil
	default:
		n := protowire.ConsumeFieldValue(0, typ, b)
		if n < 0 {
			return nil, 0, protowire.ParseError(n)
		}
		return nil, n, nil
	}
}

func unmarshalValue(b []byte) (Value, error) {
	var v Value
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return Value{}, fmt.Errorf("value: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldValueString && typ == protowire.BytesType:
			raw, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return Value{}, fmt.Errorf("value: string: %w", protowire.ParseError(m))
			}
			v = Value{Kind: ValueString, String: string(raw)}
			b = b[m:]

		case num == fieldValueFloat && typ == protowire.Fixed32Type:
			raw, m := protowire.ConsumeFixed32(b)
			if m < 0 {
				return Value{}, fmt.Errorf("value: float: %w", protowire.ParseError(m))
			}
			v = Value{Kind: ValueFloat, Float: math.Float32frombits(raw)}
			b = b[m:]

		case num == fieldValueDouble && typ == protowire.Fixed64Type:
			raw, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return Value{}, fmt.Errorf("value: double: %w", protowire.ParseError(m))
			}
			v = Value{Kind: ValueDouble, Double: math.Float64frombits(raw)}
			b = b[m:]

		case num == fieldValueInt && typ == protowire.VarintType:
			raw, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Value{}, fmt.Errorf("value: int: %w", protowire.ParseError(m))
			}
			v = Value{Kind: ValueInt, Int: int64(raw)}
			b = b[m:]

		case num == fieldValueUint && typ == protowire.VarintType:
			raw, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Value{}, fmt.Errorf("value: uint: %w", protowire.ParseError(m))
			}
			v = Value{Kind: ValueUint, Uint: raw}
			b = b[m:]

		case num == fieldValueSint && typ == protowire.VarintType:
			raw, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Value{}, fmt.Errorf("value: sint: %w", protowire.ParseError(m))
			}
			v = Value{Kind: ValueSint, Sint: protowire.DecodeZigZag(raw)}
			b = b[m:]

		case num == fieldValueBool && typ == protowire.VarintType:
			raw, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return Value{}, fmt.Errorf("value: bool: %w", protowire.ParseError(m))
			}
			v = Value{Kind: ValueBool, Bool: raw != 0}
			b = b[m:]

		default:
			m := protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return Value{}, fmt.Errorf("value: unknown field %d: %w", num, protowire.ParseError(m))
			}
			b = b[m:]
		}
	}
	return v, nil
}

// marshalTile serializes a Tile back to its protobuf wire form.
func marshalTile(t Tile) []byte {
	var b []byte
	for _, layer := range t.Layers {
		b = protowire.AppendTag(b, fieldTileLayers, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalLayer(layer))
	}
	return b
}

func marshalLayer(l Layer) []byte {
	var b []byte

	b = protowire.AppendTag(b, fieldLayerName, protowire.BytesType)
	b = protowire.AppendBytes(b, []byte(l.Name))

	for _, f := range l.Features {
		b = protowire.AppendTag(b, fieldLayerFeature, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalFeature(f))
	}

	for _, k := range l.Keys {
		b = protowire.AppendTag(b, fieldLayerKeys, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(k))
	}

	for _, v := range l.Values {
		b = protowire.AppendTag(b, fieldLayerValues, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalValue(v))
	}

	b = protowire.AppendTag(b, fieldLayerExtent, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(l.Extent))

	b = protowire.AppendTag(b, fieldLayerVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(l.Version))

	return b
}

func marshalFeature(f Feature) []byte {
	var b []byte

	if f.HasID {
		b = protowire.AppendTag(b, fieldFeatureID, protowire.VarintType)
		b = protowire.AppendVarint(b, f.ID)
	}

	if len(f.Tags) > 0 {
		b = protowire.AppendTag(b, fieldFeatureTags, protowire.BytesType)
		b = protowire.AppendBytes(b, packVarints(f.Tags))
	}

	b = protowire.AppendTag(b, fieldFeatureType, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(f.Type))

	if len(f.Geometry) > 0 {
		b = protowire.AppendTag(b, fieldFeatureGeometry, protowire.BytesType)
		b = protowire.AppendBytes(b, packVarints(f.Geometry))
	}

	return b
}

func packVarints(vals []uint32) []byte {
	var b []byte
	for _, v := range vals {
		b = protowire.AppendVarint(b, uint64(v))
	}
	return b
}

func marshalValue(v Value) []byte {
	var b []byte
	switch v.Kind {
	case ValueString:
		b = protowire.AppendTag(b, fieldValueString, protowire.BytesType)
		b = protowire.AppendBytes(b, []byte(v.String))
	case ValueFloat:
		b = protowire.AppendTag(b, fieldValueFloat, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(v.Float))
	case ValueDouble:
		b = protowire.AppendTag(b, fieldValueDouble, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(v.Double))
	case ValueInt:
		b = protowire.AppendTag(b, fieldValueInt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(v.Int))
	case ValueUint:
		b = protowire.AppendTag(b, fieldValueUint, protowire.VarintType)
		b = protowire.AppendVarint(b, v.Uint)
	case ValueSint:
		b = protowire.AppendTag(b, fieldValueSint, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(v.Sint))
	case ValueBool:
		b = protowire.AppendTag(b, fieldValueBool, protowire.VarintType)
		var iv uint64
		if v.Bool {
			iv = 1
		}
		b = protowire.AppendVarint(b, iv)
	}
	return b
}
