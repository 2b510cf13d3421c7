package mvt

// Transform applies a keep-set of layer names and the streets kind-tag
// whitelist to a decoded tile. It returns a new Tile value
// (the input is not mutated in place, though layer/feature slices may be
// shared where nothing changed) and whether anything was modified.
func Transform(t *Tile, layersToKeep map[string]struct{}) (*Tile, bool) {
	out := Tile{Layers: make([]Layer, 0, len(t.Layers))}
	modified := false

	for _, layer := range t.Layers {
		if _, keep := layersToKeep[layer.Name]; !keep {
			modified = true
			continue
		}

		if layer.Name == "streets" {
			filtered, changed := filterStreetFeatures(layer)
			if changed {
				modified = true
			}
			out.Layers = append(out.Layers, filtered)
			continue
		}

		out.Layers = append(out.Layers, layer)
	}

	return &out, modified
}

// filterStreetFeatures keeps a feature unless it carries a "kind" tag whose
// string value is absent from StreetKindWhitelist. Keys/values tables are
// left intact; only the feature list is trimmed.
func filterStreetFeatures(layer Layer) (Layer, bool) {
	kept := make([]Feature, 0, len(layer.Features))
	for _, f := range layer.Features {
		if keepStreetFeature(layer, f) {
			kept = append(kept, f)
		}
	}

	out := layer
	out.Features = kept
	return out, len(kept) != len(layer.Features)
}

// keepStreetFeature implements the defensive-on-malformed-tag rule: any
// parse uncertainty about the tags list keeps the feature rather than
// dropping it.
func keepStreetFeature(layer Layer, f Feature) bool {
	if len(f.Tags)%2 != 0 {
		return true
	}

	for i := 0; i+1 < len(f.Tags); i += 2 {
		keyIdx := f.Tags[i]
		valIdx := f.Tags[i+1]

		if int(keyIdx) >= len(layer.Keys) || int(valIdx) >= len(layer.Values) {
			return true
		}
		if layer.Keys[keyIdx] != "kind" {
			continue
		}

		s, isString := layer.Values[valIdx].AsString()
		if !isString {
			return true
		}
		_, whitelisted := StreetKindWhitelist[s]
		return whitelisted
	}

	return true
}
