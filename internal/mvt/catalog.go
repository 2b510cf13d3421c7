package mvt

// LayerCatalog is the process-wide fixed mapping of known layer name to a
// human-readable description. Descriptions are informative only; they
// play no role in filtering.
var LayerCatalog = map[string]string{
	"addresses":               "Street address points",
	"aerialways":              "Cable cars, chairlifts, gondolas",
	"boundaries":              "Administrative boundary lines",
	"boundary_labels":         "Administrative boundary name labels",
	"bridges":                 "Bridge structures",
	"buildings":               "Building footprints",
	"dam_lines":               "Dam centerlines",
	"ferries":                 "Ferry routes",
	"land":                    "Land cover polygons",
	"ocean":                   "Ocean polygons",
	"pier_lines":              "Pier centerlines",
	"pier_polygons":           "Pier footprints",
	"place_labels":            "Place name labels",
	"pois":                    "Points of interest",
	"public_transport":        "Public transport stops and lines",
	"sites":                   "Site polygons",
	"streets":                 "Road and path centerlines",
	"street_labels":           "Street name labels",
	"street_labels_points":    "Street name label anchor points",
	"street_polygons":         "Wide-road polygon fills",
	"streets_polygons_labels": "Wide-road polygon labels",
	"water_lines":             "Watercourse centerlines",
	"water_lines_labels":      "Watercourse name labels",
	"water_polygons":          "Water body polygons",
	"water_polygons_labels":   "Water body name labels",
}

// DefaultNotKept is the subset of LayerCatalog excluded from a freshly
// seeded default profile.
var DefaultNotKept = map[string]struct{}{
	"addresses":               {},
	"aerialways":              {},
	"boundaries":              {},
	"boundary_labels":         {},
	"bridges":                 {},
	"buildings":               {},
	"dam_lines":               {},
	"ferries":                 {},
	"ocean":                   {},
	"pier_lines":              {},
	"pier_polygons":           {},
	"place_labels":            {},
	"pois":                    {},
	"public_transport":        {},
	"street_polygons":         {},
	"street_labels_points":    {},
	"streets_polygons_labels": {},
	"sites":                   {},
	"water_lines":             {},
	"water_lines_labels":      {},
	"water_polygons_labels":   {},
}

// StreetKindWhitelist is the retained subset of OSM highway "kind" tag
// values. Only features in a layer literally named "streets" are filtered
// against this set.
var StreetKindWhitelist = map[string]struct{}{
	"track":         {},
	"path":          {},
	"service":       {},
	"unclassified":  {},
	"residential":   {},
	"tertiary":      {},
	"secondary":     {},
	"primary":       {},
	"trunk":         {},
	"living_street": {},
	"pedestrian":    {},
	"taxiway":       {},
	"busway":        {},
}

// DefaultKeepSet returns LayerCatalog minus DefaultNotKept, the seed set
// used by profile.Store.EnsureValidDefault.
func DefaultKeepSet() map[string]struct{} {
	out := make(map[string]struct{}, len(LayerCatalog)-len(DefaultNotKept))
	for name := range LayerCatalog {
		if _, excluded := DefaultNotKept[name]; excluded {
			continue
		}
		out[name] = struct{}{}
	}
	return out
}
