package dip

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Filters narrows a resource listing. Keys are the DIP API's `f.*` query
// parameters without the prefix (e.g. "wahlperiode", "datum.start");
// list-valued filters repeat the query key. Keys are validated against the
// resource's recognized set before the request is built, so a typo fails
// fast instead of being silently ignored by the API.
type Filters map[string][]string

// commonFilterKeys are accepted by every listing resource.
var commonFilterKeys = []string{
	"id",
	"datum.start",
	"datum.end",
	"aktualisiert.start",
	"aktualisiert.end",
	"wahlperiode",
	"zuordnung",
}

// extraFilterKeys lists the resource-specific additions.
var extraFilterKeys = map[string][]string{
	ResourceAktivitaet: {
		"dokumentart",
		"drucksache",
		"plenarprotokoll",
		"urheber",
	},
	ResourceDrucksache: {
		"dokumentnummer",
		"drucksachetyp",
		"urheber",
	},
	ResourceDrucksacheText: {
		"dokumentnummer",
		"drucksachetyp",
		"urheber",
	},
	ResourcePlenarprotokoll: {
		"dokumentnummer",
	},
	ResourcePlenarprotokollText: {
		"dokumentnummer",
	},
	ResourceVorgang: {
		"beratungsstand",
		"dokumentart",
		"drucksache",
		"frage_nummer",
		"gesta",
		"plenarprotokoll",
		"sachgebiet",
		"vorgangstyp",
	},
	ResourceVorgangsposition: {
		"dokumentart",
		"drucksache",
		"plenarprotokoll",
		"vorgang",
		"vorgangstyp",
		"zuordnung",
	},
}

// recognizedKeys returns the sorted filter key set for a resource.
func recognizedKeys(resource string) map[string]struct{} {
	keys := make(map[string]struct{}, len(commonFilterKeys))
	for _, key := range commonFilterKeys {
		keys[key] = struct{}{}
	}
	for _, key := range extraFilterKeys[resource] {
		keys[key] = struct{}{}
	}
	return keys
}

// validate rejects filter keys the resource does not recognize.
func (f Filters) validate(resource string) error {
	if len(f) == 0 {
		return nil
	}

	recognized := recognizedKeys(resource)

	var unknown []string
	for key := range f {
		if _, ok := recognized[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) == 0 {
		return nil
	}

	sort.Strings(unknown)
	return fmt.Errorf("unrecognized filter key(s) %q for resource %q",
		strings.Join(unknown, ", "), resource)
}

// values encodes the filters as query parameters with the `f.` prefix.
func (f Filters) values() url.Values {
	params := make(url.Values, len(f))
	for key, values := range f {
		params["f."+key] = append([]string(nil), values...)
	}
	return params
}
