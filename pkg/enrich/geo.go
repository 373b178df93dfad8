package enrich

import (
	"sort"
	"strings"

	"github.com/AteetVatan/masx-geosignal/pkg/model"
)

// ResolveGeo consumes an entry's NER output and normalizes LOC/GPE surface
// forms into country records: non-country toponyms are dropped, multiple
// surface forms resolving to the same country are merged, and the result is
// ordered by mention count DESC then name ASC.
func ResolveGeo(entities model.NEREntities) []model.GeoEntity {
	counts := make(map[string]int)
	names := make(map[string]string)

	for _, class := range []string{"LOC", "GPE"} {
		for _, form := range entities.Classes[class] {
			country, ok := lookupCountry(form)
			if !ok {
				continue
			}
			counts[country.Alpha2]++
			names[country.Alpha2] = country.Name
		}
	}

	out := make([]model.GeoEntity, 0, len(counts))
	for alpha2, n := range counts {
		out = append(out, model.GeoEntity{Name: names[alpha2], Alpha2: alpha2, Mentions: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Mentions != out[j].Mentions {
			return out[i].Mentions > out[j].Mentions
		}
		return out[i].Name < out[j].Name
	})
	return out
}

type countryRecord struct {
	Name   string
	Alpha2 string
}

func lookupCountry(form string) (countryRecord, bool) {
	key := strings.ToLower(strings.TrimSpace(form))
	rec, ok := countryLookup[key]
	return rec, ok
}

// countryLookup is a static table of common country names, adjectival
// forms, and capital-city aliases to ISO-3166 alpha-2, covering the
// flashpoint geography this pipeline is expected to see. It is not a
// complete gazetteer; unresolved toponyms are simply dropped per the
// stage's contract.
var countryLookup = buildCountryLookup()

func buildCountryLookup() map[string]countryRecord {
	entries := []struct {
		alpha2  string
		name    string
		aliases []string
	}{
		{"us", "United States", []string{"united states", "usa", "u.s.", "u.s.a.", "america", "washington"}},
		{"gb", "United Kingdom", []string{"united kingdom", "uk", "britain", "great britain", "london"}},
		{"ru", "Russia", []string{"russia", "russian federation", "moscow"}},
		{"ua", "Ukraine", []string{"ukraine", "kyiv", "kiev"}},
		{"cn", "China", []string{"china", "prc", "beijing"}},
		{"tw", "Taiwan", []string{"taiwan", "taipei"}},
		{"il", "Israel", []string{"israel", "jerusalem", "tel aviv"}},
		{"ps", "Palestine", []string{"palestine", "gaza", "west bank", "ramallah"}},
		{"ir", "Iran", []string{"iran", "tehran"}},
		{"iq", "Iraq", []string{"iraq", "baghdad"}},
		{"sy", "Syria", []string{"syria", "damascus"}},
		{"lb", "Lebanon", []string{"lebanon", "beirut"}},
		{"ye", "Yemen", []string{"yemen", "sanaa"}},
		{"sa", "Saudi Arabia", []string{"saudi arabia", "riyadh"}},
		{"in", "India", []string{"india", "new delhi"}},
		{"pk", "Pakistan", []string{"pakistan", "islamabad"}},
		{"kp", "North Korea", []string{"north korea", "pyongyang"}},
		{"kr", "South Korea", []string{"south korea", "seoul"}},
		{"jp", "Japan", []string{"japan", "tokyo"}},
		{"fr", "France", []string{"france", "paris"}},
		{"de", "Germany", []string{"germany", "berlin"}},
		{"pl", "Poland", []string{"poland", "warsaw"}},
		{"tr", "Turkey", []string{"turkey", "turkiye", "ankara"}},
		{"eg", "Egypt", []string{"egypt", "cairo"}},
		{"et", "Ethiopia", []string{"ethiopia", "addis ababa"}},
		{"sd", "Sudan", []string{"sudan", "khartoum"}},
		{"ve", "Venezuela", []string{"venezuela", "caracas"}},
		{"br", "Brazil", []string{"brazil", "brasilia"}},
		{"mx", "Mexico", []string{"mexico", "mexico city"}},
		{"ca", "Canada", []string{"canada", "ottawa"}},
		{"au", "Australia", []string{"australia", "canberra"}},
		{"nz", "New Zealand", []string{"new zealand", "wellington"}},
		{"za", "South Africa", []string{"south africa", "pretoria"}},
	}

	m := make(map[string]countryRecord, len(entries)*3)
	for _, e := range entries {
		rec := countryRecord{Name: e.name, Alpha2: strings.ToUpper(e.alpha2)}
		m[strings.ToLower(e.name)] = rec
		for _, a := range e.aliases {
			m[a] = rec
		}
	}
	return m
}
