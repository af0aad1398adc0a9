package domain

import (
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stateNames maps normalized Brazilian state names (and the Federal District)
// to their two-letter UF codes.
var stateNames = map[string]string{
	"ACRE":                "AC",
	"ALAGOAS":             "AL",
	"AMAPA":               "AP",
	"AMAZONAS":            "AM",
	"BAHIA":               "BA",
	"CEARA":               "CE",
	"DISTRITO FEDERAL":    "DF",
	"ESPIRITO SANTO":      "ES",
	"GOIAS":               "GO",
	"MARANHAO":            "MA",
	"MATO GROSSO":         "MT",
	"MATO GROSSO DO SUL":  "MS",
	"MINAS GERAIS":        "MG",
	"PARA":                "PA",
	"PARAIBA":             "PB",
	"PARANA":              "PR",
	"PERNAMBUCO":          "PE",
	"PIAUI":               "PI",
	"RIO DE JANEIRO":      "RJ",
	"RIO GRANDE DO NORTE": "RN",
	"RIO GRANDE DO SUL":   "RS",
	"RONDONIA":            "RO",
	"RORAIMA":             "RR",
	"SANTA CATARINA":      "SC",
	"SAO PAULO":           "SP",
	"SERGIPE":             "SE",
	"TOCANTINS":           "TO",
}

// regionStates expands IBGE macro-region names. Centro-Oeste appears in
// feeds both hyphenated and spaced.
var regionStates = map[string][]string{
	"NORTE":        {"AC", "AM", "AP", "PA", "RO", "RR", "TO"},
	"NORDESTE":     {"AL", "BA", "CE", "MA", "PB", "PE", "PI", "RN", "SE"},
	"CENTRO OESTE": {"DF", "GO", "MS", "MT"},
	"CENTRO-OESTE": {"DF", "GO", "MS", "MT"},
	"SUDESTE":      {"ES", "MG", "RJ", "SP"},
	"SUL":          {"PR", "RS", "SC"},
}

var (
	// stateNamePatterns is ordered longest name first so that a longer name
	// masks its span before a shorter prefix ("MATO GROSSO") is tried.
	stateNamePatterns = compileLongestFirst(stateNames)
	regionPatterns    = compileLongestFirst(regionKeys())

	// ufTokenRe matches any valid UF code as a whole word.
	ufTokenRe = regexp.MustCompile(`\b(` + strings.Join(ufCodes(), "|") + `)\b`)

	spaceRe = regexp.MustCompile(`\s+`)
)

type namePattern struct {
	name string
	re   *regexp.Regexp
}

func compileLongestFirst(names map[string]string) []namePattern {
	out := make([]namePattern, 0, len(names))
	for name := range names {
		out = append(out, namePattern{
			name: name,
			re:   regexp.MustCompile(`(^|[^A-Z0-9])` + regexp.QuoteMeta(name) + `($|[^A-Z0-9])`),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i].name) != len(out[j].name) {
			return len(out[i].name) > len(out[j].name)
		}
		return out[i].name < out[j].name
	})
	return out
}

func regionKeys() map[string]string {
	keys := make(map[string]string, len(regionStates))
	for k := range regionStates {
		keys[k] = k
	}
	return keys
}

func ufCodes() []string {
	codes := make([]string, 0, len(stateNames))
	for _, code := range stateNames {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// IsStateCode reports whether code is one of the 27 UF codes.
func IsStateCode(code string) bool {
	for _, c := range stateNames {
		if c == code {
			return true
		}
	}
	return false
}

// Normalize folds text to its comparison form: diacritics removed,
// upper-cased, whitespace collapsed to single spaces.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}
	folded = strings.ToUpper(folded)
	return strings.TrimSpace(spaceRe.ReplaceAllString(folded, " "))
}

// MatchStates returns the sorted set of UF codes referenced by free text.
// It is the union of full state names, macro-region names expanded to their
// member states, and bare UF codes appearing as whole tokens.
func MatchStates(text string) []string {
	n := Normalize(text)
	found := make(map[string]struct{})

	masked := n
	for _, p := range stateNamePatterns {
		if p.re.MatchString(masked) {
			found[stateNames[p.name]] = struct{}{}
			masked = p.re.ReplaceAllString(masked, "$1$2")
		}
	}

	// Region words inside a state name ("DO SUL", "DO NORTE") are already
	// masked and do not expand.
	for _, p := range regionPatterns {
		if p.re.MatchString(masked) {
			for _, code := range regionStates[p.name] {
				found[code] = struct{}{}
			}
		}
	}

	for _, code := range ufTokenRe.FindAllString(masked, -1) {
		found[code] = struct{}{}
	}

	out := make([]string, 0, len(found))
	for code := range found {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

// MatchesPlace reports whether a detail place list mentions the city, either
// as "CITY - UF" or as the bare city name when the feed omits the state.
func MatchesPlace(detail, city, state string) bool {
	c := Normalize(city)
	if c == "" {
		return false
	}
	d := Normalize(detail)
	if s := Normalize(state); s != "" && strings.Contains(d, c+" - "+s) {
		return true
	}
	return strings.Contains(d, c)
}
