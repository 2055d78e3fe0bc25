package engine

import (
	"log"
	"regexp"
	"strconv"
)

var (
	tokenRe     = regexp.MustCompile(`%%(.+?)%%`)
	entityRefRe = regexp.MustCompile(`^(\w+)\[(\d+)\]\.(\w+)$`)
)

// personTokens are the reserved placeholder names substituted with a
// random name from the roster. One spelling per supported language.
var personTokens = map[string]bool{"name": true, "namn": true}

// nameRoster is the fixed set of person names available to templates.
var nameRoster = []string{
	"Alice", "Bob", "Charlie", "Diana", "Elias", "Frida",
	"Gustav", "Hanna", "Isak", "Jasmine", "Kasper", "Lina",
	"Mikael", "Nora", "Oskar", "Petra", "Quentin", "Rebecca",
	"Simon", "Tove", "Ulf", "Vera", "Wilhelm", "Xenia",
	"Yasmine", "Zack",
}

// extractTokens returns the unique placeholder names in text, in order
// of first appearance.
func extractTokens(text string) []string {
	seen := map[string]bool{}
	var names []string
	for _, m := range tokenRe.FindAllStringSubmatch(text, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// buildValueSet resolves every non-person token: entity references read
// from the resolved slots, everything else from the scalar specs. Values
// that are still generation arrays (scalar specs, or arrays flattened
// onto entity records) are sampled here. Unresolvable tokens get an
// explicit error marker so the invariant "no silent %%token%% survives"
// holds.
func (e *Engine) buildValueSet(tokens []string, spec VariatingSpec, resolved ResolvedEntities) ValueSet {
	values := ValueSet{}
	for _, name := range tokens {
		if personTokens[name] {
			continue
		}
		if m := entityRefRe.FindStringSubmatch(name); m != nil {
			idx, _ := strconv.Atoi(m[2])
			v, ok := resolved.Field(m[1], idx, m[3])
			if !ok {
				values[name] = ErrorMarker(name)
				continue
			}
			values[name] = e.sampleIfArray(name, v)
			continue
		}
		arr, ok := spec.ScalarSpecs[name]
		if !ok {
			values[name] = ErrorMarker(name)
			continue
		}
		v, err := e.gen.FromArray(arr)
		if err != nil {
			log.Printf("generate %s: %v", name, err)
			values[name] = ErrorMarker(name)
			continue
		}
		values[name] = v
	}
	return values
}

func (e *Engine) sampleIfArray(name string, v any) any {
	arr, ok := v.([]any)
	if !ok {
		return v
	}
	out, err := e.gen.FromArray(arr)
	if err != nil {
		log.Printf("generate %s: %v", name, err)
		return ErrorMarker(name)
	}
	return out
}

// substituteTokens replaces every %%name%% occurrence with its resolved
// value. Token names are quoted before use as patterns, so names with
// brackets and dots match literally and never partially.
func substituteTokens(text string, values ValueSet) string {
	for name, v := range values {
		re := regexp.MustCompile(`%%` + regexp.QuoteMeta(name) + `%%`)
		text = re.ReplaceAllLiteralString(text, FormatValue(v))
	}
	return text
}

// substitutePersonName replaces the reserved person tokens with one name
// drawn from the roster. Person names are not part of the generated
// value set; formulas cannot reference them.
func (e *Engine) substitutePersonName(text string) string {
	name := nameRoster[e.gen.intn(len(nameRoster))]
	return tokenRe.ReplaceAllStringFunc(text, func(tok string) string {
		inner := tok[2 : len(tok)-2]
		if personTokens[inner] {
			return name
		}
		return tok
	})
}
