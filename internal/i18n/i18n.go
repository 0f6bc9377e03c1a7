// Package i18n holds the user facing strings of the CLI and the reports in every
// supported language.
package i18n

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// DefaultLang is used when a requested language is not supported.
const DefaultLang = "en"

//go:embed locales/*.yaml
var localeFS embed.FS

// supported lists the catalog languages. The first entry is the matcher's
// fallback.
var supported = []language.Tag{
	language.English,
	language.Swedish,
	language.German,
	language.French,
	language.Spanish,
}

var (
	matcher = language.NewMatcher(supported)

	loadOnce sync.Once
	catalogs map[string]map[string]string
	loadErr  error
)

func load() {
	catalogs = make(map[string]map[string]string, len(supported))
	for _, tag := range supported {
		base, _ := tag.Base()
		code := base.String()
		data, err := localeFS.ReadFile("locales/" + code + ".yaml")
		if err != nil {
			loadErr = fmt.Errorf("missing catalog for %s: %w", code, err)
			return
		}
		msgs := make(map[string]string)
		if err := yaml.Unmarshal(data, &msgs); err != nil {
			loadErr = fmt.Errorf("failed to parse catalog %s: %w", code, err)
			return
		}
		catalogs[code] = msgs
	}
}

func catalog(code string) map[string]string {
	loadOnce.Do(load)
	if loadErr != nil {
		// The catalogs are compiled in; a broken one is a build defect.
		panic(loadErr)
	}
	return catalogs[code]
}

// Languages returns the supported language codes, sorted.
func Languages() []string {
	out := make([]string, 0, len(supported))
	for _, tag := range supported {
		base, _ := tag.Base()
		out = append(out, base.String())
	}
	sort.Strings(out)
	return out
}

// Match resolves a requested language to a supported code. It accepts BCP 47
// tags ("sv-SE"), POSIX locales ("sv_SE.UTF-8") and Accept-Language lists.
// Anything it cannot place falls back to DefaultLang.
func Match(requested string) string {
	requested = normalizeLocales(requested)
	if requested == "" {
		return DefaultLang
	}

	tags, _, err := language.ParseAcceptLanguage(requested)
	if err != nil || len(tags) == 0 {
		return DefaultLang
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return DefaultLang
	}
	base, _ := supported[idx].Base()
	return base.String()
}

// normalizeLocales rewrites every item of a comma separated list from POSIX
// form to BCP 47. Codeset and modifier suffixes are cut from the tag only, so
// q-values such as ";q=0.9" survive.
func normalizeLocales(s string) string {
	items := strings.Split(s, ",")
	kept := items[:0]
	for _, item := range items {
		tag, params, hasParams := strings.Cut(strings.TrimSpace(item), ";")
		if i := strings.IndexAny(tag, ".@"); i >= 0 {
			tag = tag[:i]
		}
		tag = strings.ReplaceAll(strings.TrimSpace(tag), "_", "-")
		if tag == "" {
			continue
		}
		if hasParams {
			tag += ";" + params
		}
		kept = append(kept, tag)
	}
	return strings.Join(kept, ", ")
}

// Translator looks up messages in one language, falling back to English for
// keys the language lacks and to the key itself when no catalog has it.
type Translator struct {
	lang     string
	messages map[string]string
	fallback map[string]string
}

// New returns a Translator for the best match of lang.
func New(lang string) *Translator {
	code := Match(lang)
	return &Translator{
		lang:     code,
		messages: catalog(code),
		fallback: catalog(DefaultLang),
	}
}

// Lang returns the resolved language code.
func (t *Translator) Lang() string { return t.lang }

// T returns the message for key. Placeholders written as {name} are replaced
// from params, given as alternating name and value pairs.
func (t *Translator) T(key string, params ...string) string {
	msg, ok := t.messages[key]
	if !ok {
		if msg, ok = t.fallback[key]; !ok {
			return key
		}
	}
	if len(params) < 2 {
		return msg
	}

	pairs := make([]string, 0, len(params))
	for i := 0; i+1 < len(params); i += 2 {
		pairs = append(pairs, "{"+params[i]+"}", params[i+1])
	}
	return strings.NewReplacer(pairs...).Replace(msg)
}

// Has reports whether key exists in the translator's language or in English.
func (t *Translator) Has(key string) bool {
	if _, ok := t.messages[key]; ok {
		return true
	}
	_, ok := t.fallback[key]
	return ok
}
