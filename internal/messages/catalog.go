// Package messages loads the localized message catalogs and negotiates the
// locale of each request.
package messages

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/pitabwire/vesselwizard/model"
)

var titleCase = cases.Title(language.English)

// Catalog holds one flat key to text table per locale. It is immutable after
// construction and safe for concurrent use.
type Catalog struct {
	locales []string
	tables  []map[string]string
	matcher language.Matcher
}

// New builds a catalog from in-memory tables. The default locale must be
// present and becomes the fallback for every other locale.
func New(defaultLocale string, tables map[string]map[string]string) (*Catalog, error) {
	if _, ok := tables[defaultLocale]; !ok {
		return nil, fmt.Errorf("default locale %q has no catalog", defaultLocale)
	}

	others := make([]string, 0, len(tables))
	for locale := range tables {
		if locale != defaultLocale {
			others = append(others, locale)
		}
	}
	sort.Strings(others)

	c := &Catalog{}
	tags := make([]language.Tag, 0, len(tables))
	for _, locale := range append([]string{defaultLocale}, others...) {
		tag, err := language.Parse(locale)
		if err != nil {
			return nil, fmt.Errorf("locale %q: %w", locale, err)
		}
		tags = append(tags, tag)
		c.locales = append(c.locales, locale)
		c.tables = append(c.tables, tables[locale])
	}
	c.matcher = language.NewMatcher(tags)
	return c, nil
}

// Load reads every <locale>.yaml file in dir. Nested maps are flattened into
// dotted keys.
func Load(dir, defaultLocale string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading messages directory: %w", err)
	}

	tables := make(map[string]map[string]string)
	for _, entry := range entries {
		name := entry.Name()
		ext := filepath.Ext(name)
		if entry.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", name, err)
		}
		var raw map[string]any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", name, err)
		}
		table := make(map[string]string)
		flatten("", raw, table)
		tables[strings.TrimSuffix(name, ext)] = table
	}
	return New(defaultLocale, tables)
}

func flatten(prefix string, in map[string]any, out map[string]string) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch t := v.(type) {
		case map[string]any:
			flatten(key, t, out)
		case nil:
		default:
			out[key] = fmt.Sprint(t)
		}
	}
}

// Locales returns the loaded locales, default first.
func (c *Catalog) Locales() []string {
	return append([]string(nil), c.locales...)
}

// DefaultLocale returns the fallback locale.
func (c *Catalog) DefaultLocale() string {
	return c.locales[0]
}

// Negotiate picks the best loaded locale for an Accept-Language header value.
func (c *Catalog) Negotiate(acceptLanguage string) string {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return c.locales[0]
	}
	return c.locales[c.match(tags...)]
}

// Lookup returns the text for key in locale, then in the default locale,
// then the key itself.
func (c *Catalog) Lookup(locale, key string) string {
	idx := 0
	if locale != "" {
		if tag, err := language.Parse(locale); err == nil {
			idx = c.match(tag)
		}
	}
	if msg, ok := c.tables[idx][key]; ok {
		return msg
	}
	if msg, ok := c.tables[0][key]; ok {
		return msg
	}
	return key
}

// Resolve implements model.MessageResolver using the locale of the request
// context carried by ctx.
func (c *Catalog) Resolve(ctx context.Context, key string) string {
	locale := ""
	if rctx := model.RequestContextFrom(ctx); rctx != nil {
		locale = rctx.Locale
	}
	return c.Lookup(locale, key)
}

// CodeResolver returns a function translating validation failure codes for
// the locale of ctx.
func (c *Catalog) CodeResolver(ctx context.Context) func(code string) string {
	return func(code string) string { return c.Resolve(ctx, code) }
}

func (c *Catalog) match(tags ...language.Tag) int {
	_, idx, conf := c.matcher.Match(tags...)
	if conf == language.No {
		return 0
	}
	return idx
}

// Humanize turns a snake_case identifier into a title-cased label, used when
// a definition omits one.
func Humanize(id string) string {
	return titleCase.String(strings.ReplaceAll(id, "_", " "))
}
