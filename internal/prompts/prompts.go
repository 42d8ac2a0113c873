// Package prompts holds the per-locale prompt templates used by the query
// pipeline. Locales are data: adding one means adding a Definition, never
// touching the pipeline.
package prompts

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
	"text/template"
)

// AutoLocale asks Resolve to detect the locale from the question text.
const AutoLocale = "auto"

// Definition is the raw template source for one locale. Empty fields inherit
// the default locale's template.
type Definition struct {
	Intent    string
	SQLSystem string
	SQLUser   string
	Answer    string
}

// TableContext is one retrieved schema document offered to the SQL prompt.
type TableContext struct {
	Name     string
	Document string
}

type IntentData struct {
	Question string
}

type SQLData struct {
	Question string
	Dialect  string
	Tables   []TableContext
}

type AnswerData struct {
	Question string
	SQL      string
	Result   string
	Intent   string
}

// Set is the compiled template set for one locale.
type Set struct {
	Locale    string
	intent    *template.Template
	sqlSystem *template.Template
	sqlUser   *template.Template
	answer    *template.Template
}

func (s *Set) Intent(d IntentData) (string, error) { return render(s.intent, d) }

func (s *Set) Answer(d AnswerData) (string, error) { return render(s.answer, d) }

// SQL renders the system and user messages for SQL generation.
func (s *Set) SQL(d SQLData) (system, user string, err error) {
	if system, err = render(s.sqlSystem, d); err != nil {
		return "", "", err
	}
	if user, err = render(s.sqlUser, d); err != nil {
		return "", "", err
	}
	return system, user, nil
}

func render(t *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", t.Name(), err)
	}
	return buf.String(), nil
}

// Catalog maps normalised locale tags to compiled template sets.
type Catalog struct {
	sets          map[string]*Set
	defaultLocale string
	detector      *LocaleDetector
}

// NewCatalog compiles the built-in locales plus extra, which may add locales
// or override built-in ones. defaultLocale must resolve to a known locale.
func NewCatalog(defaultLocale string, extra map[string]Definition) (*Catalog, error) {
	defs := make(map[string]Definition, len(builtin)+len(extra))
	for tag, d := range builtin {
		defs[tag] = d
	}
	for tag, d := range extra {
		tag = Normalize(tag)
		if base, ok := defs[tag]; ok {
			d = inherit(d, base)
		}
		defs[tag] = d
	}

	def := Normalize(defaultLocale)
	base, ok := defs[def]
	if !ok {
		return nil, fmt.Errorf("default locale %q has no prompt templates", defaultLocale)
	}

	c := &Catalog{
		sets:          make(map[string]*Set, len(defs)),
		defaultLocale: def,
		detector:      NewLocaleDetector(),
	}
	for tag, d := range defs {
		set, err := compile(tag, inherit(d, base))
		if err != nil {
			return nil, err
		}
		c.sets[tag] = set
	}
	return c, nil
}

// Select returns the template set for locale. Unknown or empty locales get
// the default locale's set; Select never returns nil.
func (c *Catalog) Select(locale string) *Set {
	if set, ok := c.sets[Normalize(locale)]; ok {
		return set
	}
	return c.sets[c.defaultLocale]
}

// Resolve is Select plus detection: "auto" picks the locale from question.
func (c *Catalog) Resolve(locale, question string) *Set {
	if strings.EqualFold(strings.TrimSpace(locale), AutoLocale) {
		locale = c.detector.Detect(question).Locale
	}
	return c.Select(locale)
}

func (c *Catalog) DefaultLocale() string { return c.defaultLocale }

// Locales lists the supported locale tags in sorted order.
func (c *Catalog) Locales() []string {
	out := make([]string, 0, len(c.sets))
	for tag := range c.sets {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

// Normalize lower-cases a locale tag and keeps only its language part:
// "ko-KR" and "KO_kr" both become "ko".
func Normalize(locale string) string {
	l := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(l, "-_"); i >= 0 {
		l = l[:i]
	}
	return l
}

func inherit(d, base Definition) Definition {
	if d.Intent == "" {
		d.Intent = base.Intent
	}
	if d.SQLSystem == "" {
		d.SQLSystem = base.SQLSystem
	}
	if d.SQLUser == "" {
		d.SQLUser = base.SQLUser
	}
	if d.Answer == "" {
		d.Answer = base.Answer
	}
	return d
}

func compile(tag string, d Definition) (*Set, error) {
	set := &Set{Locale: tag}
	parts := []struct {
		name string
		src  string
		dst  **template.Template
	}{
		{"intent", d.Intent, &set.intent},
		{"sql_system", d.SQLSystem, &set.sqlSystem},
		{"sql_user", d.SQLUser, &set.sqlUser},
		{"answer", d.Answer, &set.answer},
	}
	for _, p := range parts {
		t, err := template.New(tag + "/" + p.name).Parse(p.src)
		if err != nil {
			return nil, fmt.Errorf("parse %s/%s template: %w", tag, p.name, err)
		}
		*p.dst = t
	}
	return set, nil
}
