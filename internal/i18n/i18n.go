package i18n

import (
	"sort"
	"strings"

	"golang.org/x/text/language"
)

const DefaultLanguage = "fr"

type Catalog struct {
	fallback string
	messages map[string]map[string]string
	tags     []string
	matcher  language.Matcher
}

func New(fallback string) *Catalog {
	return NewWithMessages(fallback, builtin)
}

func NewWithMessages(fallback string, messages map[string]map[string]string) *Catalog {
	tags := make([]string, 0, len(messages))
	for lang := range messages {
		tags = append(tags, lang)
	}
	sort.Strings(tags)
	if _, ok := messages[fallback]; !ok {
		fallback = DefaultLanguage
	}

	// The fallback goes first so the matcher returns it when nothing matches.
	ordered := []language.Tag{language.Make(fallback)}
	for _, lang := range tags {
		if lang != fallback {
			ordered = append(ordered, language.Make(lang))
		}
	}
	return &Catalog{
		fallback: fallback,
		messages: messages,
		tags:     tags,
		matcher:  language.NewMatcher(ordered),
	}
}

func (c *Catalog) Fallback() string {
	return c.fallback
}

func (c *Catalog) Languages() []string {
	return append([]string(nil), c.tags...)
}

func (c *Catalog) Supported(lang string) bool {
	_, ok := c.messages[lang]
	return ok
}

// Resolve picks the first supported language among the candidates, in
// order. Empty candidates are skipped. Candidates may be full locales such
// as "es-ES" or "en-US".
func (c *Catalog) Resolve(candidates ...string) string {
	for _, candidate := range candidates {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		if c.Supported(candidate) {
			return candidate
		}
		tag, _, confidence := c.matcher.Match(language.Make(candidate))
		if confidence == language.No {
			continue
		}
		base, _ := tag.Base()
		if c.Supported(base.String()) {
			return base.String()
		}
	}
	return c.fallback
}

func (c *Catalog) T(lang, key string, params map[string]string) string {
	text, ok := c.lookup(lang, key)
	if !ok {
		return key
	}
	if len(params) == 0 {
		return text
	}
	pairs := make([]string, 0, len(params)*2)
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(text)
}

func (c *Catalog) lookup(lang, key string) (string, bool) {
	if messages, ok := c.messages[lang]; ok {
		if text, ok := messages[key]; ok {
			return text, true
		}
	}
	text, ok := c.messages[c.fallback][key]
	return text, ok
}
