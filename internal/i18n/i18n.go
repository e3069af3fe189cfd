package i18n

import (
	"fmt"

	"golang.org/x/text/language"
)

const (
	English = "en"
	Spanish = "es"
)

// Translator resolves message keys for a negotiated locale. Unknown keys are
// returned verbatim so a missing translation never breaks a response.
type Translator struct {
	fallback string
	tags     []language.Tag
	matcher  language.Matcher
}

func NewTranslator(fallback string, supported []string) *Translator {
	tags := make([]language.Tag, 0, len(supported)+1)
	seen := map[string]bool{}
	add := func(code string) {
		if seen[code] {
			return
		}
		if _, ok := catalogs[code]; !ok {
			return
		}
		tag, err := language.Parse(code)
		if err != nil {
			return
		}
		seen[code] = true
		tags = append(tags, tag)
	}
	// the first tag is the matcher's fallback
	add(fallback)
	for _, code := range supported {
		add(code)
	}
	if len(tags) == 0 {
		tags = append(tags, language.English)
		fallback = English
	}

	return &Translator{
		fallback: fallback,
		tags:     tags,
		matcher:  language.NewMatcher(tags),
	}
}

// Negotiate picks a supported locale from an Accept-Language header value.
func (t *Translator) Negotiate(acceptLanguage string) string {
	if acceptLanguage == "" {
		return t.fallback
	}
	prefs, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(prefs) == 0 {
		return t.fallback
	}
	_, index, confidence := t.matcher.Match(prefs...)
	if confidence == language.No {
		return t.fallback
	}
	base, _ := t.tags[index].Base()
	return base.String()
}

func (t *Translator) T(locale, key string, args ...any) string {
	msg, ok := catalogs[locale][key]
	if !ok {
		msg, ok = catalogs[t.fallback][key]
	}
	if !ok {
		return key
	}
	if len(args) > 0 {
		return fmt.Sprintf(msg, args...)
	}
	return msg
}

// Fields translates a field -> message keys map.
func (t *Translator) Fields(locale string, fields map[string][]string) map[string][]string {
	out := make(map[string][]string, len(fields))
	for field, keys := range fields {
		msgs := make([]string, 0, len(keys))
		for _, key := range keys {
			msgs = append(msgs, t.T(locale, key, field))
		}
		out[field] = msgs
	}
	return out
}
