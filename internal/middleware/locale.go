package middleware

import (
	"github.com/gin-gonic/gin"

	"qrattendance/internal/i18n"
)

// Locale negotiates the response language from Accept-Language.
func Locale(tr *i18n.Translator) gin.HandlerFunc {
	return func(c *gin.Context) {
		locale := tr.Negotiate(c.GetHeader("Accept-Language"))
		c.Set(localeKey, locale)
		c.Set(translatorKey, tr)
		c.Writer.Header().Set("Content-Language", locale)
		c.Next()
	}
}

func translator(c *gin.Context) (*i18n.Translator, string) {
	locale := c.GetString(localeKey)
	if v, ok := c.Get(translatorKey); ok {
		if tr, ok := v.(*i18n.Translator); ok {
			return tr, locale
		}
	}
	return defaultTranslator, locale
}

var defaultTranslator = i18n.NewTranslator(i18n.English, []string{i18n.English})

// Message localizes key for the request.
func Message(c *gin.Context, key string, args ...any) string {
	tr, locale := translator(c)
	return tr.T(locale, key, args...)
}
