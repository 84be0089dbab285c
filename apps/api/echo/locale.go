package echoapi

import (
	"github.com/labstack/echo/v4"
	"golang.org/x/text/language"
)

// localeMatcher negotiates the message locale from the Accept-Language header.
type localeMatcher struct {
	tags    []language.Tag
	matcher language.Matcher
}

// newLocaleMatcher supports ar and en. defaultLocale comes first and wins when nothing matches.
func newLocaleMatcher(defaultLocale string) localeMatcher {
	tags := []language.Tag{language.Arabic, language.English}
	if defaultLocale == "en" {
		tags = []language.Tag{language.English, language.Arabic}
	}
	return localeMatcher{tags: tags, matcher: language.NewMatcher(tags)}
}

// Locale returns "ar" or "en", or "" when the header has no usable preference.
func (m localeMatcher) Locale(ctx echo.Context) string {
	header := ctx.Request().Header.Get("Accept-Language")
	if header == "" {
		return ""
	}
	prefs, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(prefs) == 0 {
		return ""
	}
	_, idx, conf := m.matcher.Match(prefs...)
	if conf == language.No {
		return ""
	}
	base, _ := m.tags[idx].Base()
	return base.String()
}
