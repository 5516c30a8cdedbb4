package domain

import (
	"strings"

	"golang.org/x/text/language"
)

var supportedLocales = []language.Tag{language.English, language.German}

var localeMatcher = language.NewMatcher(supportedLocales)

// MatchLocale maps a requested language (a tag or an Accept-Language value)
// onto one of the supported locales. The second result is false when nothing
// was requested or the request does not parse.
func MatchLocale(requested string) (string, bool) {
	trimmed := strings.TrimSpace(requested)
	if trimmed == "" {
		return LocaleEnglish, false
	}
	tags, _, err := language.ParseAcceptLanguage(trimmed)
	if err != nil || len(tags) == 0 {
		return LocaleEnglish, false
	}
	_, index, confidence := localeMatcher.Match(tags...)
	if confidence == language.No {
		return LocaleEnglish, false
	}
	base, _ := supportedLocales[index].Base()
	return base.String(), true
}
