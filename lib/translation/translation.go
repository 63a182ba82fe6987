package translation

import (
	"strings"

	"github.com/leonelquinteros/gotext"
)

// Configure loads the "default" domain for lang from dir. Message ids are English, so a missing
// locale falls back to them.
func Configure(dir, lang string) {
	gotext.Configure(dir, strings.ToLower(lang), "default")
}

func GetLanguage() string {
	lang := gotext.GetLanguage()

	if lang == "und" || lang == "" {
		return "en"
	}

	return lang
}

func Translate(msgID string, vars ...interface{}) string {
	return gotext.Get(msgID, vars...)
}
