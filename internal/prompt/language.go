package prompt

import "strings"

// Language is the language the feedback should be written in.
type Language string

const (
	Korean    Language = "Korean"
	English   Language = "English"
	Bilingual Language = "Bilingual"
)

// Languages lists the supported feedback languages in display order.
func Languages() []Language {
	return []Language{Korean, English, Bilingual}
}

// ParseLanguage maps user input onto a Language, defaulting to Korean.
func ParseLanguage(value string) Language {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "english", "en":
		return English
	case "bilingual", "both":
		return Bilingual
	default:
		return Korean
	}
}

// Label is the wording used inside the compiled prompt.
func (l Language) Label() string {
	switch l {
	case English:
		return "English"
	case Bilingual:
		return "Bilingual (한국어+English)"
	default:
		return "Korean (한국어)"
	}
}
