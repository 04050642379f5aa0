package prompt

import (
	"errors"
	"strings"
)

// CustomTopic is the selection value meaning "use the operator supplied topic".
const CustomTopic = "Custom / 사용자 정의"

// ErrEmptyCustomTopic is returned when a custom topic was selected but left blank.
var ErrEmptyCustomTopic = errors.New("custom topic is empty")

// DefaultTopics are the candidate topics offered by the form.
func DefaultTopics() []string {
	return []string{
		"Does technological development change society? / 기술 발전은 사회를 변화시키는가?",
		"Wild Robot: Technology & Nature Coexistence / 와일드 로봇: 기술과 자연의 공존",
		"Digital Citizenship & Online Etiquette / 디지털 시민성과 온라인 예절",
		"AI Ethics in School Life / 학교생활 속 AI 윤리",
	}
}

// IsCustomSelection reports whether selection asks for the custom topic.
func IsCustomSelection(selection string) bool {
	selection = strings.TrimSpace(selection)
	return selection == CustomTopic || strings.EqualFold(selection, "custom")
}

// ResolveTopic picks the topic that goes into the prompt.
func ResolveTopic(selection, custom string, candidates []string) (string, error) {
	selection = strings.TrimSpace(selection)
	custom = strings.TrimSpace(custom)

	switch {
	case IsCustomSelection(selection):
		if custom == "" {
			return "", ErrEmptyCustomTopic
		}
		return custom, nil
	case selection != "":
		return selection, nil
	case custom != "":
		return custom, nil
	case len(candidates) > 0:
		return candidates[0], nil
	default:
		return "", ErrEmptyCustomTopic
	}
}
