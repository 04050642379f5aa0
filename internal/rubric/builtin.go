package rubric

// Identifiers of the built-in rubrics.
const (
	FivePointID = "five_point"
	FourBandID  = "four_band"
)

func writingItems() []Item {
	return []Item{
		{
			ID:          "understanding",
			Label:       "1) 내용 이해 / Understanding the contents",
			Summary:     "Understanding the contents — 작품/주제 이해도",
			Description: "작품/주제의 핵심 내용, 등장인물의 말과 행동, 개념을 정확히 이해하고 반영했는가?",
		},
		{
			ID:          "ideas_arguments",
			Label:       "2) 아이디어·주장 / Ideas & Argumentation",
			Summary:     "Ideas & Argumentation — 주장·근거·통찰",
			Description: "주장과 근거가 명확하고 통찰이 있는가? 사례·데이터·인용 등으로 뒷받침했는가?",
		},
		{
			ID:          "organization",
			Label:       "3) 구성·전개 / Composition & Organization",
			Summary:     "Composition & Organization — 구조·논리 흐름",
			Description: "서론-본론-결론의 구조, 문단 간 논리 흐름, 연결어 사용이 자연스러운가?",
		},
		{
			ID:          "expression",
			Label:       "4) 표현·문장 / Expression & Sentences",
			Summary:     "Expression & Sentences — 어휘·맞춤법·문장 다양성",
			Description: "어휘 선택, 맞춤법·띄어쓰기, 문장 다양성(단문/복문/병렬)과 명료성이 적절한가?",
		},
		{
			ID:          "attitude_integrity",
			Label:       "5) 태도·성실성 / Attitude & Integrity",
			Summary:     "Attitude & Integrity — 분량·성찰·지침 준수",
			Description: "분량, 주관적 성찰의 깊이, 과제 지침 준수, 인용 표기 등을 성실히 수행했는가?",
		},
	}
}

// FivePoint is the numeric 1–5 rubric with plain-string praise.
func FivePoint() Rubric {
	return Rubric{
		ID:    FivePointID,
		Title: "Student Writing Rubric (5-point scale per item)",
		Items: writingItems(),
		Scale: Scale{
			Min: 1,
			Max: 5,
			Bands: map[int]string{
				5: "탁월/Excellent",
				4: "우수/Strong",
				3: "보통/Adequate",
				2: "미흡/Limited",
				1: "부족/Weak",
			},
		},
		PraiseStyle:     PraiseText,
		RewriteRequired: true,
	}
}

// FourBand is the 1–4 rubric that also asks for a letter grade and quoted praise.
func FourBand() Rubric {
	return Rubric{
		ID:    FourBandID,
		Title: "Student Writing Rubric (4-band scale with letter grade)",
		Items: writingItems(),
		Scale: Scale{
			Min: 1,
			Max: 4,
			Bands: map[int]string{
				4: "매우 우수/Excellent",
				3: "우수/Proficient",
				2: "보통/Developing",
				1: "미흡/Beginning",
			},
		},
		Grades:      []string{"A+", "A0", "B+", "B0", "C+", "C0", "D", "F"},
		PraiseStyle: PraiseQuote,
	}
}
