package models

// JDAnalysis is the structured result of a Day 0 job description analysis.
// Nested objects and required strings are pointers so a missing or null key
// fails validation while an empty string is still accepted.
type JDAnalysis struct {
	RoleSummary               *string           `json:"role_summary" validate:"required"`
	ExtractedRequirements     []string          `json:"extracted_requirements" validate:"required"`
	ExtractedResponsibilities []string          `json:"extracted_responsibilities" validate:"required"`
	Scorecard                 []ScoreItem       `json:"scorecard" validate:"required,dive"`
	StrengthsAndGaps          *StrengthsAndGaps `json:"strengths_and_gaps" validate:"required"`
	Storyline                 *Storyline        `json:"storyline" validate:"required"`
	InterviewPrep             *InterviewPrep    `json:"interview_prep" validate:"required"`
	DownsideCase              *DownsideCase     `json:"downside_case" validate:"required"`
}

type Evidence struct {
	Quote *string `json:"quote" validate:"required"`
	Note  *string `json:"note" validate:"required"`
}

type ScoreItem struct {
	Quality   *string    `json:"quality" validate:"required"`
	Score     int        `json:"score" validate:"min=1,max=5"`
	Rationale *string    `json:"rationale" validate:"required"`
	Evidence  []Evidence `json:"evidence" validate:"dive"`
	Unknowns  []string   `json:"unknowns"`
}

type StrengthsAndGaps struct {
	Strengths        []string `json:"strengths"`
	Gaps             []string `json:"gaps"`
	BridgingLanguage []string `json:"bridging_language"`
}

type Storyline struct {
	WhyCompany []string `json:"why_company"`
	WhyRole    []string `json:"why_role"`
	WhyMe      []string `json:"why_me"`
	Closing    []string `json:"closing"`
}

type InterviewPrep struct {
	LikelyQuestions []string `json:"likely_questions"`
	QuestionsToAsk  []string `json:"questions_to_ask"`
}

type DownsideCase struct {
	TopRisks     []string `json:"top_risks"`
	WhatToVerify []string `json:"what_to_verify"`
}

// Normalize replaces nil lists with empty ones so exported JSON always
// carries arrays rather than nulls.
func (a *JDAnalysis) Normalize() {
	if a == nil {
		return
	}
	for i := range a.Scorecard {
		if a.Scorecard[i].Evidence == nil {
			a.Scorecard[i].Evidence = []Evidence{}
		}
		if a.Scorecard[i].Unknowns == nil {
			a.Scorecard[i].Unknowns = []string{}
		}
	}
	if sg := a.StrengthsAndGaps; sg != nil {
		sg.Strengths = nonNil(sg.Strengths)
		sg.Gaps = nonNil(sg.Gaps)
		sg.BridgingLanguage = nonNil(sg.BridgingLanguage)
	}
	if s := a.Storyline; s != nil {
		s.WhyCompany = nonNil(s.WhyCompany)
		s.WhyRole = nonNil(s.WhyRole)
		s.WhyMe = nonNil(s.WhyMe)
		s.Closing = nonNil(s.Closing)
	}
	if p := a.InterviewPrep; p != nil {
		p.LikelyQuestions = nonNil(p.LikelyQuestions)
		p.QuestionsToAsk = nonNil(p.QuestionsToAsk)
	}
	if d := a.DownsideCase; d != nil {
		d.TopRisks = nonNil(d.TopRisks)
		d.WhatToVerify = nonNil(d.WhatToVerify)
	}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
