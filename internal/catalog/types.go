package catalog

type QuestionType string

const (
	TypeBoolean       QuestionType = "boolean"
	TypeSingleChoice  QuestionType = "single_choice"
	TypeOpenEnded     QuestionType = "open_ended"
	TypeCodeChallenge QuestionType = "code_challenge"
	TypeDebugFix      QuestionType = "debug_fix"
)

type typeInfo struct {
	autoGradable     bool
	suggestedSeconds int
}

// questionTypes is the single place per-type behaviour is declared.
var questionTypes = map[QuestionType]typeInfo{
	TypeBoolean:       {autoGradable: true, suggestedSeconds: 45},
	TypeSingleChoice:  {autoGradable: true, suggestedSeconds: 90},
	TypeOpenEnded:     {autoGradable: false, suggestedSeconds: 300},
	TypeCodeChallenge: {autoGradable: false, suggestedSeconds: 480},
	TypeDebugFix:      {autoGradable: false, suggestedSeconds: 360},
}

// Fallback for types missing from the table.
const defaultSuggestedSeconds = 120

func (t QuestionType) Valid() bool {
	_, ok := questionTypes[t]
	return ok
}

func (t QuestionType) AutoGradable() bool {
	return questionTypes[t].autoGradable
}

func (t QuestionType) SuggestedSeconds() int {
	if info, ok := questionTypes[t]; ok {
		return info.suggestedSeconds
	}
	return defaultSuggestedSeconds
}

type Difficulty string

const (
	Beginner     Difficulty = "beginner"
	Intermediate Difficulty = "intermediate"
	Advanced     Difficulty = "advanced"
)

// Difficulties in ascending rank order.
var Difficulties = []Difficulty{Beginner, Intermediate, Advanced}

// Rank returns 1..3 for known levels; unknown levels sort last.
func (d Difficulty) Rank() int {
	switch d {
	case Beginner:
		return 1
	case Intermediate:
		return 2
	case Advanced:
		return 3
	default:
		return 4
	}
}

type SectionType string

const (
	SectionMixed          SectionType = "mixed"
	SectionMultipleChoice SectionType = "multiple_choice"
	SectionCoding         SectionType = "coding"
	SectionWritten        SectionType = "written"
)

var sectionTypes = map[SectionType][]QuestionType{
	SectionMixed:          nil, // no restriction
	SectionMultipleChoice: {TypeBoolean, TypeSingleChoice},
	SectionCoding:         {TypeCodeChallenge, TypeDebugFix},
	SectionWritten:        {TypeOpenEnded},
}

func (s SectionType) Valid() bool {
	_, ok := sectionTypes[s]
	return ok
}

// AllowedTypes returns the types a section admits; nil means any.
func (s SectionType) AllowedTypes() []QuestionType {
	return sectionTypes[s]
}

func (s SectionType) Admits(t QuestionType) bool {
	allowed, ok := sectionTypes[s]
	if !ok {
		return false
	}
	if allowed == nil {
		return true
	}
	for _, a := range allowed {
		if a == t {
			return true
		}
	}
	return false
}

const (
	BucketQuick    = "quick"
	BucketStandard = "standard"
	BucketExtended = "extended"
)

// TimeBucket classifies an estimated duration in seconds.
func TimeBucket(seconds int) string {
	switch {
	case seconds < 60:
		return BucketQuick
	case seconds <= 180:
		return BucketStandard
	default:
		return BucketExtended
	}
}
