// Package gateway defines the typed request/response contract between the
// interview core and the remote generative-AI service.
//
// The four turn operations (begin, evaluate, next question, speech) live on
// [Client], which builds prompts, sends them through a pluggable [Backend]
// and validates every structured payload against a fixed JSON schema before
// handing it to the caller. A payload that is missing, malformed or out of
// range is a [*GatewayError]; the core never sees partial data.
//
// All calls are single shot. Retrying a failed turn is the user's decision.
package gateway

import "github.com/MrWong99/carecoach/pkg/audio"

// Region is the jurisdiction the candidate is interviewing in. It selects the
// job title used throughout the prompts.
type Region string

const (
	RegionOntario      Region = "Ontario"
	RegionAlberta      Region = "Alberta"
	RegionManitoba     Region = "Manitoba"
	RegionSaskatchewan Region = "Saskatchewan"
)

// Regions returns every supported region in display order.
func Regions() []Region {
	return []Region{RegionOntario, RegionAlberta, RegionManitoba, RegionSaskatchewan}
}

// IsValid reports whether r is a supported region.
func (r Region) IsValid() bool {
	switch r {
	case RegionOntario, RegionAlberta, RegionManitoba, RegionSaskatchewan:
		return true
	}
	return false
}

// Role returns the job title the region uses for frontline care workers.
func (r Region) Role() string {
	switch r {
	case RegionOntario:
		return "PSW (Personal Support Worker)"
	case RegionAlberta, RegionManitoba:
		return "HCA (Health Care Aide)"
	case RegionSaskatchewan:
		return "CCA (Continuing Care Assistant)"
	}
	return "care worker"
}

// Facility is the category of workplace the interview targets.
type Facility string

const (
	FacilityLTC      Facility = "LTC"
	FacilityHomeCare Facility = "Home Care"
	FacilityHospital Facility = "Hospital"
)

// Facilities returns every supported facility in display order.
func Facilities() []Facility {
	return []Facility{FacilityLTC, FacilityHomeCare, FacilityHospital}
}

// IsValid reports whether f is a supported facility.
func (f Facility) IsValid() bool {
	switch f {
	case FacilityLTC, FacilityHomeCare, FacilityHospital:
		return true
	}
	return false
}

// Describe returns the long form used in prompts.
func (f Facility) Describe() string {
	switch f {
	case FacilityLTC:
		return "long-term care home"
	case FacilityHomeCare:
		return "home care agency"
	case FacilityHospital:
		return "hospital"
	}
	return string(f)
}

// Speaker identifies who produced a transcript entry.
type Speaker string

const (
	SpeakerCoach     Speaker = "coach"
	SpeakerCandidate Speaker = "candidate"
)

// HistoryEntry is one transcript line as sent to the remote service.
type HistoryEntry struct {
	Speaker Speaker
	Text    string
}

// Opening is the result of [Client.BeginSession].
type Opening struct {
	// Line is the greeting plus the first question.
	Line string
}

// Evaluation is the coach's structured feedback on one candidate answer.
type Evaluation struct {
	// Score is in [MinScore, MaxScore].
	Score int

	Strengths   string
	Improvement string
	ModelAnswer string

	// Transcription is the literal text of a spoken answer. Empty for typed
	// answers.
	Transcription string

	// Reaction is the short line the coach says aloud after the answer.
	Reaction string

	// Finished marks the end of the scripted question series.
	Finished bool
}

// Score bounds.
const (
	MinScore = 0
	MaxScore = 10
)

// EvaluateRequest carries one candidate answer to [Client.EvaluateAnswer].
type EvaluateRequest struct {
	Region   Region
	Facility Facility

	// Answer is the typed answer. Ignored when Audio is set.
	Answer string

	// History is the transcript so far, oldest first.
	History []HistoryEntry

	// QuestionIndex is the 1-based index of the question being answered.
	QuestionIndex int

	// Audio, if non-nil, is the recorded answer. The response must then
	// carry a transcription.
	Audio *audio.Blob
}
