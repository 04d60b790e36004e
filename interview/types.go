package interview

import "time"

// JobPosting is an immutable search result. Sessions reference the
// posting the user picked; they never mutate it.
type JobPosting struct {
	Title       string `json:"title"`
	Company     string `json:"company"`
	Description string `json:"description"`
	URL         string `json:"url"`
}

// Prompt is one interviewer question: text plus a TTS playback URL.
// TotalQuestions is 0 when the backend runs a dynamic-length interview.
type Prompt struct {
	Text           string
	AudioURL       string
	TotalQuestions int
}

type Speaker string

const (
	SpeakerSystem Speaker = "system"
	SpeakerUser   Speaker = "user"
)

// Turn is a single exchange in the conversation log. Turns are append-only.
type Turn struct {
	ID       string
	Speaker  Speaker
	Text     string
	AudioURL string
}

// HistoryEntry is one line of the backend's conversation record.
type HistoryEntry struct {
	Role string
	Text string
}

// Report is the scored outcome of a finished interview. Fetched at most
// once per session; immutable after that.
type Report struct {
	OverallScore    float64
	Hired           bool
	DimensionScores map[string]float64
	History         []HistoryEntry
}

// Answer is one finalized user response ready for upload.
type Answer struct {
	AudioMime string
	Audio     []byte
	ImageJPEG []byte // optional webcam still, raw JPEG bytes
	Duration  time.Duration
}

type StartRequest struct {
	Job       JobPosting
	ModelName string
}

// Started carries the backend-assigned session identity and the opening
// question.
type Started struct {
	SessionID string
	First     Prompt
}

// Wire shapes, exactly as the backend speaks them.

type jobsResponse struct {
	Jobs []JobPosting `json:"jobs"`
}

type startRequestWire struct {
	Job            JobPosting `json:"job"`
	JobDescription string     `json:"job_description"`
	ModelName      string     `json:"model_name,omitempty"`
}

type startResponseWire struct {
	SessionID     string `json:"session_id"`
	FirstQuestion struct {
		Text           string `json:"text"`
		AudioURL       string `json:"audio_url"`
		TotalQuestions int    `json:"total_questions"`
	} `json:"first_question"`
}

type submitResponseWire struct {
	UserText       string `json:"user_text"`
	Text           string `json:"text"`
	AudioURL       string `json:"audio_url"`
	InterviewEnded bool   `json:"interview_ended"`
}

type reportResponseWire struct {
	OverallScore        float64            `json:"overall_score"`
	Hired               bool               `json:"hired"`
	DimensionScores     map[string]float64 `json:"dimension_scores"`
	ConversationHistory []struct {
		Role  string `json:"role"`
		Parts []struct {
			Text string `json:"text"`
		} `json:"parts"`
	} `json:"conversation_history"`
	Error string `json:"error"`
}

func (r reportResponseWire) toReport() *Report {
	rep := &Report{
		OverallScore:    r.OverallScore,
		Hired:           r.Hired,
		DimensionScores: r.DimensionScores,
	}
	for _, h := range r.ConversationHistory {
		text := ""
		if len(h.Parts) > 0 {
			text = h.Parts[0].Text
		}
		rep.History = append(rep.History, HistoryEntry{Role: h.Role, Text: text})
	}
	return rep
}

// streamFrameWire is one server-to-client message in streaming mode.
type streamFrameWire struct {
	Speaker        string `json:"speaker"`
	Text           string `json:"text"`
	AudioURL       string `json:"audio_url"`
	InterviewEnded bool   `json:"interview_ended"`
}

// streamEndWire is the client-to-server orderly close request.
type streamEndWire struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id"`
}
