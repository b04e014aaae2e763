package careerflow

// Mode selects how much visible reasoning the gateway is asked for.
// In ModeNoThink the engine appends the /no_think suffix to system prompts
// and strips any <think> blocks that leak through anyway.
type Mode string

const (
	ModeThink   Mode = "think"
	ModeNoThink Mode = "no_think"
)

// TransferKind tags the payload a specialist hands back to the supervisor.
type TransferKind string

const (
	// TransferJobSearch carries formatted job search findings.
	TransferJobSearch TransferKind = "job_search_result"
	// TransferJDReport carries a batch scoring or market synthesis report.
	TransferJDReport TransferKind = "jd_report"
	// TransferCVResult carries a CV review or the rewritten CV text.
	TransferCVResult TransferKind = "cv_result"
	// TransferForward asks the supervisor to route to the job search
	// specialist on behalf of another specialist.
	TransferForward TransferKind = "forward_job_search"
	// TransferFailure reports that a specialist could not complete its
	// task, e.g. no matching job descriptions were found.
	TransferFailure TransferKind = "failure"
)

// Transfer is the typed payload of a cross-frame handoff. The router
// delivers it to the supervisor frame byte-identical, no matter how deep
// the frame that produced it was nested.
type Transfer struct {
	Kind TransferKind `json:"kind"`
	From FrameID      `json:"from"`
	Body string       `json:"body"`
}

// ThreadState is the full persisted state of one conversation thread.
// Specialist scratch data lives in dedicated typed fields, not in a shared
// untyped map; the Transfer field is the only cross-frame channel.
type ThreadState struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	Mode     Mode   `json:"mode"`

	// Messages is the complete visible history. Cursor counts how many of
	// them have already been folded into RollingSummary; it only grows.
	Messages       []StoredMessage `json:"messages"`
	Cursor         int             `json:"cursor"`
	RollingSummary string          `json:"rolling_summary"`

	// CVText is the user's uploaded CV as plain text.
	CVText string `json:"cv_text"`

	// Sender and Brief describe the current hop: which frame initiated it
	// and the instruction composed for the target.
	Sender FrameID `json:"sender"`
	Brief  string  `json:"brief"`

	// Transfer is set by the router when a specialist resumes the
	// supervisor, and cleared once the supervisor has consumed it.
	Transfer *Transfer `json:"transfer,omitempty"`

	// JDBatch holds the job description ids an analysis subflow operates
	// on; ResolvedJDs the postings they resolved to.
	JDBatch     []string `json:"jd_batch,omitempty"`
	ResolvedJDs []Job    `json:"resolved_jds,omitempty"`

	// CVAction and CVJobID carry the classified CV request between the
	// pipeline's nodes.
	CVAction string `json:"cv_action,omitempty"`
	CVJobID  string `json:"cv_job_id,omitempty"`

	// Collected specialist insights. These survive across turns so later
	// activations can skip work that was already done.
	Requirements  *JDRequirements  `json:"requirements,omitempty"`
	Analysis      *CVAnalysis      `json:"analysis,omitempty"`
	ContentReview *ContentReview   `json:"content_review,omitempty"`
	FormatReview  string           `json:"format_review,omitempty"`
	Feedback      []MatchFeedback  `json:"feedback,omitempty"`
	MarketSummary string           `json:"market_summary,omitempty"`
	RewrittenCV   string           `json:"rewritten_cv,omitempty"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// NewThreadState creates an empty thread for a user.
func NewThreadState(threadID, userID string) *ThreadState {
	now := NowUnix()
	return &ThreadState{
		ThreadID:  threadID,
		UserID:    userID,
		Mode:      ModeThink,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Append adds a message to the history and returns it.
func (st *ThreadState) Append(role, content string) StoredMessage {
	m := StoredMessage{
		ID:        NewID(),
		ThreadID:  st.ThreadID,
		Role:      role,
		Content:   content,
		CreatedAt: NowUnix(),
	}
	st.Messages = append(st.Messages, m)
	st.UpdatedAt = m.CreatedAt
	return m
}

// Tail returns the messages not yet folded into the rolling summary.
func (st *ThreadState) Tail() []StoredMessage {
	if st.Cursor >= len(st.Messages) {
		return nil
	}
	return st.Messages[st.Cursor:]
}

// LastUserMessage returns the most recent user utterance, or "".
func (st *ThreadState) LastUserMessage() string {
	for i := len(st.Messages) - 1; i >= 0; i-- {
		if st.Messages[i].Role == "user" {
			return st.Messages[i].Content
		}
	}
	return ""
}

// History renders the rolling summary plus the unsummarized tail as chat
// messages, ready to place after a system prompt.
func (st *ThreadState) History() []ChatMessage {
	var out []ChatMessage
	if st.RollingSummary != "" {
		out = append(out, SystemMessage("Summary of the earlier conversation:\n"+st.RollingSummary))
	}
	for _, m := range st.Tail() {
		out = append(out, ChatMessage{Role: m.Role, Content: m.Content})
	}
	return out
}

// SystemPrompt applies the thread mode to a base system prompt.
func (st *ThreadState) SystemPrompt(base string) string {
	if st.Mode == ModeNoThink {
		return base + " /no_think"
	}
	return base
}
