package careerflow

import (
	"context"
	"fmt"
	"strings"
)

// Supervisor route values. The enum is closed: anything else coming back
// from the model is a schema violation and fails the turn.
const (
	routeFinish    = "finish"
	routeJobSearch = "job_search"
	routeJD        = "jd"
	routeCV        = "cv"
)

// routeDecision is the supervisor's structured classification of a turn.
type routeDecision struct {
	Route string `json:"route"`
	// Brief is the instruction forwarded to the chosen specialist.
	Brief string `json:"brief"`
	// Reply is the message to the user when the route is finish.
	Reply string `json:"reply"`
}

var routeSchema = &ResponseSchema{
	Name: "supervisor_route",
	Schema: []byte(`{
		"type": "object",
		"properties": {
			"route": {"type": "string", "enum": ["finish", "job_search", "jd", "cv"]},
			"brief": {"type": "string"},
			"reply": {"type": "string"}
		},
		"required": ["route"]
	}`),
}

const supervisorPrompt = `You are the supervisor of a career assistant.
Decide what to do with the user's latest message.

Routes:
- "finish": answer the user yourself. Use it for greetings, small talk,
  thanks, questions you can answer from the conversation, and for
  presenting results a specialist just returned. Put the answer in "reply".
- "job_search": the user wants to find job postings. Put the search
  instruction in "brief".
- "jd": the user wants job descriptions analyzed, scored against their CV,
  or compared as a market overview. Put the instruction in "brief".
- "cv": the user wants their CV reviewed or rewritten. Put the
  instruction in "brief".

Route to a specialist only when the message actually asks for that work.
A plain greeting is always "finish".`

// supervisorNode is the single node of the root frame. It classifies the
// turn, and on a specialist route composes the handoff brief: its own
// instruction, the user's words verbatim, the stored CV, and any insights
// already collected for the target.
type supervisorNode struct {
	e *Engine
}

func (s *supervisorNode) Name() NodeID { return "classify" }

func (s *supervisorNode) Run(ctx context.Context, st *ThreadState) (StepOutcome, error) {
	// A specialist asking for a job search on its own behalf skips
	// classification; the request is already an instruction.
	if t := st.Transfer; t != nil && t.Kind == TransferForward {
		st.Transfer = nil
		st.Sender = FrameSupervisor
		st.Brief = s.handoff(st, routeJobSearch, t.Body)
		return Continue{Next: NodeID(routeJobSearch)}, nil
	}

	// A specialist that could not complete its task ends the turn here.
	// Asking the model what to do with the failure risks routing straight
	// back into the specialist that just failed.
	if t := st.Transfer; t != nil && t.Kind == TransferFailure {
		st.Transfer = nil
		st.Sender = ""
		st.Brief = ""
		return Terminal{Reply: "Sorry, I couldn't complete that. " + t.Body}, nil
	}

	msgs := s.buildContext(ctx, st)
	var dec routeDecision
	if _, err := ChatInto(ctx, s.e.provider, "supervisor_route", msgs, routeSchema, &dec); err != nil {
		return nil, err
	}

	switch dec.Route {
	case routeFinish:
		reply := strings.TrimSpace(dec.Reply)
		if reply == "" {
			if t := st.Transfer; t != nil {
				reply = t.Body
			} else {
				return nil, &ErrSchema{Stage: "supervisor_route", Reason: "finish with empty reply"}
			}
		}
		st.Transfer = nil
		st.Sender = ""
		st.Brief = ""
		return Terminal{Reply: reply}, nil
	case routeJobSearch, routeJD, routeCV:
		st.Transfer = nil
		st.Sender = FrameSupervisor
		st.Brief = s.handoff(st, dec.Route, dec.Brief)
		return Continue{Next: NodeID(dec.Route)}, nil
	default:
		return nil, &ErrSchema{Stage: "supervisor_route", Reason: fmt.Sprintf("unknown route %q", dec.Route)}
	}
}

func (s *supervisorNode) buildContext(ctx context.Context, st *ThreadState) []ChatMessage {
	sys := supervisorPrompt
	if profile, err := s.e.memory.LoadProfile(ctx, st.UserID); err == nil && !profile.IsZero() {
		sys += "\n\nWhat you know about the user:\n" + profile.Render()
	}
	msgs := []ChatMessage{SystemMessage(st.SystemPrompt(sys))}
	msgs = append(msgs, st.History()...)
	if t := st.Transfer; t != nil {
		msgs = append(msgs, SystemMessage(fmt.Sprintf(
			"The %s specialist returned (%s):\n%s", t.From, t.Kind, t.Body)))
	}
	return msgs
}

// handoff composes the brief a specialist receives: the supervisor's
// instruction, the user's latest words quoted verbatim, the CV, and the
// reviewer insights relevant to the target.
func (s *supervisorNode) handoff(st *ThreadState, route, brief string) string {
	var b strings.Builder
	b.WriteString(brief)
	if u := st.LastUserMessage(); u != "" {
		fmt.Fprintf(&b, "\n(user said: %q)", u)
	}
	if st.CVText != "" {
		b.WriteString("\n\nUser CV:\n")
		b.WriteString(st.CVText)
	}
	if route == routeCV || route == routeJD {
		if st.ContentReview != nil {
			b.WriteString("\n\nEarlier content review:\n")
			b.WriteString(st.ContentReview.Render())
		}
		if st.FormatReview != "" {
			b.WriteString("\n\nEarlier format review:\n")
			b.WriteString(st.FormatReview)
		}
	}
	return b.String()
}
