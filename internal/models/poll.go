package models

import (
	"math"
	"strings"

	"github.com/anonto42/minglr/backend/internal/apperrors"
)

// PollKind says how a poll's options are to be read
type PollKind string

const (
	// PollGeneral is a free-form single-choice poll.
	PollGeneral PollKind = "general"
	// PollAttendance asks whether members join an activity. Its options are always YES then NO.
	PollAttendance PollKind = "attendance"
)

const (
	attendanceYes = 0
	attendanceNo  = 1
)

// PollOption is one choice with the IDs of the users who picked it
type PollOption struct {
	Text  string   `json:"text" firestore:"text"`
	Votes []string `json:"votes" firestore:"votes"`
}

// Poll is embedded in a message. A user ID appears in at most one option's Votes.
type Poll struct {
	Question string       `json:"question" firestore:"question"`
	Kind     PollKind     `json:"kind" firestore:"kind"`
	Options  []PollOption `json:"options" firestore:"options"`
}

// OptionTally is the derived view of one option
type OptionTally struct {
	Text       string `json:"text"`
	Votes      int    `json:"votes"`
	Percentage int    `json:"percentage"`
}

// NewPoll validates a question and its options and returns a general poll with no votes.
func NewPoll(question string, options []string) (*Poll, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.Invalid("poll question is required")
	}
	opts := make([]PollOption, 0, len(options))
	for _, o := range options {
		if o = strings.TrimSpace(o); o != "" {
			opts = append(opts, PollOption{Text: o, Votes: []string{}})
		}
	}
	if len(opts) < 2 {
		return nil, apperrors.Invalid("a poll needs at least two options")
	}
	return &Poll{Question: question, Kind: PollGeneral, Options: opts}, nil
}

// NewAttendancePoll asks who is coming to the named activity.
func NewAttendancePoll(activityName string) *Poll {
	return &Poll{
		Question: "Who's down for " + activityName + "?",
		Kind:     PollAttendance,
		Options: []PollOption{
			attendanceYes: {Text: "YES", Votes: []string{}},
			attendanceNo:  {Text: "NO", Votes: []string{}},
		},
	}
}

// PollFromInput builds an unvoted poll of the requested kind. Attendance polls only accept YES then NO.
func PollFromInput(in PollInput) (*Poll, error) {
	if in.Kind != PollAttendance {
		return NewPoll(in.Question, in.Options)
	}
	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, apperrors.Invalid("poll question is required")
	}
	if len(in.Options) != 2 || strings.TrimSpace(in.Options[attendanceYes]) != "YES" || strings.TrimSpace(in.Options[attendanceNo]) != "NO" {
		return nil, apperrors.Invalid("attendance poll options must be YES and NO")
	}
	poll := NewAttendancePoll("")
	poll.Question = question
	return poll, nil
}

// Normalize fills defaults on polls read from storage: empty kind means general, nil votes become empty.
func (p *Poll) Normalize() {
	if p.Kind == "" {
		p.Kind = PollGeneral
	}
	for i := range p.Options {
		if p.Options[i].Votes == nil {
			p.Options[i].Votes = []string{}
		}
	}
}

// CastVote moves userID to the chosen option. Voting again for the same option is a no-op.
func (p *Poll) CastVote(userID string, option int) error {
	if userID == "" {
		return apperrors.ErrUnauthenticated
	}
	if option < 0 || option >= len(p.Options) {
		return apperrors.Invalid("option %d is out of range", option)
	}
	for i := range p.Options {
		p.Options[i].Votes = without(p.Options[i].Votes, userID)
	}
	p.Options[option].Votes = append(p.Options[option].Votes, userID)
	return nil
}

// VoteOf returns the option userID voted for.
func (p *Poll) VoteOf(userID string) (int, bool) {
	for i, o := range p.Options {
		for _, v := range o.Votes {
			if v == userID {
				return i, true
			}
		}
	}
	return 0, false
}

// TotalVotes counts votes over all options
func (p *Poll) TotalVotes() int {
	n := 0
	for _, o := range p.Options {
		n += len(o.Votes)
	}
	return n
}

// Tally returns per-option counts and rounded percentages. Percentages are 0 when nobody voted.
func (p *Poll) Tally() []OptionTally {
	total := p.TotalVotes()
	out := make([]OptionTally, len(p.Options))
	for i, o := range p.Options {
		out[i] = OptionTally{Text: o.Text, Votes: len(o.Votes)}
		if total > 0 {
			out[i].Percentage = int(math.Round(float64(len(o.Votes)) / float64(total) * 100))
		}
	}
	return out
}

// Attending reports whether userID answered YES on an attendance poll.
func (p *Poll) Attending(userID string) bool {
	if p.Kind != PollAttendance || len(p.Options) <= attendanceYes {
		return false
	}
	for _, v := range p.Options[attendanceYes].Votes {
		if v == userID {
			return true
		}
	}
	return false
}

// Attendees lists the users who answered YES on an attendance poll
func (p *Poll) Attendees() []string {
	if p.Kind != PollAttendance || len(p.Options) <= attendanceYes {
		return nil
	}
	return append([]string(nil), p.Options[attendanceYes].Votes...)
}

func without(ids []string, id string) []string {
	out := make([]string, 0, len(ids))
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}

// Clone returns a deep copy of the poll
func (p *Poll) Clone() *Poll {
	if p == nil {
		return nil
	}
	c := &Poll{Question: p.Question, Kind: p.Kind, Options: make([]PollOption, len(p.Options))}
	for i, o := range p.Options {
		c.Options[i] = PollOption{Text: o.Text, Votes: append([]string{}, o.Votes...)}
	}
	return c
}
