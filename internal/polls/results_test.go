package polls

import (
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/gatherly/backend/internal/models"
)

func buildPoll(optionCount int) *models.Poll {
	p := &models.Poll{ID: uuid.New(), Status: models.StatusVoting}
	for i := 0; i < optionCount; i++ {
		p.Options = append(p.Options, models.PollOption{ID: uuid.New(), Label: "opt", Position: i})
	}
	return p
}

func addVote(p *models.Poll, available, maybe []uuid.UUID) uuid.UUID {
	voter := uuid.New()
	p.Votes = append(p.Votes, models.Vote{
		ID:                 uuid.New(),
		PollID:             p.ID,
		VoterID:            voter,
		AvailableOptionIDs: available,
		MaybeOptionIDs:     maybe,
	})
	return voter
}

func TestComputeResultsEmptyPoll(t *testing.T) {
	p := buildPoll(2)
	res := ComputeResults(p, 5)

	if res.TotalVoters != 0 {
		t.Errorf("total voters = %d", res.TotalVoters)
	}
	if res.WinningOptionID != nil {
		t.Error("winner set with zero votes")
	}
	if res.ResponseRate != 0 {
		t.Errorf("response rate = %f, want 0", res.ResponseRate)
	}
	for _, o := range res.Options {
		if o.Percentage != 0 || o.VoteCount != 0 {
			t.Errorf("option %s: count=%d pct=%f, want zeros", o.OptionID, o.VoteCount, o.Percentage)
		}
		if o.Voters == nil {
			t.Error("voters slice should be empty, not nil")
		}
	}
}

func TestComputeResultsCountsAndPercentages(t *testing.T) {
	p := buildPoll(3)
	a, b, c := p.Options[0].ID, p.Options[1].ID, p.Options[2].ID

	addVote(p, []uuid.UUID{a, b}, nil)
	addVote(p, []uuid.UUID{a}, []uuid.UUID{c})
	addVote(p, []uuid.UUID{b}, nil)
	addVote(p, nil, []uuid.UUID{c}) // maybe-only voter still counts toward the denominator

	res := ComputeResults(p, 8)

	if res.TotalVoters != 4 {
		t.Fatalf("total voters = %d, want 4", res.TotalVoters)
	}
	byID := make(map[uuid.UUID]OptionResult)
	for _, o := range res.Options {
		byID[o.OptionID] = o
	}
	if byID[a].VoteCount != 2 || byID[b].VoteCount != 2 || byID[c].VoteCount != 0 {
		t.Errorf("counts a=%d b=%d c=%d, want 2 2 0", byID[a].VoteCount, byID[b].VoteCount, byID[c].VoteCount)
	}
	if byID[c].MaybeCount != 2 {
		t.Errorf("maybe count c = %d, want 2", byID[c].MaybeCount)
	}
	if math.Abs(byID[a].Percentage-50.0) > 1e-9 {
		t.Errorf("percentage a = %f, want 50", byID[a].Percentage)
	}
	if math.Abs(res.ResponseRate-50.0) > 1e-9 {
		t.Errorf("response rate = %f, want 50", res.ResponseRate)
	}

	// a and b tie on 2 votes; the earlier option wins.
	if res.WinningOptionID == nil || *res.WinningOptionID != a {
		t.Errorf("winner = %v, want first-position option %s", res.WinningOptionID, a)
	}
}

func TestComputeResultsWinner(t *testing.T) {
	p := buildPoll(2)
	b := p.Options[1].ID
	addVote(p, []uuid.UUID{b}, nil)
	addVote(p, []uuid.UUID{b}, nil)
	addVote(p, []uuid.UUID{p.Options[0].ID}, nil)

	res := ComputeResults(p, 0)
	if res.WinningOptionID == nil || *res.WinningOptionID != b {
		t.Errorf("winner = %v, want %s", res.WinningOptionID, b)
	}
	if res.ResponseRate != 0 {
		t.Errorf("response rate with zero audience = %f, want 0", res.ResponseRate)
	}
}

func TestAttendees(t *testing.T) {
	p := buildPoll(2)
	winning := p.Options[0].ID
	v1 := addVote(p, []uuid.UUID{winning}, nil)
	addVote(p, []uuid.UUID{p.Options[1].ID}, nil)
	v3 := addVote(p, []uuid.UUID{winning, p.Options[1].ID}, nil)
	addVote(p, nil, []uuid.UUID{winning}) // maybe does not make you an attendee

	got := Attendees(p, winning)
	if len(got) != 2 || got[0] != v1 || got[1] != v3 {
		t.Fatalf("attendees = %v, want [%s %s]", got, v1, v3)
	}
}
