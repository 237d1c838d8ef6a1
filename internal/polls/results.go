package polls

import (
	"github.com/google/uuid"

	"github.com/gatherly/backend/internal/models"
)

// OptionResult is the tally for one option.
type OptionResult struct {
	OptionID   uuid.UUID   `json:"option_id"`
	Label      string      `json:"label"`
	Position   int         `json:"position"`
	VoteCount  int         `json:"vote_count"`
	MaybeCount int         `json:"maybe_count"`
	Voters     []uuid.UUID `json:"voters"`
	Percentage float64     `json:"percentage"`
}

// Results aggregates a poll's votes into per-option counts and a winner.
type Results struct {
	PollID          uuid.UUID         `json:"poll_id"`
	Status          models.PollStatus `json:"status"`
	TotalVoters     int               `json:"total_voters"`
	ResponseRate    float64           `json:"response_rate"`
	Options         []OptionResult    `json:"options"`
	WinningOptionID *uuid.UUID        `json:"winning_option_id,omitempty"`
}

// ComputeResults tallies the poll's votes. An option's vote count is the
// number of voters whose available set contains it; percentages are relative
// to distinct voters (0 when nobody voted). The winner is the option with the
// highest count, ties broken by lowest position. audience is the addressable
// voter count (invite list size, or group member count for open polls) and
// drives the response rate.
func ComputeResults(p *models.Poll, audience int) *Results {
	res := &Results{
		PollID:      p.ID,
		Status:      p.Status,
		TotalVoters: len(p.Votes),
		Options:     make([]OptionResult, 0, len(p.Options)),
	}

	available := make(map[uuid.UUID][]uuid.UUID) // option -> voters
	maybe := make(map[uuid.UUID]int)
	for _, v := range p.Votes {
		for _, optID := range v.AvailableOptionIDs {
			available[optID] = append(available[optID], v.VoterID)
		}
		for _, optID := range v.MaybeOptionIDs {
			maybe[optID]++
		}
	}

	var winner *OptionResult
	for _, opt := range p.Options {
		voters := available[opt.ID]
		or := OptionResult{
			OptionID:   opt.ID,
			Label:      opt.Label,
			Position:   opt.Position,
			VoteCount:  len(voters),
			MaybeCount: maybe[opt.ID],
			Voters:     voters,
		}
		if or.Voters == nil {
			or.Voters = []uuid.UUID{}
		}
		if res.TotalVoters > 0 {
			or.Percentage = float64(or.VoteCount) / float64(res.TotalVoters) * 100
		}
		res.Options = append(res.Options, or)
		last := &res.Options[len(res.Options)-1]
		if winner == nil || last.VoteCount > winner.VoteCount ||
			(last.VoteCount == winner.VoteCount && last.Position < winner.Position) {
			winner = last
		}
	}

	if winner != nil && res.TotalVoters > 0 {
		id := winner.OptionID
		res.WinningOptionID = &id
	}
	if audience > 0 {
		res.ResponseRate = float64(res.TotalVoters) / float64(audience) * 100
	}
	return res
}

// Attendees returns the distinct voters whose available set contains optionID,
// in vote order. This is the attendee set recorded when a poll is finalized on
// that option.
func Attendees(p *models.Poll, optionID uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(p.Votes))
	var out []uuid.UUID
	for _, v := range p.Votes {
		if _, dup := seen[v.VoterID]; dup {
			continue
		}
		for _, id := range v.AvailableOptionIDs {
			if id == optionID {
				seen[v.VoterID] = struct{}{}
				out = append(out, v.VoterID)
				break
			}
		}
	}
	return out
}
