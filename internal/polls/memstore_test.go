package polls

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/gatherly/backend/internal/models"
)

// memStore is an in-memory Store used by the engine tests. It mirrors the
// SQL implementation's guard semantics: lifecycle mutators re-check status
// under the lock and fail with ErrInvalidState when the guard no longer holds.
type memStore struct {
	mu      sync.Mutex
	polls   map[uuid.UUID]*models.Poll
	members map[uuid.UUID]map[uuid.UUID]bool // groupID -> userID -> member

	eventsCreated  map[uuid.UUID]int
	eventsAttended map[uuid.UUID]int
	attendance     map[uuid.UUID][]uuid.UUID // pollID -> attendee user ids
}

func newMemStore() *memStore {
	return &memStore{
		polls:          make(map[uuid.UUID]*models.Poll),
		members:        make(map[uuid.UUID]map[uuid.UUID]bool),
		eventsCreated:  make(map[uuid.UUID]int),
		eventsAttended: make(map[uuid.UUID]int),
		attendance:     make(map[uuid.UUID][]uuid.UUID),
	}
}

var _ Store = (*memStore)(nil)

func (s *memStore) addGroupMember(groupID, userID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[groupID] == nil {
		s.members[groupID] = make(map[uuid.UUID]bool)
	}
	s.members[groupID][userID] = true
}

func (s *memStore) CreatePoll(_ context.Context, p *models.Poll) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	p.ID = uuid.New()
	p.CreatedAt = now
	p.UpdatedAt = now
	for i := range p.Options {
		p.Options[i].ID = uuid.New()
		p.Options[i].PollID = p.ID
	}
	for i := range p.Invites {
		p.Invites[i].ID = uuid.New()
		p.Invites[i].PollID = p.ID
		p.Invites[i].CreatedAt = now
	}
	s.polls[p.ID] = clonePoll(p)
	return nil
}

func (s *memStore) GetPoll(_ context.Context, id uuid.UUID) (*models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clonePoll(p), nil
}

func (s *memStore) UpdatePoll(_ context.Context, id uuid.UUID, patch PollPatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[id]
	if !ok {
		return ErrNotFound
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.VotingDeadline != nil {
		p.VotingDeadline = patch.VotingDeadline
	}
	p.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) ListPollsForUser(_ context.Context, userID uuid.UUID) ([]models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Poll
	for _, p := range s.polls {
		if p.CreatorID == userID || p.IsInvited(userID) {
			out = append(out, *clonePoll(p))
		}
	}
	return out, nil
}

func (s *memStore) ListPollsByGroup(_ context.Context, groupID uuid.UUID) ([]models.Poll, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Poll
	for _, p := range s.polls {
		if p.GroupID != nil && *p.GroupID == groupID {
			out = append(out, *clonePoll(p))
		}
	}
	return out, nil
}

func (s *memStore) Finalize(_ context.Context, pollID, optionID uuid.UUID, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[pollID]
	if !ok {
		return ErrNotFound
	}
	if p.Status != models.StatusVoting {
		return ErrInvalidState
	}
	p.Status = models.StatusFinalized
	opt := optionID
	p.FinalizedOptionID = &opt
	at := closedAt
	p.ClosedAt = &at
	p.UpdatedAt = closedAt
	s.eventsCreated[p.CreatorID]++
	// Attendees come from the ledger under the same lock, like the SQL
	// implementation derives them inside the finalize transaction.
	for _, userID := range Attendees(p, optionID) {
		dup := false
		for _, a := range s.attendance[pollID] {
			if a == userID {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		s.attendance[pollID] = append(s.attendance[pollID], userID)
		s.eventsAttended[userID]++
	}
	return nil
}

func (s *memStore) Cancel(_ context.Context, pollID uuid.UUID, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[pollID]
	if !ok {
		return ErrNotFound
	}
	if p.Status == models.StatusFinalized || p.Status == models.StatusCancelled {
		return ErrInvalidState
	}
	p.Status = models.StatusCancelled
	at := closedAt
	p.ClosedAt = &at
	p.UpdatedAt = closedAt
	return nil
}

func (s *memStore) Reopen(_ context.Context, pollID uuid.UUID, deadline time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[pollID]
	if !ok {
		return ErrNotFound
	}
	if !p.Status.Closed() {
		return ErrInvalidState
	}
	p.Status = models.StatusVoting
	p.FinalizedOptionID = nil
	p.ClosedAt = nil
	dl := deadline
	p.VotingDeadline = &dl
	p.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) ExpireDue(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.polls {
		if p.Status == models.StatusVoting && p.VotingDeadline != nil && p.VotingDeadline.Before(now) {
			p.Status = models.StatusExpired
			at := now
			p.ClosedAt = &at
			n++
		}
	}
	return n, nil
}

func (s *memStore) UpsertVote(_ context.Context, v *models.Vote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[v.PollID]
	if !ok {
		return ErrNotFound
	}
	if p.Status != models.StatusVoting {
		return ErrInvalidState
	}
	now := time.Now()
	for i := range p.Votes {
		if p.Votes[i].VoterID == v.VoterID {
			v.ID = p.Votes[i].ID
			v.CreatedAt = p.Votes[i].CreatedAt
			v.UpdatedAt = now
			p.Votes[i] = *v
			s.markVoted(p, v.VoterID, true)
			return nil
		}
	}
	v.ID = uuid.New()
	v.CreatedAt = now
	v.UpdatedAt = now
	p.Votes = append(p.Votes, *v)
	s.markVoted(p, v.VoterID, true)
	return nil
}

func (s *memStore) DeleteVote(_ context.Context, pollID, voterID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[pollID]
	if !ok {
		return false, ErrNotFound
	}
	for i := range p.Votes {
		if p.Votes[i].VoterID == voterID {
			p.Votes = append(p.Votes[:i], p.Votes[i+1:]...)
			s.markVoted(p, voterID, false)
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) GetVote(_ context.Context, pollID, voterID uuid.UUID) (*models.Vote, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[pollID]
	if !ok {
		return nil, ErrNotFound
	}
	for i := range p.Votes {
		if p.Votes[i].VoterID == voterID {
			v := p.Votes[i]
			return &v, nil
		}
	}
	return nil, ErrNotFound
}

func (s *memStore) ListUnvotedInvites(_ context.Context, pollID uuid.UUID) ([]models.PollInvite, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[pollID]
	if !ok {
		return nil, ErrNotFound
	}
	var out []models.PollInvite
	for _, inv := range p.Invites {
		if !inv.HasVoted {
			out = append(out, inv)
		}
	}
	return out, nil
}

func (s *memStore) BumpReminder(_ context.Context, pollID, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.polls[pollID]
	if !ok {
		return ErrNotFound
	}
	for i := range p.Invites {
		if p.Invites[i].UserID == userID {
			p.Invites[i].RemindersSent++
			t := at
			p.Invites[i].LastRemindedAt = &t
		}
	}
	return nil
}

func (s *memStore) IsGroupMember(_ context.Context, groupID, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.members[groupID][userID], nil
}

func (s *memStore) CountGroupMembers(_ context.Context, groupID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.members[groupID]), nil
}

func (s *memStore) markVoted(p *models.Poll, userID uuid.UUID, voted bool) {
	for i := range p.Invites {
		if p.Invites[i].UserID == userID {
			p.Invites[i].HasVoted = voted
		}
	}
}

func clonePoll(p *models.Poll) *models.Poll {
	cp := *p
	cp.Options = append([]models.PollOption(nil), p.Options...)
	cp.Votes = append([]models.Vote(nil), p.Votes...)
	cp.Invites = append([]models.PollInvite(nil), p.Invites...)
	return &cp
}
