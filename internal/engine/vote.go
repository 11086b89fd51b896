package engine

import (
	"sort"
	"time"

	"github.com/outfoxed-dev/mafia-server/internal/dispatch"
	"github.com/outfoxed-dev/mafia-server/internal/domain/role"
	"github.com/outfoxed-dev/mafia-server/internal/domain/room"
	"github.com/outfoxed-dev/mafia-server/internal/protocol"
)

// removalNoticeSeconds is the warning before a host-requested removal vote.
const removalNoticeSeconds = 2

// enterVoting opens the ballot. A nil candidate list means an open vote
// among the living; a non-nil list restricts the ballot (removal votes and
// revotes).
func (g *Game) enterVoting(candidates []string) {
	g.votes = make(map[string]string)
	g.voteCandidates = candidates

	g.enterPhase(PhaseVoting)

	ballot := candidates
	if ballot == nil {
		ballot = g.aliveIDs()
	}
	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type:     protocol.EventVoteStarted,
		Payload:  protocol.VoteStartedPayload{Timer: g.phaseRemaining, Candidates: ballot},
		Audience: dispatch.ToAlive(),
	})
}

// HandleVote records, recasts or withdraws a day vote. An empty target is
// an abstention when settings allow it, a withdrawal otherwise.
func (g *Game) HandleVote(voter, target string) error {
	if g.over || g.phase != PhaseVoting {
		return protocol.NewError(protocol.ErrInvalidPhase, "no vote accepted in %s", g.phase)
	}
	if !g.IsAlive(voter) {
		return protocol.NewError(protocol.ErrNotAuthorized, "only living players vote")
	}
	if target == "" {
		if g.settings.AllowAbstain {
			g.votes[voter] = ""
		} else {
			delete(g.votes, voter)
		}
	} else {
		if !g.IsAlive(target) {
			return protocol.NewError(protocol.ErrInvalidTarget, "target %s is not alive", target)
		}
		if g.voteCandidates != nil && !contains(g.voteCandidates, target) {
			return protocol.NewError(protocol.ErrInvalidTarget, "target %s is not on the ballot", target)
		}
		g.votes[voter] = target
	}

	hasVoted := make([]string, 0, len(g.votes))
	for id := range g.votes {
		hasVoted = append(hasVoted, id)
	}
	sort.Strings(hasVoted)
	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type:     protocol.EventVoteUpdate,
		Payload:  protocol.VoteUpdatePayload{Votes: g.votes, HasVoted: hasVoted},
		Audience: dispatch.ToAll(),
	})

	if g.allBallotsIn() {
		g.tallyVotes()
	}
	return nil
}

// allBallotsIn reports whether every connected living player has voted.
// Players disconnected within grace cannot cast and do not hold the ballot
// open past the timer; a vote they cast before dropping still counts.
func (g *Game) allBallotsIn() bool {
	for _, id := range g.aliveIDs() {
		if !g.connected(id) {
			continue
		}
		if _, ok := g.votes[id]; !ok {
			return false
		}
	}
	return true
}

// HandleRemovalRequest starts a restricted removal vote against one target
// after a short notice. Host authorization is checked by the caller, which
// owns room membership.
func (g *Game) HandleRemovalRequest(target string) error {
	if g.over || g.phase != PhaseDayDiscussion {
		return protocol.NewError(protocol.ErrInvalidPhase, "removal votes only during the day")
	}
	if !g.IsAlive(target) {
		return protocol.NewError(protocol.ErrInvalidTarget, "target %s is not alive", target)
	}
	if g.removalTarget != "" {
		return protocol.NewError(protocol.ErrDuplicateAction, "removal vote already pending")
	}
	g.removalTarget = target
	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type:     protocol.EventVoteRemovalNotice,
		Payload:  protocol.PlayerIDPayload{PlayerID: target},
		Audience: dispatch.ToAll(),
	})

	day := g.dayNumber
	g.deps.Clock.AfterFunc(removalNoticeSeconds*time.Second, func() {
		g.deps.Post(func() {
			if g.over || g.phase != PhaseDayDiscussion || g.dayNumber != day {
				return
			}
			g.enterVoting([]string{g.removalTarget})
		})
	})
	return nil
}

// tallyVotes closes the ballot and applies the outcome.
func (g *Game) tallyVotes() {
	counts := make(map[string]int)
	blank := 0
	for voter, target := range g.votes {
		w := role.VoteWeight(g.roles[voter])
		if target == "" {
			blank += w
			continue
		}
		counts[target] += w
	}

	best := 0
	var tied []string
	for t, c := range counts {
		if c > best {
			best, tied = c, []string{t}
		} else if c == best {
			tied = append(tied, t)
		}
	}
	sort.Strings(tied)

	// Strict plurality over blank: abstentions can block an elimination.
	if best == 0 || best <= blank {
		g.finishVote("", counts)
		return
	}
	if len(tied) > 1 {
		switch g.settings.TiePolicy {
		case room.TieRevote:
			if !g.revoting {
				g.revoting = true
				g.deps.Dispatch.Dispatch(dispatch.Event{
					Type:     protocol.EventVoteResult,
					Payload:  protocol.VoteResultPayload{VoteCounts: counts},
					Audience: dispatch.ToAll(),
				})
				g.enterVoting(tied)
				return
			}
			// A second tie falls through to no elimination.
			g.finishVote("", counts)
			return
		case room.TieRandom:
			g.finishVote(g.deps.RNG.Pick(tied), counts)
			return
		default:
			g.finishVote("", counts)
			return
		}
	}
	g.finishVote(tied[0], counts)
}

// finishVote publishes the result, applies the elimination and moves to
// RESOLUTION. The jester's win pre-empts every other outcome.
func (g *Game) finishVote(eliminated string, counts map[string]int) {
	g.revoting = false
	g.voteCandidates = nil
	g.removalTarget = ""

	result := protocol.VoteResultPayload{VoteCounts: counts}
	if eliminated != "" {
		result.EliminatedID = eliminated
		if g.settings.RevealRoleOnDeath {
			result.EliminatedRole = string(g.roles[eliminated])
		}
	}
	g.deps.Dispatch.Dispatch(dispatch.Event{
		Type:     protocol.EventVoteResult,
		Payload:  result,
		Audience: dispatch.ToAll(),
	})

	if eliminated != "" {
		isJester := g.roles[eliminated] == role.Jester
		g.kill(eliminated, CauseVote)
		g.deps.Dispatch.Dispatch(dispatch.Event{
			Type:     protocol.EventPlayerEliminated,
			Payload:  g.eliminatedPayload(eliminated, CauseVote),
			Audience: dispatch.ToAll(),
		})
		if isJester {
			g.endGame(WinnerJester, []string{eliminated})
			return
		}
	}
	g.votes = nil
	g.enterPhase(PhaseResolution)
}

// afterResolution evaluates win conditions and either ends the game or
// begins the next night.
func (g *Game) afterResolution() {
	if winner, winners, over := g.evaluateWin(); over {
		g.endGame(winner, winners)
		return
	}
	g.enterNight()
}
