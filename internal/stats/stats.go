// Package stats derives aggregate and per-friend statistics from stored games.
package stats

import (
	"math"

	"github.com/vovakirdan/rps-arena/internal/record"
	"github.com/vovakirdan/rps-arena/internal/rules"
)

// MoveStats counts how a player fared with one move across rounds.
type MoveStats struct {
	Count  int `json:"count"`
	Wins   int `json:"wins"`
	Losses int `json:"losses"`
}

// Summary is the derived view of a set of games for one player.
type Summary struct {
	TotalGames       int                      `json:"totalGames"`
	TotalWins        int                      `json:"totalWins"`
	TotalLosses      int                      `json:"totalLosses"`
	TotalRounds      int                      `json:"totalRounds"`
	WinRate          float64                  `json:"winRate"` // Percent, 2 decimals
	Moves            map[rules.Move]MoveStats `json:"moves"`
	MostPlayedMove   *rules.Move              `json:"mostPlayedMove"` // nil without games
	AvgRoundsPerGame float64                  `json:"avgRoundsPerGame"`
}

// Report is the full stats payload for a user.
type Report struct {
	Aggregate Summary            `json:"aggregate"`
	PerFriend map[string]Summary `json:"perFriend"`
}

// Compute builds the aggregate summary over all games plus one summary per
// friend restricted to games shared with that friend.
func Compute(username string, friends []string, games []record.GameRecord) Report {
	report := Report{
		Aggregate: Summarize(username, games),
		PerFriend: make(map[string]Summary, len(friends)),
	}

	for _, friend := range friends {
		var shared []record.GameRecord
		for _, g := range games {
			if g.Includes(username) && g.Includes(friend) {
				shared = append(shared, g)
			}
		}
		report.PerFriend[friend] = Summarize(username, shared)
	}

	return report
}

// Summarize computes stats for username over games.
// Games that do not include username are skipped.
func Summarize(username string, games []record.GameRecord) Summary {
	s := Summary{Moves: make(map[rules.Move]MoveStats, 3)}
	for _, m := range rules.Moves() {
		s.Moves[m] = MoveStats{}
	}

	for _, g := range games {
		if !g.Includes(username) {
			continue
		}

		s.TotalGames++
		switch g.Results[username] {
		case record.ResultWin:
			s.TotalWins++
		case record.ResultLoss:
			s.TotalLosses++
		}

		for _, r := range g.Rounds {
			s.TotalRounds++
			move, ok := r.Moves[username]
			if !ok || !move.Valid() {
				continue
			}
			ms := s.Moves[move]
			ms.Count++
			switch r.Winner {
			case "":
			case username:
				ms.Wins++
			default:
				ms.Losses++
			}
			s.Moves[move] = ms
		}
	}

	if s.TotalGames == 0 {
		return s
	}

	s.WinRate = round2(float64(s.TotalWins) / float64(s.TotalGames) * 100)
	s.AvgRoundsPerGame = round2(float64(s.TotalRounds) / float64(s.TotalGames))

	best := rules.Moves()[0]
	for _, m := range rules.Moves()[1:] {
		if s.Moves[m].Count > s.Moves[best].Count {
			best = m
		}
	}
	s.MostPlayedMove = &best

	return s
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
