package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/rps-arena/internal/config"
	"github.com/vovakirdan/rps-arena/internal/record"
	"github.com/vovakirdan/rps-arena/internal/rules"
	"github.com/vovakirdan/rps-arena/internal/stats"
	"github.com/vovakirdan/rps-arena/internal/storage"
)

var statsCmd = &cobra.Command{
	Use:   "stats <username>",
	Short: "Show stored stats for a player",
	Long: `Display the win/loss tally, move breakdown and per-friend stats for a
stored player.

Examples:
  rps stats alice
  rps stats bob --db ./rps.db`,
	Args: cobra.ExactArgs(1),
	Run:  runStats,
}

// openRecords opens the configured sqlite store for offline commands.
func openRecords(cmd *cobra.Command) *storage.Store {
	cfg, err := loadConfig(cmd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Store.Driver != config.DriverSQLite {
		fmt.Fprintln(os.Stderr, "Error: the memory store keeps nothing to inspect")
		os.Exit(1)
	}
	store, err := storage.Open(cfg.Store.Path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening database: %v\n", err)
		os.Exit(1)
	}
	return store
}

func runStats(cmd *cobra.Command, args []string) {
	username := args[0]
	ctx := context.Background()

	store := openRecords(cmd)
	defer store.Close()

	user, err := store.User(ctx, username)
	if errors.Is(err, record.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "Error: unknown player %q\n", username)
		fmt.Fprintln(os.Stderr, "Run 'rps users' to see stored players.")
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading player: %v\n", err)
		os.Exit(1)
	}

	games, err := store.Games(ctx, user.GameIDs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading games: %v\n", err)
		os.Exit(1)
	}
	report := stats.Compute(user.Username, user.Friends, games)

	fmt.Printf("Stats - %s\n", user.Username)
	fmt.Println()

	if report.Aggregate.TotalGames == 0 {
		fmt.Println("No games recorded yet.")
		return
	}

	agg := report.Aggregate
	fmt.Printf("  %-14s  %d\n", "Games", agg.TotalGames)
	fmt.Printf("  %-14s  %d\n", "Wins", agg.TotalWins)
	fmt.Printf("  %-14s  %d\n", "Losses", agg.TotalLosses)
	fmt.Printf("  %-14s  %.2f%%\n", "Win rate", agg.WinRate)
	fmt.Printf("  %-14s  %.2f\n", "Rounds/game", agg.AvgRoundsPerGame)
	if agg.MostPlayedMove != nil {
		fmt.Printf("  %-14s  %s\n", "Favorite move", *agg.MostPlayedMove)
	}

	// Print move breakdown
	fmt.Println()
	fmt.Printf("  %-8s  %-6s  %-6s  %s\n", "Move", "Played", "Won", "Lost")
	fmt.Printf("  %-8s  %-6s  %-6s  %s\n", "----", "------", "---", "----")
	for _, m := range rules.Moves() {
		ms := agg.Moves[m]
		fmt.Printf("  %-8s  %-6d  %-6d  %d\n", m, ms.Count, ms.Wins, ms.Losses)
	}

	if len(report.PerFriend) == 0 {
		return
	}

	friends := make([]string, 0, len(report.PerFriend))
	for f := range report.PerFriend {
		friends = append(friends, f)
	}
	sort.Strings(friends)

	fmt.Println()
	fmt.Printf("  %-16s  %-5s  %-4s  %-6s  %s\n", "Friend", "Games", "Wins", "Losses", "Win rate")
	fmt.Printf("  %-16s  %-5s  %-4s  %-6s  %s\n", "------", "-----", "----", "------", "--------")
	for _, f := range friends {
		s := report.PerFriend[f]
		fmt.Printf("  %-16s  %-5d  %-4d  %-6d  %.2f%%\n", f, s.TotalGames, s.TotalWins, s.TotalLosses, s.WinRate)
	}
}
