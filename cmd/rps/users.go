package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "List stored players",
	Long: `List every stored player with their game tally.

Examples:
  rps users
  rps users --db ./rps.db`,
	Args: cobra.NoArgs,
	Run:  runUsers,
}

func runUsers(cmd *cobra.Command, _ []string) {
	store := openRecords(cmd)
	defer store.Close()

	users, err := store.ListUsers(context.Background())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error listing players: %v\n", err)
		os.Exit(1)
	}

	if len(users) == 0 {
		fmt.Println("No players stored yet.")
		fmt.Println()
		fmt.Println("Run 'rps serve' and log in to create the first one.")
		return
	}

	fmt.Println("Players:")
	fmt.Println()
	fmt.Printf("  %-16s  %-5s  %-4s  %-6s  %-7s  %s\n", "Username", "Games", "Wins", "Losses", "Friends", "Joined")
	fmt.Printf("  %-16s  %-5s  %-4s  %-6s  %-7s  %s\n", "--------", "-----", "----", "------", "-------", "------")
	for _, u := range users {
		fmt.Printf("  %-16s  %-5d  %-4d  %-6d  %-7d  %s\n",
			u.Username,
			u.Stats.GamesPlayed,
			u.Stats.Wins,
			u.Stats.Losses,
			len(u.Friends),
			u.CreatedAt.Format("2006-01-02"),
		)
	}
}
