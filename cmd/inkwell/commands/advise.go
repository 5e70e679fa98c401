package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/inkwell-press/inkwell/internal/database"
)

var adviseCmd = &cobra.Command{
	Use:   "advise [query]",
	Short: "Analyze a query and print optimization suggestions",
	Long: `Analyze a query with the heuristic advisor. The query is taken from
the arguments, or from stdin when none are given.`,
	RunE: runAdvise,
}

func init() {
	rootCmd.AddCommand(adviseCmd)
}

func runAdvise(cmd *cobra.Command, args []string) error {
	query := strings.Join(args, " ")
	if query == "" {
		scanner := bufio.NewScanner(os.Stdin)
		var lines []string
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		query = strings.TrimSpace(strings.Join(lines, " "))
	}
	if query == "" {
		return fmt.Errorf("no query given")
	}

	advisor := database.NewQueryAdvisor(1)
	advice := advisor.Analyze(query)

	fmt.Printf("Estimated cost: %.0f\n", advice.EstimatedCost)
	fmt.Printf("Cacheable:      %v\n", advice.CacheRecommendation)
	if len(advice.Suggestions) == 0 {
		fmt.Println("No suggestions.")
		return nil
	}
	fmt.Println("Suggestions:")
	for _, s := range advice.Suggestions {
		fmt.Printf("  - %s\n", s)
	}
	return nil
}
