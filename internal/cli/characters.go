package cli

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/soradev/hearth/internal/model/character"
)

var charactersCmd = &cobra.Command{
	Use:   "characters",
	Short: "List the characters the server offers",
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := http.NewRequestWithContext(cmd.Context(), http.MethodGet, serverURL+"/api/characters", nil)
		if err != nil {
			return err
		}

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("cannot reach server at %s: %w", serverURL, err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("server returned status %d", resp.StatusCode)
		}

		var roster []character.Character
		if err := json.NewDecoder(resp.Body).Decode(&roster); err != nil {
			return fmt.Errorf("decode roster: %w", err)
		}

		for _, c := range roster {
			fmt.Printf("%-12s %s\n", c.Name, c.Title)
		}
		return nil
	},
}
