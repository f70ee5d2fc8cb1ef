package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gamevault/api-gateway/internal/openapi"
)

func newOpenAPICmd() *cobra.Command {
	var (
		baseURL    string
		outputFile string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Print the OpenAPI 3.1 description of the HTTP API",
		Example: `  gamevault openapi
  gamevault openapi --server https://api.example.com -o openapi.json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(openapi.Generate(baseURL), "", "  ")
			if err != nil {
				return fmt.Errorf("render openapi: %w", err)
			}
			if outputFile == "" {
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return err
			}
			return os.WriteFile(outputFile, data, 0o644)
		},
	}

	cmd.Flags().StringVar(&baseURL, "server", "", "Server URL to embed in the document")
	cmd.Flags().StringVarP(&outputFile, "output", "o", "", "Write to file instead of stdout")

	return cmd
}
