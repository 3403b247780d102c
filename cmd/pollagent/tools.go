package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/skosovsky/pollagent"
)

func toolsCmd(_ *app) *cobra.Command {
	var asOpenAI bool
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the demo tool definitions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tools, err := demoTools()
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if asOpenAI {
				defs, err := pollagent.OpenAITools(tools...)
				if err != nil {
					return err
				}
				return enc.Encode(defs)
			}
			type entry struct {
				Name        string          `json:"name"`
				Description string          `json:"description"`
				Schema      json.RawMessage `json:"schema"`
			}
			out := make([]entry, 0, len(tools))
			for _, t := range tools {
				def, err := t.Definition()
				if err != nil {
					return err
				}
				out = append(out, entry{Name: def.Name, Description: def.Description, Schema: json.RawMessage(def.Schema)})
			}
			return enc.Encode(out)
		},
	}
	cmd.Flags().BoolVar(&asOpenAI, "openai", false, "print as chat-completion tool definitions")
	return cmd
}
