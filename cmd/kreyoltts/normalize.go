package main

import (
	"fmt"

	"github.com/example/go-kreyol-tts/internal/frontend"
	"github.com/spf13/cobra"
)

func newNormalizeCmd() *cobra.Command {
	var text string

	cmd := &cobra.Command{
		Use:   "normalize",
		Short: "Normalize Haitian Creole text",
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, err := readInputText(text, cmd.InOrStdin())
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), frontend.TextNormalize(input))
			return err
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to normalize (reads stdin when empty)")

	return cmd
}
