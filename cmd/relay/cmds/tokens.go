package cmds

import (
	"fmt"

	"github.com/go-go-golems/relay/pkg/tokens"
	"github.com/spf13/cobra"
)

func NewTokensCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens",
		Short: "Commands related to tokens",
	}

	var model string
	count := &cobra.Command{
		Use:   "count [file]",
		Short: "Count the tokens of a file or stdin",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			n, err := tokens.Count(model, string(b))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%d\n", n)
			return err
		},
	}
	count.Flags().StringVarP(&model, "model", "m", "gpt-4", "Model whose encoding is used")
	cmd.AddCommand(count)

	return cmd
}
