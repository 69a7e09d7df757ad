package cmds

import (
	"fmt"

	"github.com/go-go-golems/relay/pkg/recovery"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewRecoverCommand() *cobra.Command {
	var (
		index     bool
		showStage bool
	)

	cmd := &cobra.Command{
		Use:   "recover [file]",
		Short: "Repair JSON embedded in model output",
		Long:  "Run the JSON recovery pipeline over a file or stdin and print the canonical JSON, or the input unchanged when nothing could be recovered.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readInput(cmd, args)
			if err != nil {
				return err
			}
			text := string(b)

			mode := recovery.ModeGeneral
			if index {
				mode = recovery.ModeIndex
			}

			res := recovery.Recover(text, recovery.WithMode(mode))
			if showStage {
				fmt.Fprintf(cmd.ErrOrStderr(), "stage: %s\n", res.Stage)
			}
			if res.Err != nil {
				log.Warn().Err(res.Err).Msg("returning input unchanged")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), res.Text)
			return err
		},
	}

	cmd.Flags().BoolVar(&index, "index", false, "Try a bracket scan before the general cascade")
	cmd.Flags().BoolVar(&showStage, "show-stage", false, "Print the stage that succeeded to stderr")
	return cmd
}
