package cmds

import (
	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/spf13/cobra"
)

// RegisterCommands adds every relay subcommand to rootCmd. Tabular commands
// get the glazed output flags.
func RegisterCommands(rootCmd *cobra.Command) error {
	glazeCommands := []func() (cmds.GlazeCommand, error){
		func() (cmds.GlazeCommand, error) { return NewHealthCommand() },
		func() (cmds.GlazeCommand, error) { return NewModelsCommand() },
		func() (cmds.GlazeCommand, error) { return NewTranscribeCommand() },
		func() (cmds.GlazeCommand, error) { return NewPayloadCommand() },
	}
	for _, newCommand := range glazeCommands {
		command, err := newCommand()
		if err != nil {
			return err
		}
		cobraCommand, err := cli.BuildCobraCommandFromGlazeCommand(command)
		if err != nil {
			return err
		}
		rootCmd.AddCommand(cobraCommand)
	}

	rootCmd.AddCommand(
		NewCompleteCommand(),
		NewRecoverCommand(),
		NewProtocolCommand(),
		NewTokensCommand(),
	)
	return nil
}
