package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/go-go-golems/relay/cmd/relay/cmds"
	"github.com/go-go-golems/relay/pkg/helpers"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "relay",
	Short: "relay talks to flaky completion endpoints and repairs what comes back",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// flags are parsed by now, so --log-level and co can be honored
		initLogger()
	},
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = helpers.ContextWithCorrelationID(ctx, "cli-"+uuid.NewString())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		log.Debug().Err(err).Msg("command failed")
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().Bool("with-caller", false, "Log caller")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format (json, text); defaults to text on a terminal")
	rootCmd.PersistentFlags().String("log-file", "", "Log file (default: stderr)")

	rootCmd.PersistentFlags().String("config", "", "Path to config file (default ~/.relay/config.yaml)")
	rootCmd.PersistentFlags().Bool("verbose", false, "Verbose output")

	rootCmd.PersistentFlags().String("emc-api-key", "", "API key for the remote completion endpoints")
	rootCmd.PersistentFlags().String("voice-api-key", "", "API key for the transcription endpoints")
	rootCmd.PersistentFlags().String("lmstudio-url", "", "Base URL of the LM Studio server")
	rootCmd.PersistentFlags().String("ollama-url", "", "Base URL of the Ollama server")

	// --config has to be known before cobra parses anything
	configFile := ""
	for idx, arg := range os.Args {
		if arg == "--config" && len(os.Args) > idx+1 {
			configFile = os.Args[idx+1]
		}
	}

	err := initCommands(rootCmd, configFile)
	cobra.CheckErr(err)

	err = cmds.RegisterCommands(rootCmd)
	cobra.CheckErr(err)
}
