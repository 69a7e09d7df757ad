package cmds

import (
	"fmt"
	"strings"

	"github.com/go-go-golems/relay/pkg/providers"
	"github.com/go-go-golems/relay/pkg/providers/emc"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func NewCompleteCommand() *cobra.Command {
	var (
		provider string
		system   string
		model    string
		mode     string
	)

	cmd := &cobra.Command{
		Use:   "complete [prompt...]",
		Short: "Run a completion and print the (recovered) answer",
		Long:  "Run a completion against a provider. Without arguments the prompt is read from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			prompt := strings.Join(args, " ")
			if prompt == "" {
				var err error
				prompt, err = readText(cmd, nil)
				if err != nil {
					return err
				}
			}
			if prompt == "" {
				return errors.New("empty prompt")
			}

			return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *App) error {
				if err := app.SetMode(mode); err != nil {
					return err
				}
				completer, err := app.Completer(provider)
				if err != nil {
					return err
				}

				messages := []providers.Message{}
				if system != "" {
					messages = append(messages, providers.System(system))
				}
				messages = append(messages, providers.User(prompt))

				out, err := completer.Complete(cmd.Context(), messages, model)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), out)
				return err
			})
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", emc.Name, "Provider (emc, lmstudio, ollama)")
	cmd.Flags().StringVarP(&system, "system", "s", "", "System prompt")
	cmd.Flags().StringVarP(&model, "model", "m", "", "Model, defaults to the provider's configured model")
	cmd.Flags().StringVar(&mode, "recover", "", "Force JSON recovery of the answer (general, index)")
	return cmd
}
