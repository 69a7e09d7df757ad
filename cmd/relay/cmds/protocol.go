package cmds

import (
	"fmt"

	"github.com/go-go-golems/relay/pkg/protocol"
	"github.com/go-go-golems/relay/pkg/recovery"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func NewProtocolCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "protocol",
		Short: "Drive execution plans",
	}
	cmd.AddCommand(newProtocolRunCommand())
	return cmd
}

func newProtocolRunCommand() *cobra.Command {
	var (
		endpoint string
		baseURL  string
	)

	cmd := &cobra.Command{
		Use:   "run [file]",
		Short: "Recover a plan payload and step it to completion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readText(cmd, args)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), cmd.ErrOrStderr(), func(app *App) error {
				s := app.Settings.Clone()
				if baseURL != "" {
					s.Protocol.BaseURL = baseURL
				}

				p, res := recovery.ParsePayload(text)
				if len(p.ExecutionPlan.Steps) == 0 {
					return errors.Errorf("no execution plan found (goal %q)", p.PrimaryGoal())
				}
				cleaned := ""
				if res.Recovered() {
					cleaned = res.Text
				}

				m := protocol.NewManager(protocol.NewHTTPExecutor(s.Protocol, app.Dispatcher))
				id, err := m.Init(protocol.NewInitRequest(text, cleaned, p))
				if err != nil {
					return err
				}
				defer func() {
					if active, ok := m.Active(); ok {
						log.Debug().Str("context", active).Msg("resetting unfinished plan")
						m.Reset()
					}
				}()

				w := cmd.OutOrStdout()
				fmt.Fprintf(w, "%s created with %d steps\n", id, len(p.ExecutionPlan.Steps))
				for {
					out, err := m.Step(cmd.Context(), id, endpoint)
					if err != nil {
						return err
					}
					if out.Step != nil {
						fmt.Fprintf(w, "step %d %s (%s): %s\n", out.Index, out.Step.Action, out.Step.MCP, out.Status)
						if len(out.Result) > 0 {
							fmt.Fprintf(w, "  %s\n", out.Result)
						}
					}
					if out.Status == protocol.StatusFinish {
						fmt.Fprintf(w, "%s finished\n", id)
						return nil
					}
				}
			})
		},
	}

	cmd.Flags().StringVar(&endpoint, "endpoint", "", "Step endpoint, relative to the base URL (default from settings)")
	cmd.Flags().StringVar(&baseURL, "base-url", "", "Base URL step endpoints are resolved against")
	return cmd
}
