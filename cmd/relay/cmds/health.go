package cmds

import (
	"context"
	"os"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/relay/pkg/providers"
)

type HealthCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &HealthCommand{}

func NewHealthCommand() (*HealthCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, err
	}

	return &HealthCommand{
		CommandDescription: cmds.NewCommandDescription(
			"health",
			cmds.WithShort("Probe every local provider"),
			cmds.WithLayersList(
				glazedParameterLayer,
			),
		),
	}, nil
}

func (c *HealthCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	return withApp(ctx, os.Stderr, func(app *App) error {
		states := providers.ProbeAll(ctx, app.HealthCheckers()...)
		for _, row := range healthRows(states) {
			if err := gp.AddRow(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

func healthRows(states []providers.HealthState) []types.Row {
	ret := make([]types.Row, 0, len(states))
	for _, s := range states {
		ret = append(ret, types.NewRow(
			types.MRP("provider", s.Provider),
			types.MRP("healthy", s.Healthy),
			types.MRP("checked_at", s.LastCheckedAt.Format(time.RFC3339)),
			types.MRP("error", s.LastError),
		))
	}
	return ret
}
