package cmds

import (
	"context"
	"os"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/relay/pkg/providers"
	"github.com/go-go-golems/relay/pkg/providers/lmstudio"
)

type ModelsCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &ModelsCommand{}

func NewModelsCommand() (*ModelsCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, err
	}

	return &ModelsCommand{
		CommandDescription: cmds.NewCommandDescription(
			"models",
			cmds.WithShort("List the models a local provider serves"),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"provider",
					parameters.ParameterTypeString,
					parameters.WithHelp("Provider (lmstudio, ollama)"),
					parameters.WithDefault(lmstudio.Name),
				),
				parameters.NewParameterDefinition(
					"match",
					parameters.ParameterTypeString,
					parameters.WithHelp("glob the model names have to match"),
				),
			),
			cmds.WithLayersList(
				glazedParameterLayer,
			),
		),
	}, nil
}

type ModelsSettings struct {
	Provider string `glazed.parameter:"provider"`
	Match    string `glazed.parameter:"match"`
}

func (c *ModelsCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &ModelsSettings{}
	err := parsedLayers.InitializeStruct(layers.DefaultSlug, s)
	if err != nil {
		return err
	}

	return withApp(ctx, os.Stderr, func(app *App) error {
		lister, err := app.ModelLister(s.Provider)
		if err != nil {
			return err
		}
		models, err := lister.Models(ctx)
		if err != nil {
			return err
		}
		models, err = providers.FilterModels(models, s.Match)
		if err != nil {
			return err
		}
		for _, row := range modelRows(s.Provider, models) {
			if err := gp.AddRow(ctx, row); err != nil {
				return err
			}
		}
		return nil
	})
}

func modelRows(provider string, models []string) []types.Row {
	ret := make([]types.Row, 0, len(models))
	for _, m := range models {
		ret = append(ret, types.NewRow(
			types.MRP("provider", provider),
			types.MRP("model", m),
		))
	}
	return ret
}
