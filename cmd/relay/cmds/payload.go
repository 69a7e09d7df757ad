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
	"github.com/go-go-golems/relay/pkg/protocol"
	"github.com/go-go-golems/relay/pkg/recovery"
	"github.com/rs/zerolog/log"
)

type PayloadCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &PayloadCommand{}

func NewPayloadCommand() (*PayloadCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, err
	}

	return &PayloadCommand{
		CommandDescription: cmds.NewCommandDescription(
			"payload",
			cmds.WithShort("Decode model output into a plan payload"),
			cmds.WithLong("Recover a plan payload from a file or stdin. Markdown sections and plain prose are turned into payloads too."),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"file",
					parameters.ParameterTypeString,
					parameters.WithHelp("File to read (default: stdin)"),
				),
			),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"index",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Try a bracket scan before the general cascade"),
					parameters.WithDefault(false),
				),
			),
			cmds.WithLayersList(
				glazedParameterLayer,
			),
		),
	}, nil
}

type PayloadSettings struct {
	File  string `glazed.parameter:"file"`
	Index bool   `glazed.parameter:"index"`
}

func (c *PayloadCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &PayloadSettings{}
	err := parsedLayers.InitializeStruct(layers.DefaultSlug, s)
	if err != nil {
		return err
	}

	b, err := readPath(s.File, os.Stdin)
	if err != nil {
		return err
	}

	mode := recovery.ModeGeneral
	if s.Index {
		mode = recovery.ModeIndex
	}
	p, res := recovery.ParsePayload(string(b), recovery.WithMode(mode))
	return gp.AddRow(ctx, payloadRow(p, res))
}

func payloadRow(p *recovery.Payload, res recovery.Result) types.Row {
	steps := make([]interface{}, 0, len(p.ExecutionPlan.Steps))
	for _, s := range p.ExecutionPlan.Steps {
		steps = append(steps, map[string]interface{}{
			"mcp":    s.MCP.String(),
			"action": s.Action,
		})
	}

	var violations []string
	if res.Recovered() {
		var err error
		violations, err = recovery.ValidatePayload(res.Text)
		if err != nil {
			log.Warn().Err(err).Msg("could not validate payload")
		}
	}

	return types.NewRow(
		types.MRP("stage", res.Stage.String()),
		types.MRP("primary_goal", p.PrimaryGoal()),
		types.MRP("keywords", protocol.KeywordsFromPayload(p)),
		types.MRP("steps", len(p.ExecutionPlan.Steps)),
		types.MRP("execution_plan", steps),
		types.MRP("response", p.Response),
		types.MRP("schema_violations", violations),
	)
}
