package cmds

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/layers"
	"github.com/go-go-golems/glazed/pkg/cmds/parameters"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"
	"github.com/go-go-golems/relay/pkg/providers/voice"
	"github.com/pkg/errors"
)

type TranscribeCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &TranscribeCommand{}

func NewTranscribeCommand() (*TranscribeCommand, error) {
	glazedParameterLayer, err := settings.NewGlazedParameterLayers()
	if err != nil {
		return nil, err
	}

	return &TranscribeCommand{
		CommandDescription: cmds.NewCommandDescription(
			"transcribe",
			cmds.WithShort("Transcribe an audio file, optionally answering the transcript"),
			cmds.WithArguments(
				parameters.NewParameterDefinition(
					"audio-file",
					parameters.ParameterTypeString,
					parameters.WithHelp("Audio recording to upload"),
					parameters.WithRequired(true),
				),
			),
			cmds.WithFlags(
				parameters.NewParameterDefinition(
					"respond",
					parameters.ParameterTypeBool,
					parameters.WithHelp("Send the transcript to the configured responder"),
					parameters.WithDefault(false),
				),
				parameters.NewParameterDefinition(
					"filename",
					parameters.ParameterTypeString,
					parameters.WithHelp("Filename sent with the upload (default: base name of the file)"),
				),
			),
			cmds.WithLayersList(
				glazedParameterLayer,
			),
		),
	}, nil
}

type TranscribeSettings struct {
	AudioFile string `glazed.parameter:"audio-file"`
	Respond   bool   `glazed.parameter:"respond"`
	Filename  string `glazed.parameter:"filename"`
}

func (c *TranscribeCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsedLayers *layers.ParsedLayers,
	gp middlewares.Processor,
) error {
	s := &TranscribeSettings{}
	err := parsedLayers.InitializeStruct(layers.DefaultSlug, s)
	if err != nil {
		return err
	}

	audio, err := os.ReadFile(s.AudioFile)
	if err != nil {
		return errors.Wrapf(err, "could not read %s", s.AudioFile)
	}
	filename := s.Filename
	if filename == "" {
		filename = filepath.Base(s.AudioFile)
	}

	return withApp(ctx, os.Stderr, func(app *App) error {
		p, err := app.Voice()
		if err != nil {
			return err
		}

		res := &voice.Result{}
		if s.Respond {
			res, err = p.Process(ctx, audio, filename)
		} else {
			res.Transcript, err = p.Transcribe(ctx, audio, filename)
		}
		if err != nil {
			return err
		}
		return gp.AddRow(ctx, transcriptRow(s.AudioFile, res, s.Respond))
	})
}

func transcriptRow(file string, res *voice.Result, responded bool) types.Row {
	fields := []types.MapRowPair{
		types.MRP("file", file),
		types.MRP("transcript", res.Transcript),
	}
	if responded {
		fields = append(fields,
			types.MRP("response", res.Response),
			types.MRP("message_id", res.MessageID),
		)
	}
	return types.NewRow(fields...)
}
