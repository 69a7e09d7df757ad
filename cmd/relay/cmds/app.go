// Package cmds holds the relay subcommands.
package cmds

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/go-go-golems/relay/pkg/dispatch"
	"github.com/go-go-golems/relay/pkg/events"
	"github.com/go-go-golems/relay/pkg/providers"
	"github.com/go-go-golems/relay/pkg/providers/emc"
	"github.com/go-go-golems/relay/pkg/providers/lmstudio"
	"github.com/go-go-golems/relay/pkg/providers/ollama"
	"github.com/go-go-golems/relay/pkg/providers/voice"
	"github.com/go-go-golems/relay/pkg/recovery"
	"github.com/go-go-golems/relay/pkg/settings"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// LoadSettings reads the config file viper found, then applies flag and
// environment overrides.
func LoadSettings() (*settings.Settings, error) {
	s, err := settings.LoadFile(viper.ConfigFileUsed())
	if err != nil {
		return nil, err
	}
	if v := viper.GetString("emc-api-key"); v != "" {
		s.EMC.APIKey = v
	}
	if v := viper.GetString("voice-api-key"); v != "" {
		s.Voice.APIKey = v
	}
	if v := viper.GetString("lmstudio-url"); v != "" {
		s.LMStudio.BaseURL = v
	}
	if v := viper.GetString("ollama-url"); v != "" {
		s.Ollama.BaseURL = v
	}
	return s, nil
}

// App wires settings, the failure bus and the dispatcher for one command run.
type App struct {
	Settings   *settings.Settings
	Dispatcher *dispatch.Dispatcher
	Finisher   *providers.Finisher

	emc      *emc.Provider
	lmstudio *lmstudio.Provider
	ollama   *ollama.Provider

	bus    *events.Bus
	cancel context.CancelFunc
	done   chan error
}

// NewApp starts the failure bus; notices are printed to w.
func NewApp(ctx context.Context, w io.Writer) (*App, error) {
	s, err := LoadSettings()
	if err != nil {
		return nil, err
	}

	bus, err := events.NewBus(events.WithVerbose(viper.GetBool("verbose")))
	if err != nil {
		return nil, err
	}
	bus.AddHandler("print-failures", events.FailureTopic, events.NoticePrinter(w))

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- bus.Run(runCtx)
	}()
	<-bus.Running()

	finisher := providers.NewFinisher()
	if len(s.Markers.Index) > 0 {
		finisher.Classifier.IndexMarkers = s.Markers.Index
	}
	if len(s.Markers.Structure) > 0 {
		finisher.Classifier.StructureMarkers = s.Markers.Structure
	}

	d := dispatch.NewDispatcher(dispatch.WithNotifier(events.NewNotifier(bus.Publisher)))
	return &App{
		Settings:   s,
		Dispatcher: d,
		Finisher:   finisher,
		emc:        emc.New(s.EMC, d, emc.WithFinisher(finisher)),
		lmstudio:   lmstudio.New(s.LMStudio, d, lmstudio.WithFinisher(finisher)),
		ollama:     ollama.New(s.Ollama, d, ollama.WithFinisher(finisher)),
		bus:        bus,
		cancel:     cancel,
		done:       done,
	}, nil
}

func (a *App) Close() error {
	a.cancel()
	err := a.bus.Close()
	<-a.done
	return err
}

func (a *App) Completer(name string) (providers.Completer, error) {
	switch name {
	case emc.Name:
		return a.emc, nil
	case lmstudio.Name:
		return a.lmstudio, nil
	case ollama.Name:
		return a.ollama, nil
	default:
		return nil, errors.Errorf("unknown completion provider %q", name)
	}
}

func (a *App) ModelLister(name string) (providers.ModelLister, error) {
	switch name {
	case lmstudio.Name:
		return a.lmstudio, nil
	case ollama.Name:
		return a.ollama, nil
	default:
		return nil, errors.Errorf("provider %q cannot list models", name)
	}
}

func (a *App) HealthCheckers() []providers.HealthChecker {
	return []providers.HealthChecker{a.lmstudio, a.ollama}
}

func (a *App) Voice() (*voice.Provider, error) {
	responder, err := a.Completer(a.Settings.Voice.Responder)
	if err != nil {
		return nil, err
	}
	return voice.New(a.Settings.Voice, a.Dispatcher, voice.WithResponder(responder)), nil
}

// SetMode overrides prompt classification; an empty name keeps it.
func (a *App) SetMode(name string) error {
	if name == "" {
		return nil
	}
	m, err := recovery.ParseMode(name)
	if err != nil {
		return err
	}
	a.Finisher.Mode = &m
	return nil
}

// withApp runs f with an App whose notices go to w.
func withApp(ctx context.Context, w io.Writer, f func(app *App) error) (err error) {
	app, err := NewApp(ctx, w)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := app.Close(); err == nil {
			err = closeErr
		}
	}()
	return f(app)
}

// readPath reads path, or stdin when path is empty or "-".
func readPath(path string, stdin io.Reader) ([]byte, error) {
	if path != "" && path != "-" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "could not read %s", path)
		}
		return b, nil
	}
	b, err := io.ReadAll(stdin)
	if err != nil {
		return nil, errors.Wrap(err, "could not read stdin")
	}
	return b, nil
}

// readInput reads the file named by the first argument, or the command's
// stdin.
func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}
	return readPath(path, cmd.InOrStdin())
}

func readText(cmd *cobra.Command, args []string) (string, error) {
	b, err := readInput(cmd, args)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
