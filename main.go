package main

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"mytodos/internal/config"
	"mytodos/internal/controller"
	"mytodos/internal/eventloop"
	"mytodos/internal/handlers"
	"mytodos/internal/logging"
	"mytodos/internal/store"
	"mytodos/internal/todos"
	"mytodos/internal/ui"
)

//go:embed templates/*
var templatesFS embed.FS

//go:embed static/*
var staticFS embed.FS

var version = "dev"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:           "mytodos",
		Usage:          "Keep a todo list in the browser or the terminal",
		Version:        version,
		DefaultCommand: "serve",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Config file path",
				EnvVars: []string{config.EnvConfigFile},
			},
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the web interface",
				Action: serveCommand,
			},
			{
				Name:   "tui",
				Usage:  "Open the interactive terminal interface",
				Action: tuiCommand,
			},
			{
				Name:   "list",
				Usage:  "Print the todo list",
				Action: listCommand,
			},
			{
				Name:      "add",
				Usage:     "Add a todo",
				ArgsUsage: "TEXT",
				Action:    addCommand,
			},
			{
				Name:      "edit",
				Usage:     "Change the text of a todo",
				ArgsUsage: "ID TEXT",
				Action:    editCommand,
			},
			{
				Name:      "delete",
				Usage:     "Delete a todo",
				ArgsUsage: "ID",
				Action:    deleteCommand,
			},
			{
				Name:      "toggle",
				Usage:     "Mark a todo complete or incomplete",
				ArgsUsage: "ID",
				Action:    toggleCommand,
			},
			{
				Name:  "config",
				Usage: "Manage the config file",
				Subcommands: []*cli.Command{
					{
						Name:      "init",
						Usage:     "Write a config file with the default settings",
						ArgsUsage: "[PATH]",
						Action:    configInitCommand,
					},
				},
			},
		},
	}
}

// app holds what every command needs: settings, logger and the loaded list.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	kv     store.KV
	todos  *todos.Store
}

func setup(c *cli.Context, interactive bool) (*app, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := zap.NewNop()
	// The terminal interface owns the screen, so it only logs to files.
	if !interactive || (cfg.Log.Output != "stderr" && cfg.Log.Output != "stdout") {
		logger, err = logging.New(cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Storage.Driver != store.DriverMemory {
		// Ensure data directory exists
		if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	kv, err := store.Open(cfg.Storage.Driver, cfg.Storage.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	s, err := todos.New(c.Context, kv,
		todos.WithKey(cfg.Storage.Key),
		todos.WithLogger(logger),
		todos.WithStrictLoad(cfg.Load.Strict),
	)
	if err != nil {
		kv.Close()
		return nil, err
	}
	logger.Info("opened todo list", loadedFields(c.Context, kv, s)...)

	return &app{cfg: cfg, logger: logger, kv: kv, todos: s}, nil
}

// loadedFields describes the list s was loaded from kv.
func loadedFields(ctx context.Context, kv store.KV, s *todos.Store) []zap.Field {
	fields := []zap.Field{
		zap.String("key", s.Key()),
		zap.Int("todos", len(s.Todos())),
	}
	if db, ok := kv.(*store.SQLiteStore); ok {
		if at, err := db.UpdatedAt(ctx, s.Key()); err == nil {
			fields = append(fields, zap.Time("updated_at", at))
		}
	}
	if err := s.LoadError(); err != nil {
		fields = append(fields, zap.NamedError("load_error", err))
	}
	return fields
}

func (a *app) Close() {
	if err := a.kv.Close(); err != nil {
		a.logger.Error("failed to close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func serveCommand(c *cli.Context) error {
	a, err := setup(c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Parse templates
	tmpl, err := parseTemplates()
	if err != nil {
		return fmt.Errorf("failed to parse templates: %w", err)
	}
	staticSub, err := fs.Sub(staticFS, "static")
	if err != nil {
		return fmt.Errorf("failed to open static files: %w", err)
	}

	loop := eventloop.New(a.logger)
	h := handlers.New(loop, tmpl, a.logger)
	controller.New(a.todos, h)

	// The loop outlives the server so in-flight intents finish during shutdown.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	loopDone := make(chan error, 1)
	go func() { loopDone <- loop.Run(loopCtx) }()
	defer func() {
		stopLoop()
		<-loopDone
	}()

	srv := &http.Server{
		Addr:              a.cfg.Server.Addr,
		Handler:           h.Router(staticSub),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		a.logger.Info("starting server",
			zap.String("addr", a.cfg.Server.Addr),
			zap.String("storage_driver", a.cfg.Storage.Driver),
			zap.String("version", version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	}

	h.Hub().CloseAllConnections()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("graceful shutdown failed", zap.Error(err))
		return err
	}

	a.logger.Info("server stopped")
	return nil
}

func tuiCommand(c *cli.Context) error {
	a, err := setup(c, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := ui.NewModel(ctx)
	controller.New(a.todos, m)
	return ui.Run(ctx, m)
}

// oneShot binds a Printer, runs intent and prints the resulting list.
func oneShot(c *cli.Context, intent func(ctx context.Context, p *ui.Printer) error) error {
	a, err := setup(c, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if loadErr := a.todos.LoadError(); loadErr != nil {
		fmt.Fprintf(c.App.ErrWriter, "warning: %v\n", loadErr)
	}

	p := ui.NewPrinter(c.App.Writer)
	controller.New(a.todos, p)

	if err := intent(c.Context, p); err != nil {
		return err
	}
	return p.Flush()
}

func listCommand(c *cli.Context) error {
	return oneShot(c, func(ctx context.Context, p *ui.Printer) error { return nil })
}

func addCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	return oneShot(c, func(ctx context.Context, p *ui.Printer) error {
		return p.Add(ctx, text)
	})
}

func editCommand(c *cli.Context) error {
	id, err := parseIDArg(c)
	if err != nil {
		return err
	}
	text := strings.Join(c.Args().Tail(), " ")
	return oneShot(c, func(ctx context.Context, p *ui.Printer) error {
		return p.Edit(ctx, id, text)
	})
}

func deleteCommand(c *cli.Context) error {
	id, err := parseIDArg(c)
	if err != nil {
		return err
	}
	return oneShot(c, func(ctx context.Context, p *ui.Printer) error {
		return p.Delete(ctx, id)
	})
}

func toggleCommand(c *cli.Context) error {
	id, err := parseIDArg(c)
	if err != nil {
		return err
	}
	return oneShot(c, func(ctx context.Context, p *ui.Printer) error {
		return p.Toggle(ctx, id)
	})
}

func configInitCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	if err := config.WriteExample(path); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "wrote %s\n", path)
	return nil
}

func parseIDArg(c *cli.Context) (int64, error) {
	arg := c.Args().First()
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid todo id %q", arg)
	}
	return id, nil
}

func parseTemplates() (*template.Template, error) {
	tmpl := template.New("")

	// Parse all templates
	patterns := []string{
		"templates/*.html",
		"templates/partials/*.html",
	}

	for _, pattern := range patterns {
		matches, err := fs.Glob(templatesFS, pattern)
		if err != nil {
			return nil, fmt.Errorf("failed to glob pattern %s: %w", pattern, err)
		}

		for _, match := range matches {
			content, err := templatesFS.ReadFile(match)
			if err != nil {
				return nil, fmt.Errorf("failed to read template %s: %w", match, err)
			}

			name := filepath.Base(match)
			_, err = tmpl.New(name).Parse(string(content))
			if err != nil {
				return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
			}
		}
	}

	return tmpl, nil
}
