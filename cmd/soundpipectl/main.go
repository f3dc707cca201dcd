// Command soundpipectl is a small operator CLI for a running soundpipe
// server: submit audio, watch jobs complete, and inspect caches.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"text/tabwriter"

	"github.com/soundpipe/soundpipe/config"
	"github.com/soundpipe/soundpipe/internal/bootstrap"
	"github.com/soundpipe/soundpipe/internal/client"
	"github.com/soundpipe/soundpipe/internal/domain/model"
)

type commandFn func(ctx *commandContext, args []string) error

type command struct {
	name        string
	description string
	run         commandFn
}

type commandContext struct {
	Ctx    context.Context
	Logger *slog.Logger
	Config config.AppConfig
}

func main() {
	logger := bootstrap.InitLogger()

	if len(os.Args) < 2 {
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when no command is provided
	}

	cmdName := os.Args[1]
	cmd, ok := commands()[cmdName]
	if !ok {
		if err := writef(os.Stderr, "unknown command %q\n\n", cmdName); err != nil {
			logger.Error("print unknown command message failed", "error", err)
		}
		if err := printUsage(); err != nil {
			logger.Error("print usage failed", "error", err)
		}
		os.Exit(2) //nolint:forbidigo // CLI must exit with failure status when command is unknown
	}

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		logger.ErrorContext(context.Background(), "load config", "error", err)
		os.Exit(1) //nolint:forbidigo // CLI must signal configuration load failure to shell scripts
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmdCtx := &commandContext{
		Ctx:    ctx,
		Logger: logger,
		Config: cfg,
	}
	if runErr := cmd.run(cmdCtx, os.Args[2:]); runErr != nil {
		logger.ErrorContext(cmdCtx.Ctx, "command failed", "command", cmdName, "error", runErr)
		os.Exit(1) //nolint:forbidigo // CLI must propagate command execution failure to callers
	}
}

func commands() map[string]command {
	return map[string]command{
		"version": {
			name:        "version",
			description: "Print the server's protocol version",
			run:         runVersion,
		},
		"user": {
			name:        "user",
			description: "Provision (or echo) an owner id",
			run:         runUser,
		},
		"submit": {
			name:        "submit",
			description: "Submit an audio file for transcription, optionally watching until done",
			run:         runSubmit,
		},
		"jobs": {
			name:        "jobs",
			description: "List the owner's jobs, newest first",
			run:         runJobs,
		},
		"stats": {
			name:        "stats",
			description: "Print server cache and registry counters",
			run:         runStats,
		},
		"clear-cache": {
			name:        "clear-cache",
			description: "Wipe the server-side result and preference caches",
			run:         runClearCache,
		},
	}
}

func printUsage() error {
	if err := writef(os.Stdout, "Usage: soundpipectl <command> [flags]\n\n"); err != nil {
		return err
	}
	if err := writef(os.Stdout, "Available commands:\n"); err != nil {
		return err
	}
	names := make([]string, 0, len(commands()))
	for name := range commands() {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		c := commands()[name]
		if err := writef(os.Stdout, "  %-14s %s\n", c.name, c.description); err != nil {
			return err
		}
	}
	return nil
}

func writef(w io.Writer, format string, args ...any) error {
	_, err := fmt.Fprintf(w, format, args...)
	return err
}

// connectFlags are the flags shared by every command.
type connectFlags struct {
	serverURL string
	userID    string
}

func (f *connectFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&f.serverURL, "server", "http://localhost:8080", "soundpipe server base URL")
	fs.StringVar(&f.userID, "user", "", "owner id to act as (empty provisions a fresh one)")
}

func (f *connectFlags) client(ctx *commandContext) (*client.Client, error) {
	return client.New(client.ClientOptions{
		BaseURL:    f.serverURL,
		Gate:       client.NewVersionGate(ctx.Config.APIVersion),
		UserID:     f.userID,
		HTTPClient: &http.Client{Timeout: ctx.Config.Client.RequestTimeout},
		Logger:     ctx.Logger,
	})
}

func runVersion(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	var conn connectFlags
	conn.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := conn.client(ctx)
	if err != nil {
		return err
	}
	got, err := c.GetVersion(ctx.Ctx)
	if err != nil {
		return err
	}
	return writef(os.Stdout, "server %s (client %s)\n", got.Version, ctx.Config.APIVersion)
}

func runUser(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("user", flag.ContinueOnError)
	var conn connectFlags
	conn.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := conn.client(ctx)
	if err != nil {
		return err
	}
	user, err := c.Provision(ctx.Ctx)
	if err != nil {
		return err
	}
	return writef(os.Stdout, "%s\n", user.UserID)
}

func runSubmit(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	var conn connectFlags
	conn.register(fs)
	watch := fs.Bool("watch", false, "poll until the job reaches a terminal state")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: soundpipectl submit [flags] <audio-file>")
	}

	audio, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("read audio file: %w", err)
	}

	c, err := conn.client(ctx)
	if err != nil {
		return err
	}
	if conn.userID == "" {
		if _, err = c.Provision(ctx.Ctx); err != nil {
			return err
		}
	}

	job, err := c.Transcribe(ctx.Ctx, audio)
	if err != nil {
		return err
	}
	if err := writef(os.Stdout, "job %s %s\n", job.JobID, job.Status); err != nil {
		return err
	}
	if !*watch {
		return nil
	}
	return watchJob(ctx, c, job)
}

// watchJob runs a poll loop until the submitted job reaches a terminal
// state, printing every observed change.
func watchJob(ctx *commandContext, c *client.Client, job model.TranscribeResponse) error {
	sync, err := client.NewPollSync(client.PollSyncOptions{
		Client: c,
		Config: ctx.Config.Client,
		Logger: ctx.Logger,
	})
	if err != nil {
		return err
	}
	sync.TrackSubmission(job)

	watchCtx, cancel := context.WithCancel(ctx.Ctx)
	defer cancel()

	sync.Subscribe(func(jobs map[string]model.JobStatusResponse) {
		snap, ok := jobs[job.JobID]
		if !ok {
			return
		}
		if err := printJob(os.Stdout, snap); err != nil {
			return
		}
		if snap.Status.Terminal() {
			cancel()
		}
	})

	if err := sync.Run(watchCtx); err != nil && watchCtx.Err() == nil {
		return err
	}
	return nil
}

func runJobs(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("jobs", flag.ContinueOnError)
	var conn connectFlags
	conn.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := conn.client(ctx)
	if err != nil {
		return err
	}
	jobs, err := c.ListJobs(ctx.Ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writef(tw, "JOB\tSTATUS\tPROGRESS\tTOPIC\n"); err != nil {
		return err
	}
	for _, j := range jobs {
		topic := ""
		if j.Category != nil {
			topic = j.Category.PrimaryTopic
		}
		if err := writef(tw, "%s\t%s\t%.0f%%\t%s\n", j.JobID, j.Status, j.Progress*100, topic); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func runStats(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	var conn connectFlags
	conn.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := conn.client(ctx)
	if err != nil {
		return err
	}
	stats, err := c.GetStats(ctx.Ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(stats)
}

func runClearCache(ctx *commandContext, args []string) error {
	fs := flag.NewFlagSet("clear-cache", flag.ContinueOnError)
	var conn connectFlags
	conn.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	c, err := conn.client(ctx)
	if err != nil {
		return err
	}
	out, err := c.ClearCache(ctx.Ctx)
	if err != nil {
		return err
	}
	return writef(os.Stdout, "%s: %s\n", out.Status, out.Message)
}

func printJob(w io.Writer, j model.JobStatusResponse) error {
	switch {
	case j.Status == model.JobStatusError && j.Error != nil:
		return writef(w, "job %s %s: %s\n", j.JobID, j.Status, *j.Error)
	case j.Status == model.JobStatusCompleted && j.Transcript != nil:
		topic := ""
		if j.Category != nil {
			topic = j.Category.PrimaryTopic
		}
		return writef(w, "job %s %s (%s): %s\n", j.JobID, j.Status, topic, *j.Transcript)
	default:
		return writef(w, "job %s %s %.0f%%\n", j.JobID, j.Status, j.Progress*100)
	}
}
