package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/arcafs/arca/internal/adapter"
	"github.com/arcafs/arca/internal/codec"
	"github.com/arcafs/arca/internal/command"
	"github.com/arcafs/arca/internal/core"
	"github.com/arcafs/arca/internal/dispatch"
	"github.com/arcafs/arca/internal/job"
	"github.com/arcafs/arca/internal/store"
)

// Version is set at build time via -ldflags
var Version = "dev"

// maxRequestBytes bounds a single request line.
const maxRequestBytes = 1 << 20

func main() {
	// Handle version flag
	var showVersion bool
	flag.BoolVar(&showVersion, "v", false, "print version")
	flag.BoolVar(&showVersion, "version", false, "print version")
	flag.Parse()

	if showVersion {
		fmt.Printf("arcad %s\n", Version)
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)
	logger.Info("arcad starting", "version", Version, "data_dir", cfg.Data.Dir)

	// Open the store
	st, err := store.Open(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	// Register the host's volumes
	if err := core.SeedVolumes(st, core.MountTableProbe{}, logger); err != nil {
		logger.Warn("volume probe failed", "error", err)
	}

	// Job supervisor
	supervisor := job.NewSupervisor(int64(cfg.Jobs.MaxConcurrent), logger)
	defer supervisor.Close()

	// Handlers
	render := adapter.NewRenderer(cfg.Data.ThumbDir, "", logger)
	policy := core.Policy{
		UniqueLibraryNames: cfg.Policy.UniqueLibraryNames,
		UniqueTagNames:     cfg.Policy.UniqueTagNames,
	}
	handlers := core.New(st, supervisor, render, policy, logger)

	registry := dispatch.NewRegistry()
	if err := handlers.RegisterAll(registry); err != nil {
		return fmt.Errorf("failed to register handlers: %w", err)
	}
	if err := registry.Validate(); err != nil {
		return fmt.Errorf("handler set incomplete: %w", err)
	}

	dispatcher := dispatch.NewDispatcher(registry, logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	return serve(ctx, dispatcher, supervisor, os.Stdin, os.Stdout, logger)
}

// query is the sideband envelope for job introspection. It rides the
// same stdio channel as commands but is not part of the command schema.
type query struct {
	Query string `json:"query"`
	ID    string `json:"id"`
}

// errRequestTooLong marks a request line over maxRequestBytes. The
// line is discarded and answered with a decode error; the daemon must
// outlive oversized input.
var errRequestTooLong = errors.New("request line too long")

// serve reads one JSON request per line from in and writes one JSON
// response per line to out.
func serve(ctx context.Context, dispatcher *dispatch.Dispatcher, supervisor *job.Supervisor, in io.Reader, w io.Writer, logger *slog.Logger) error {
	out := bufio.NewWriter(w)
	reader := bufio.NewReaderSize(in, 64*1024)

	for {
		if ctx.Err() != nil {
			break
		}
		line, err := readRequestLine(reader)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, errRequestTooLong) {
			return fmt.Errorf("failed to read request: %w", err)
		}

		var outcome command.Outcome
		switch {
		case errors.Is(err, errRequestTooLong):
			outcome = command.Failure(command.Errorf(command.KindDecodeError,
				"request exceeds %d bytes", maxRequestBytes))
		case len(line) == 0:
			continue
		default:
			if q, ok := asQuery(line); ok {
				outcome = handleQuery(supervisor, q)
			} else {
				cmd, derr := codec.Decode(line)
				if derr != nil {
					outcome = command.Failure(toDecodeError(derr))
				} else {
					outcome = dispatcher.Dispatch(ctx, cmd)
				}
			}
		}

		resp, err := codec.Encode(outcome)
		if err != nil {
			logger.Error("failed to encode response", "error", err)
			continue
		}
		out.Write(resp)
		out.WriteByte('\n')
		if err := out.Flush(); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	logger.Info("arcad shutting down")
	return nil
}

// readRequestLine reads one newline-terminated request. A line over
// maxRequestBytes is consumed to its end and reported as
// errRequestTooLong so the caller can answer it and keep serving.
func readRequestLine(r *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := r.ReadSlice('\n')
		line = append(line, chunk...)
		switch {
		case err == nil, errors.Is(err, io.EOF):
			if errors.Is(err, io.EOF) && len(line) == 0 {
				return nil, io.EOF
			}
			line = bytes.TrimRight(line, "\r\n")
			if len(line) > maxRequestBytes {
				return nil, errRequestTooLong
			}
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			if len(line) > maxRequestBytes {
				if derr := discardLine(r); derr != nil {
					return nil, derr
				}
				return nil, errRequestTooLong
			}
		default:
			return nil, err
		}
	}
}

// discardLine consumes input through the next newline or EOF.
func discardLine(r *bufio.Reader) error {
	for {
		_, err := r.ReadSlice('\n')
		switch {
		case err == nil, errors.Is(err, io.EOF):
			return nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return err
		}
	}
}

// asQuery detects the sideband envelope without disturbing command
// decoding: a request with a "query" field is never a command.
func asQuery(line []byte) (query, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return query{}, false
	}
	if _, ok := fields["query"]; !ok {
		return query{}, false
	}
	var q query
	if err := json.Unmarshal(line, &q); err != nil {
		return query{}, false
	}
	return q, true
}

func handleQuery(supervisor *job.Supervisor, q query) command.Outcome {
	switch q.Query {
	case "job_status":
		status, err := supervisor.Status(q.ID)
		if err != nil {
			return command.Failure(command.Errorf(command.KindNotFound, "job %q not found", q.ID))
		}
		return command.Success(status)
	case "job_list":
		return command.Success(supervisor.List())
	case "job_cancel":
		if err := supervisor.Cancel(q.ID); err != nil {
			return command.Failure(command.Errorf(command.KindNotFound, "job %q not found", q.ID))
		}
		return command.Success(map[string]string{"job_id": q.ID, "cancelling": "true"})
	default:
		return command.Failure(command.Errorf(command.KindDecodeError, "unknown query %q", q.Query))
	}
}

func toDecodeError(err error) *command.Error {
	var cmdErr *command.Error
	if errors.As(err, &cmdErr) {
		return cmdErr
	}
	return command.NewError(command.KindDecodeError, err.Error())
}
