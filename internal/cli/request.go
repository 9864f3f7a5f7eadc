package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/cascade/internal/engine"
	"github.com/roach88/cascade/internal/ir"
	"github.com/roach88/cascade/internal/service"
	"github.com/roach88/cascade/internal/store"
	"github.com/roach88/cascade/internal/store/pgstore"
)

// RequestOptions holds the flags shared by commands that run a request.
type RequestOptions struct {
	*RootOptions

	Database    string // SQLite database path
	PostgresDSN string // used instead of Database when set
	Specs       string // CUE specs directory, empty for the embedded defaults

	UserID   int64
	GroupID  int64
	Admin    bool
	LeaderOf []int64
	Force    bool

	Options     []string // key=value request options
	RequestFile string
}

// RequestFile is the YAML form of a delete request.
type RequestFile struct {
	Type      string            `yaml:"type"`
	ID        int64             `yaml:"id"`
	Principal *ir.Principal     `yaml:"principal,omitempty"`
	Options   map[string]string `yaml:"options,omitempty"`
}

func addRequestFlags(cmd *cobra.Command, opts *RequestOptions) {
	f := cmd.Flags()
	f.StringVar(&opts.Database, "db", "", "path to SQLite database")
	f.StringVar(&opts.PostgresDSN, "pg-dsn", "", "PostgreSQL connection string (instead of --db)")
	f.StringVar(&opts.Specs, "specs", "", "directory of CUE specs (default: embedded imaging specs)")
	f.Int64Var(&opts.UserID, "user", 0, "id of the acting user")
	f.Int64Var(&opts.GroupID, "group", 0, "current group of the acting user")
	f.BoolVar(&opts.Admin, "admin", false, "act as an administrator")
	f.Int64SliceVar(&opts.LeaderOf, "leader-of", nil, "groups the user leads")
	f.BoolVar(&opts.Force, "force", false, "delete rows regardless of ownership")
	f.StringArrayVar(&opts.Options, "option", nil, "request option key=value (repeatable)")
	f.StringVar(&opts.RequestFile, "request", "", "YAML request file")
}

// LoadRequestFile reads a YAML request file. Unknown fields are rejected.
func LoadRequestFile(path string) (*RequestFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read request file: %w", err)
	}
	var req RequestFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&req); err != nil {
		return nil, fmt.Errorf("failed to parse request file: %w", err)
	}
	if req.Type == "" {
		return nil, fmt.Errorf("request file: type is required")
	}
	return &req, nil
}

// parseOptionFlags splits key=value flags into a map. Later flags win.
func parseOptionFlags(flags []string) (map[string]string, error) {
	out := make(map[string]string, len(flags))
	for _, f := range flags {
		key, value, ok := strings.Cut(f, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("option %q: expected key=value", f)
		}
		out[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return out, nil
}

// buildRequest combines positional arguments, the request file and flags.
// Flags override the file; the file's principal is used when present.
func (o *RequestOptions) buildRequest(args []string) (ir.Principal, engine.Request, error) {
	raw := make(map[string]string)
	principal := ir.Principal{UserID: o.UserID, GroupID: o.GroupID, Admin: o.Admin, LeaderOf: o.LeaderOf}
	var req engine.Request

	switch {
	case o.RequestFile != "" && len(args) > 0:
		return ir.Principal{}, engine.Request{}, fmt.Errorf("give either <type> <id> or --request, not both")
	case o.RequestFile != "":
		file, err := LoadRequestFile(o.RequestFile)
		if err != nil {
			return ir.Principal{}, engine.Request{}, err
		}
		req.Type, req.ID = file.Type, file.ID
		if file.Principal != nil {
			principal = *file.Principal
		}
		for k, v := range file.Options {
			raw[k] = v
		}
	case len(args) == 2:
		id, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return ir.Principal{}, engine.Request{}, fmt.Errorf("invalid id %q: %w", args[1], err)
		}
		req.Type, req.ID = args[0], id
	default:
		return ir.Principal{}, engine.Request{}, fmt.Errorf("expected <type> <id> or --request")
	}

	flags, err := parseOptionFlags(o.Options)
	if err != nil {
		return ir.Principal{}, engine.Request{}, err
	}
	for k, v := range flags {
		raw[k] = v
	}
	if o.Force {
		raw[ir.OptionForce] = "true"
	}

	req.Options, err = ir.ParseOptions(raw)
	if err != nil {
		return ir.Principal{}, engine.Request{}, err
	}
	req.Principal = principal
	return principal, req, nil
}

// openDatabase opens PostgreSQL when a DSN is given and SQLite otherwise.
// The returned function closes the database.
func (o *RequestOptions) openDatabase(ctx context.Context) (service.Database, func(), error) {
	switch {
	case o.PostgresDSN != "":
		pg, err := pgstore.Open(ctx, o.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case o.Database != "":
		st, err := store.Open(o.Database)
		if err != nil {
			return nil, nil, err
		}
		return st, func() { st.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("one of --db or --pg-dsn is required")
	}
}

// newLogger configures slog based on the verbose flag.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// requestError maps request failures onto exit codes and error codes.
func requestError(formatter *OutputFormatter, err error) error {
	code, exit := ErrCodeGeneric, ExitCommandError
	switch {
	case service.IsPermissionError(err):
		code, exit = ErrCodePermission, ExitFailure
	case engine.IsConstraintError(err):
		code, exit = ErrCodeConstraint, ExitFailure
	case store.IsConstraintViolation(err):
		code, exit = ErrCodeConstraint, ExitFailure
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(exit, "request failed", err)
}

func sortedTables(deleted map[string][]int64) []string {
	tables := make([]string, 0, len(deleted))
	for t := range deleted {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}
