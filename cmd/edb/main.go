package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/howeyc/gopass"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/e-XpertSolutions/go-edb/edb"
	"github.com/e-XpertSolutions/go-edb/edb/mongostore"
	"github.com/e-XpertSolutions/go-edb/internal/config"
	"github.com/e-XpertSolutions/go-edb/internal/log"
	"github.com/e-XpertSolutions/go-edb/metrics"
)

func usage() {
	fmt.Fprint(os.Stderr, "Edb is command line tool to manage an encrypted record store.\n\n")
	fmt.Fprint(os.Stderr, "Usage:\n\n\tedb [FLAGS] [COMMAND] [TABLE] [ARGS...]\n\n")
	fmt.Fprint(os.Stderr, `The commands are:

set    store a JSON record in a table. This command requires 1 argument:
       [JSON]. An optional [KEY] argument overwrites the record stored at
       that key; without it a new key is generated and printed.
get    print a record of a table. This command requires 1 additional
       argument: [KEY].
exists report whether a record exists. This command requires 1 additional
       argument: [KEY].
remove remove a record from a table. This command requires 1 additional
       argument: [KEY].
list   print all records of a table, one JSON object per line.

Table names can only contain alphanumeric characters and dashes ("-"):
"user-profiles" is a valid name, "user_profiles" is not.
The secret is read from EDB_SECRET or prompted for.

The global flags are:`)
	fmt.Fprint(os.Stderr, "\n\n")
	flag.PrintDefaults()
	os.Exit(1)
}

// version
const (
	major = "1"
	minor = "0"
	patch = "0"
)

// printVersion prints the current version of the program and then exits.
func printVersion() {
	fmt.Printf("edb v%s.%s.%s\n", major, minor, patch)
	os.Exit(0)
}

// Command line flags.
var (
	version    = flag.Bool("version", false, "print version")
	configPath = flag.String("config", "", "path to a YAML configuration file (default $EDB_CONFIG)")
)

func main() {
	flag.Usage = usage
	flag.Parse()

	if *version {
		printVersion()
	}

	if flag.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "invalid number of arguments")
		usage()
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "[error]", err)
		os.Exit(1)
	}
	logger := log.NewLogger(cfg)

	secret := os.Getenv("EDB_SECRET")
	if secret == "" {
		fmt.Fprint(os.Stderr, "Secret: ")
		b, err := gopass.GetPasswd()
		if err != nil {
			logger.Fatal().Err(err).Msg("cannot read secret")
		}
		secret = string(b)
	}

	ctx := context.Background()

	medium, closeMedium, err := openMedium(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Str("medium", cfg.Medium.Kind).Msg("cannot open medium")
	}
	defer closeMedium()

	var reg *prometheus.Registry
	if cfg.Metrics.Textfile != "" {
		reg = prometheus.NewRegistry()
		collectors, err := metrics.NewCollectors(reg)
		if err != nil {
			logger.Fatal().Err(err).Msg("cannot set up metrics")
		}
		medium = collectors.Instrument(medium)
	}

	store, err := edb.Open(ctx, medium, secret, cfg.Store.Salt,
		edb.WithPrefix(cfg.Store.Prefix),
		edb.WithIterations(cfg.Store.Iterations),
		edb.WithLogger(logger),
	)
	if err != nil {
		logger.Fatal().Err(err).Msg("cannot open store")
	}
	defer store.Close()

	err = run(ctx, os.Stdout, store, flag.Arg(0), flag.Arg(1), flag.Args()[2:])

	if reg != nil {
		if werr := prometheus.WriteToTextfile(cfg.Metrics.Textfile, reg); werr != nil {
			logger.Error().Err(werr).Str("path", cfg.Metrics.Textfile).Msg("cannot write metrics")
		}
	}
	if err != nil {
		logger.Error().Err(err).Str("command", flag.Arg(0)).Msg("command failed")
		store.Close()
		closeMedium()
		os.Exit(1)
	}
}

func openMedium(ctx context.Context, cfg config.Config) (edb.Medium, func(), error) {
	switch cfg.Medium.Kind {
	case config.MediumMongo:
		m, err := mongostore.Connect(ctx, cfg.Medium.Mongo.URI, cfg.Medium.Mongo.Database, cfg.Medium.Mongo.Collection)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close(context.Background()) }, nil
	default:
		m, err := edb.OpenFileMedium(cfg.Medium.File)
		if err != nil {
			return nil, nil, err
		}
		return m, func() { _ = m.Close() }, nil
	}
}

// run executes one command against the table. Records are handled as raw
// JSON so that any record shape can be managed.
func run(ctx context.Context, w io.Writer, s *edb.Store, cmd, table string, args []string) error {
	tbl := edb.NewTable[json.RawMessage](s, table)

	switch cmd {
	case "set":
		var key string
		switch len(args) {
		case 1:
		case 2:
			key = args[1]
		default:
			return errors.New("set requires [JSON] and an optional [KEY]")
		}
		if !json.Valid([]byte(args[0])) {
			return errors.New("record is not valid JSON")
		}
		rec, err := tbl.Set(ctx, key, json.RawMessage(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(w, rec.Key)
	case "get":
		if len(args) != 1 {
			return errors.New("missing key")
		}
		v, ok, err := tbl.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return errors.Errorf("no record %q in table %q", args[0], table)
		}
		fmt.Fprintln(w, string(v))
	case "exists":
		if len(args) != 1 {
			return errors.New("missing key")
		}
		ok, err := tbl.Exists(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(w, ok)
	case "remove":
		if len(args) != 1 {
			return errors.New("missing key")
		}
		return tbl.Remove(ctx, args[0])
	case "list":
		records, err := tbl.GetAll(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		for _, r := range records {
			if err := enc.Encode(struct {
				Key   string          `json:"key"`
				Value json.RawMessage `json:"value"`
			}{r.Key, r.Value}); err != nil {
				return errors.Wrap(err, "cannot write record")
			}
		}
	default:
		return errors.Errorf("unknown command %q", cmd)
	}
	return nil
}
