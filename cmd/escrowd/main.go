package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"escrowd/config"
	"escrowd/core/events"
	"escrowd/ledger"
	"escrowd/native/escrow"
	"escrowd/observability/logging"
	"escrowd/storage"
)

const envVar = "ESCROWD_ENV"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: escrowd [-config path] <command> [flags]

Commands:
  create    create an escrow from invoice fields
  accept    accept escrow terms (payer)
  fund      deposit funds (payer)
  release   release held funds to the issuer (payer)
  cancel    cancel a draft or accepted escrow (issuer or payer)
  dispute   raise a dispute on a funded escrow (issuer or payer)
  resolve   resolve a dispute (arbiter)
  get       print the current escrow record
`)
	os.Exit(2)
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() < 1 {
		usage()
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	env := strings.TrimSpace(os.Getenv(envVar))
	if env == "" {
		env = cfg.Environment
	}
	var logger *slog.Logger
	if strings.TrimSpace(cfg.LogFile) != "" {
		logger = logging.SetupWithFile("escrowd", env, cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	} else {
		logger = logging.Setup("escrowd", env)
	}

	db, err := openDatabase(cfg)
	if err != nil {
		logger.Error("open storage", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine := escrow.NewEngine(escrow.NewStore(db), openLedger(cfg))
	engine.SetEmitter(events.LogEmitter{Logger: logger})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := run(ctx, engine, flag.Arg(0), flag.Args()[1:]); err != nil {
		logger.Error("command failed", "command", flag.Arg(0), "error", err)
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.StorageBackend {
	case config.BackendMemory:
		return storage.NewMemDB(), nil
	case config.BackendBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "escrowd.db"))
	default:
		return storage.NewLevelDB(filepath.Join(cfg.DataDir, "escrowd"))
	}
}

func openLedger(cfg *config.Config) ledger.Transport {
	if cfg.LedgerMode == config.LedgerNode {
		return ledger.NewNodeClient(cfg.NodeURL, cfg.NodeAuthToken)
	}
	return ledger.NewSimLedger()
}

func run(ctx context.Context, engine *escrow.Engine, command string, args []string) error {
	switch command {
	case "create":
		return runCreate(engine, args)
	case "accept":
		addr, caller, err := addrCallerArgs("accept", args)
		if err != nil {
			return err
		}
		return engine.Accept(ctx, addr, caller)
	case "fund":
		return runFund(ctx, engine, args)
	case "release":
		addr, caller, err := addrCallerArgs("release", args)
		if err != nil {
			return err
		}
		return engine.Release(ctx, addr, caller)
	case "cancel":
		addr, caller, err := addrCallerArgs("cancel", args)
		if err != nil {
			return err
		}
		return engine.Cancel(ctx, addr, caller)
	case "dispute":
		return runDispute(ctx, engine, args)
	case "resolve":
		return runResolve(ctx, engine, args)
	case "get":
		return runGet(engine, args)
	default:
		usage()
		return nil
	}
}

func runCreate(engine *escrow.Engine, args []string) error {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	id := fs.String("id", "", "invoice identifier")
	description := fs.String("description", "", "invoice description")
	amount := fs.String("amount", "", "invoiced amount in motes")
	issuer := fs.String("issuer", "", "issuer identity")
	payer := fs.String("payer", "", "payer identity")
	arbiter := fs.String("arbiter", "", "optional arbiter identity")
	dueDate := fs.Int64("due-date", 0, "optional due date (unix seconds, informational)")
	fs.Parse(args)

	amt, err := parseAmount(*amount)
	if err != nil {
		return err
	}
	rec, err := engine.Create(escrow.CreateParams{
		InvoiceID:   *id,
		Description: *description,
		Amount:      amt,
		Issuer:      *issuer,
		Payer:       *payer,
		Arbiter:     *arbiter,
		DueDate:     *dueDate,
	})
	if err != nil {
		return err
	}
	fmt.Println(rec.ContractAddress)
	return nil
}

func runFund(ctx context.Context, engine *escrow.Engine, args []string) error {
	fs := flag.NewFlagSet("fund", flag.ExitOnError)
	addr := fs.String("address", "", "contract address")
	caller := fs.String("caller", "", "caller identity")
	amount := fs.String("amount", "", "deposit amount in motes")
	fs.Parse(args)

	amt, err := parseAmount(*amount)
	if err != nil {
		return err
	}
	return engine.Fund(ctx, *addr, *caller, amt)
}

func runDispute(ctx context.Context, engine *escrow.Engine, args []string) error {
	fs := flag.NewFlagSet("dispute", flag.ExitOnError)
	addr := fs.String("address", "", "contract address")
	caller := fs.String("caller", "", "caller identity")
	reason := fs.String("reason", "", "dispute reason")
	fs.Parse(args)
	return engine.Dispute(ctx, *addr, *caller, *reason)
}

func runResolve(ctx context.Context, engine *escrow.Engine, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	addr := fs.String("address", "", "contract address")
	caller := fs.String("caller", "", "caller identity")
	toIssuer := fs.Bool("release-to-issuer", false, "release funds to the issuer instead of refunding the payer")
	fs.Parse(args)
	return engine.ResolveDispute(ctx, *addr, *caller, *toIssuer)
}

func runGet(engine *escrow.Engine, args []string) error {
	fs := flag.NewFlagSet("get", flag.ExitOnError)
	addr := fs.String("address", "", "contract address")
	fs.Parse(args)

	rec, err := engine.Get(*addr)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

func addrCallerArgs(name string, args []string) (string, string, error) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	addr := fs.String("address", "", "contract address")
	caller := fs.String("caller", "", "caller identity")
	fs.Parse(args)
	if strings.TrimSpace(*addr) == "" || strings.TrimSpace(*caller) == "" {
		return "", "", fmt.Errorf("%s: -address and -caller are required", name)
	}
	return *addr, *caller, nil
}

func parseAmount(raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("amount is required")
	}
	amt, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", raw)
	}
	return amt, nil
}
