package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/subcommands"

	"github.com/odyssey-erp/stockledger/internal/analytics"
	"github.com/odyssey-erp/stockledger/internal/app"
	"github.com/odyssey-erp/stockledger/internal/inventory"
	"github.com/odyssey-erp/stockledger/internal/platform/cache"
	"github.com/odyssey-erp/stockledger/internal/shared"
)

// Commands lists the inventory subcommands.
var Commands = []subcommands.Command{
	&summaryCmd{},
	&historyCmd{},
	&adjustCmd{},
}

// env is the runtime a command operates on.
type env struct {
	cfg       *app.Config
	backend   *app.Backend
	service   *inventory.Service
	analytics *analytics.Service
	close     func()
}

func openEnv(ctx context.Context) (*env, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	backend, err := app.OpenBackend(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	closers := []func(){backend.Close}

	locker, err := app.NewLocker(&app.Config{LockBackend: app.LockLocal}, nil)
	if cfg.LockBackend == app.LockRedis {
		client, cerr := cache.New(ctx, cfg.RedisAddr)
		if cerr != nil {
			backend.Close()
			return nil, cerr
		}
		closers = append(closers, func() { _ = client.Close() })
		locker, err = app.NewLocker(cfg, client)
	}
	if err != nil {
		backend.Close()
		return nil, err
	}

	analyticsService := analytics.NewService(backend.Items, backend.Ledger, nil, logger)
	service := inventory.NewService(inventory.ServiceDeps{
		Items:  backend.Items,
		Ledger: backend.Ledger,
		Tx:     backend.Tx,
		Locker: locker,
		Logger: logger,
	}, cfg.ServiceConfig())
	return &env{
		cfg:       cfg,
		backend:   backend,
		service:   service,
		analytics: analyticsService,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}

func fail(err error) subcommands.ExitStatus {
	fmt.Fprintln(os.Stderr, err)
	return subcommands.ExitFailure
}

type summaryCmd struct {
	asJSON bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print stock totals and low-stock alerts" }
func (*summaryCmd) Usage() string {
	return `stockctl summary [-json]

  Reads every item and prints totals, inventory value and the items at or
  below their reorder threshold.
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.asJSON, "json", false, "Print the summary as JSON.")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	summary, err := e.analytics.Summarize(ctx)
	if err != nil {
		return fail(err)
	}
	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fail(err)
		}
		return subcommands.ExitSuccess
	}
	writeSummary(os.Stdout, summary)
	return subcommands.ExitSuccess
}

func writeSummary(w io.Writer, s analytics.Summary) {
	fmt.Fprintf(w, "items:          %d\n", s.TotalItems)
	fmt.Fprintf(w, "total quantity: %d\n", s.TotalQuantity)
	fmt.Fprintf(w, "total value:    %s\n", s.TotalValue.StringFixed(2))
	fmt.Fprintf(w, "out of stock:   %d\n", len(s.OutOfStockItems))
	if len(s.LowStockItems) == 0 {
		return
	}
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tQTY\tTHRESHOLD")
	for _, item := range s.LowStockItems {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", item.ID, item.Name, item.Quantity, item.ReorderThreshold)
	}
	_ = tw.Flush()
}

type historyCmd struct {
	item  string
	limit int
	since string
}

func (*historyCmd) Name() string     { return "history" }
func (*historyCmd) Synopsis() string { return "list ledger entries, newest first" }
func (*historyCmd) Usage() string {
	return `stockctl history [-item <id>] [-limit <n>] [-since <date>]

  Lists ledger entries for one item, or the global feed when -item is empty.
  -since accepts RFC3339 or YYYY-MM-DD.
`
}

func (c *historyCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.item, "item", "", "Item id to list history for.")
	f.IntVar(&c.limit, "limit", 0, "Maximum entries for the global feed (0 uses the configured default).")
	f.StringVar(&c.since, "since", "", "Only entries at or after this time.")
}

func (c *historyCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	e, err := openEnv(ctx)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	var entries []inventory.LedgerEntry
	switch {
	case c.item != "":
		entries, err = e.service.ListHistory(ctx, c.item)
	case c.limit == 0 && c.since == "":
		entries, err = e.service.ListHistory(ctx, "")
	default:
		filter := inventory.LedgerFilter{Limit: c.limit}
		if c.since != "" {
			filter.Since, err = inventory.ParseSince(c.since)
			if err != nil {
				return fail(err)
			}
		}
		entries, err = e.service.ListLedger(ctx, filter)
	}
	if err != nil {
		return fail(err)
	}
	writeEntries(os.Stdout, entries)
	return subcommands.ExitSuccess
}

func writeEntries(w io.Writer, entries []inventory.LedgerEntry) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tITEM\tKIND\tDELTA\tBEFORE\tACTOR")
	for _, entry := range entries {
		before := "-"
		if entry.QuantityBefore != nil {
			before = strconv.FormatInt(*entry.QuantityBefore, 10)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			entry.CreatedAt.UTC().Format(time.RFC3339),
			entry.ItemName,
			entry.Kind,
			entry.QuantityDelta,
			before,
			entry.ActorName,
		)
	}
	_ = tw.Flush()
}

type adjustCmd struct {
	actorID   string
	actorName string
}

func (*adjustCmd) Name() string     { return "adjust" }
func (*adjustCmd) Synopsis() string { return "apply a relative quantity change to an item" }
func (*adjustCmd) Usage() string {
	return `stockctl adjust [-actor <id>] [-actor-name <name>] <item-id> <delta>

  Adds delta (may be negative) to the item's quantity and records a ledger
  entry attributed to the actor.
`
}

func (c *adjustCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.actorID, "actor", "stockctl", "Actor id recorded on the ledger entry.")
	f.StringVar(&c.actorName, "actor-name", "", "Actor display name (defaults to the id).")
}

func (c *adjustCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 2 {
		fmt.Fprint(os.Stderr, c.Usage())
		return subcommands.ExitUsageError
	}
	delta, err := strconv.ParseInt(f.Arg(1), 10, 64)
	if err != nil {
		return fail(fmt.Errorf("invalid delta %q: %w", f.Arg(1), err))
	}
	e, err := openEnv(ctx)
	if err != nil {
		return fail(err)
	}
	defer e.close()

	name := c.actorName
	if name == "" {
		name = c.actorID
	}
	item, err := e.service.AdjustBy(ctx, f.Arg(0), delta, shared.Actor{ID: c.actorID, Name: name, Role: shared.RoleAdmin})
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(os.Stdout, "%s %s quantity=%d\n", item.ID, item.Name, item.Quantity)
	return subcommands.ExitSuccess
}
