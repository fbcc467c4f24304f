package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/stockledger/internal/app"
	"github.com/odyssey-erp/stockledger/jobs"
)

// QueueCommands lists the background-job subcommands.
var QueueCommands = []subcommands.Command{
	&scanCmd{},
	&warmupCmd{},
	&queueCmd{},
}

// jobsClient wraps the Asynq client and inspector for manual operations.
type jobsClient struct {
	client    *jobs.Client
	inspector *asynq.Inspector
}

func newJobsClient() (*jobsClient, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	opts := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	client, err := jobs.NewClient(opts)
	if err != nil {
		return nil, err
	}
	return &jobsClient{client: client, inspector: asynq.NewInspector(opts)}, nil
}

func (c *jobsClient) Close() error {
	var err error
	if c.inspector != nil {
		if closeErr := c.inspector.Close(); closeErr != nil {
			err = closeErr
		}
	}
	if c.client != nil {
		if closeErr := c.client.Close(); closeErr != nil {
			err = closeErr
		}
	}
	return err
}

type scanCmd struct {
	requestedBy string
}

func (*scanCmd) Name() string     { return "scan" }
func (*scanCmd) Synopsis() string { return "enqueue a low-stock scan" }
func (*scanCmd) Usage() string {
	return `stockctl scan [-by <actor>]

  Enqueues an inventory:low_stock_scan task for the worker.
`
}

func (c *scanCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.requestedBy, "by", "stockctl", "Recorded as the requester of the scan.")
}

func (c *scanCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	jc, err := newJobsClient()
	if err != nil {
		return fail(err)
	}
	defer jc.Close()

	info, err := jc.client.EnqueueLowStockScan(ctx, c.requestedBy)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(os.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return subcommands.ExitSuccess
}

type warmupCmd struct{}

func (*warmupCmd) Name() string     { return "warmup" }
func (*warmupCmd) Synopsis() string { return "enqueue an analytics overview warmup" }
func (*warmupCmd) Usage() string {
	return `stockctl warmup

  Enqueues an analytics:overview_warmup task. Duplicate requests within a
  minute are dropped by the queue.
`
}

func (*warmupCmd) SetFlags(*flag.FlagSet) {}

func (*warmupCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	jc, err := newJobsClient()
	if err != nil {
		return fail(err)
	}
	defer jc.Close()

	info, err := jc.client.EnqueueAnalyticsWarmup(ctx)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(os.Stdout, "enqueued %s id=%s queue=%s\n", info.Type, info.ID, info.Queue)
	return subcommands.ExitSuccess
}

type queueCmd struct {
	scheduled int
}

func (*queueCmd) Name() string     { return "queue" }
func (*queueCmd) Synopsis() string { return "show default queue statistics" }
func (*queueCmd) Usage() string {
	return `stockctl queue [-scheduled <n>]

  Prints pending, active, scheduled and retry counts for the default queue.
`
}

func (c *queueCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.scheduled, "scheduled", 0, "Also list up to n scheduled tasks.")
}

func (c *queueCmd) Execute(_ context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	jc, err := newJobsClient()
	if err != nil {
		return fail(err)
	}
	defer jc.Close()

	info, err := jc.inspector.GetQueueInfo(jobs.QueueDefault)
	if err != nil {
		return fail(err)
	}
	fmt.Fprintf(os.Stdout, "queue=%s pending=%d active=%d scheduled=%d retry=%d\n",
		jobs.QueueDefault, info.Pending, info.Active, info.Scheduled, info.Retry)

	if c.scheduled <= 0 {
		return subcommands.ExitSuccess
	}
	tasks, err := jc.inspector.ListScheduledTasks(jobs.QueueDefault, asynq.PageSize(c.scheduled), asynq.Page(1))
	if err != nil {
		return fail(err)
	}
	for _, task := range tasks {
		fmt.Fprintf(os.Stdout, "  %s %s next=%s\n", task.ID, task.Type, task.NextProcessAt.Format("2006-01-02T15:04:05Z07:00"))
	}
	return subcommands.ExitSuccess
}
