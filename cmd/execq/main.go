// Command execq is a thin CLI for an execqd gateway: submit a command,
// query a job, cancel it, or submit and wait for the result.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/execq/execq/client"
	"github.com/execq/execq/id"
	"github.com/execq/execq/job"
)

const defaultServer = "http://localhost:8080"

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: execq [-server URL] <command> [args]

Commands:
  submit <shell command>   enqueue a command for execution
  run <shell command>      enqueue a command and wait for its result
  status <job-id>          show a job record
  cancel <job-id>          request cancellation of a job
  list <status>            list jobs in a state (pending, running, ...)
  counts                   show record counts by status

The server defaults to %s; override with -server or EXECQ_SERVER.
`, defaultServer)
	os.Exit(2)
}

func main() {
	server := flag.String("server", envOr("EXECQ_SERVER", defaultServer), "execqd base URL")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
	}

	app := &app{client: client.New(*server)}
	ctx := context.Background()

	var err error
	switch args[0] {
	case "submit":
		if len(args) < 2 {
			usage()
		}
		err = app.submit(ctx, strings.Join(args[1:], " "))
	case "run":
		if len(args) < 2 {
			usage()
		}
		err = app.run(ctx, strings.Join(args[1:], " "))
	case "status":
		if len(args) != 2 {
			usage()
		}
		err = app.status(ctx, args[1])
	case "cancel":
		if len(args) != 2 {
			usage()
		}
		err = app.cancel(ctx, args[1])
	case "list":
		if len(args) != 2 {
			usage()
		}
		err = app.list(ctx, args[1])
	case "counts":
		err = app.counts(ctx)
	default:
		usage()
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "execq:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

type app struct {
	client *client.Client
}

func (a *app) submit(ctx context.Context, command string) error {
	j, err := a.client.Submit(ctx, command)
	if err != nil {
		return err
	}
	fmt.Println(j.ID)
	return nil
}

// run submits the command, waits for a terminal status, prints the
// output, and exits non-zero when the job failed.
func (a *app) run(ctx context.Context, command string) error {
	j, err := a.client.Submit(ctx, command)
	if err != nil {
		return err
	}

	j, err = a.client.Wait(ctx, j.ID, 500*time.Millisecond)
	if err != nil {
		return err
	}

	if j.Output != "" {
		fmt.Print(j.Output)
		if !strings.HasSuffix(j.Output, "\n") {
			fmt.Println()
		}
	}
	if j.Status != job.StatusSucceeded {
		return fmt.Errorf("job %s finished %s", j.ID, j.Status)
	}
	return nil
}

func (a *app) status(ctx context.Context, raw string) error {
	jobID, err := id.ParseJobID(raw)
	if err != nil {
		return err
	}
	j, err := a.client.Get(ctx, jobID)
	if err != nil {
		return err
	}
	printJob(j)
	return nil
}

func (a *app) cancel(ctx context.Context, raw string) error {
	jobID, err := id.ParseJobID(raw)
	if err != nil {
		return err
	}
	outcome, err := a.client.Cancel(ctx, jobID)
	if err != nil {
		return err
	}
	fmt.Println(outcome)
	return nil
}

func (a *app) list(ctx context.Context, status string) error {
	jobs, err := a.client.List(ctx, job.Status(status))
	if err != nil {
		return err
	}
	for _, j := range jobs {
		fmt.Printf("%s\t%s\t%s\n", j.ID, j.Status, j.Command)
	}
	return nil
}

func (a *app) counts(ctx context.Context) error {
	counts, err := a.client.Counts(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("pending\t%d\nrunning\t%d\nsucceeded\t%d\nfailed\t%d\ncancelled\t%d\nqueue\t%d\n",
		counts.Pending, counts.Running, counts.Succeeded, counts.Failed, counts.Cancelled, counts.QueueLen)
	return nil
}

const timeLayout = "2006-01-02 15:04:05 MST"

func printJob(j *job.Job) {
	fmt.Printf("id:       %s\n", j.ID)
	fmt.Printf("command:  %s\n", j.Command)
	fmt.Printf("status:   %s\n", j.Status)
	fmt.Printf("version:  %d\n", j.Version)
	fmt.Printf("created:  %s\n", j.CreatedAt.Format(timeLayout))
	if j.StartedAt != nil {
		fmt.Printf("started:  %s\n", j.StartedAt.Format(timeLayout))
	}
	if j.FinishedAt != nil {
		fmt.Printf("finished: %s\n", j.FinishedAt.Format(timeLayout))
	}
	if j.CancelledAt != nil {
		fmt.Printf("cancelled: %s\n", j.CancelledAt.Format(timeLayout))
	}
	if j.Output != "" {
		fmt.Printf("output:\n%s", j.Output)
		if !strings.HasSuffix(j.Output, "\n") {
			fmt.Println()
		}
	}
}
