package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"metalpulse/internal/api"
	"metalpulse/pkg/metalpulse"
)

const version = "1.0.0"

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: metalpulse-cli <command> [args]\n\n")
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  version                     Print the CLI version\n")
		fmt.Fprintf(os.Stderr, "  status                      Show pipeline status\n")
		fmt.Fprintf(os.Stderr, "  health                      Check gRPC health of the refresh service\n")
		fmt.Fprintf(os.Stderr, "  symbols                     List tracked symbols\n")
		fmt.Fprintf(os.Stderr, "  overview                    Show current sentiment per stock\n")
		fmt.Fprintf(os.Stderr, "  refresh                     Run a sentiment refresh and wait for it\n")
		fmt.Fprintf(os.Stderr, "  correlation <symbol> [days] Correlate sentiment with price change\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment:\n")
		fmt.Fprintf(os.Stderr, "  METALPULSE_URL   API base URL (default http://localhost:3001)\n")
		fmt.Fprintf(os.Stderr, "  METALPULSE_GRPC  gRPC address (default localhost:9091)\n\n")
	}

	if len(os.Args) < 2 {
		flag.Usage()
		os.Exit(1)
	}

	baseURL := envOr("METALPULSE_URL", "http://localhost:3001")
	client := metalpulse.NewClient(baseURL)
	ctx := context.Background()

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("metalpulse-cli %s\n", version)

	case "status":
		err = status(ctx, client)

	case "health":
		addr := envOr("METALPULSE_GRPC", "localhost:9091")
		var st fmt.Stringer
		st, err = api.Check(ctx, addr, api.RefreshService)
		if err == nil {
			fmt.Printf("%s: %s\n", api.RefreshService, st)
		}

	case "symbols":
		err = symbols(ctx, client)

	case "overview":
		err = overview(ctx, client)

	case "refresh":
		err = runRefresh(ctx, client)

	case "correlation":
		if len(os.Args) < 3 {
			flag.Usage()
			os.Exit(1)
		}
		days := 0
		if len(os.Args) > 3 {
			if days, err = strconv.Atoi(os.Args[3]); err != nil {
				fmt.Fprintf(os.Stderr, "invalid days %q\n", os.Args[3])
				os.Exit(1)
			}
		}
		err = correlation(ctx, client, os.Args[2], days)

	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		flag.Usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func status(ctx context.Context, c *metalpulse.Client) error {
	s, err := c.Status(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("stocks tracked:     %d\n", s.StocksTracked)
	fmt.Printf("stocks with data:   %d\n", s.StocksWithData)
	fmt.Printf("last updated:       %s\n", s.LastUpdated.Local().Format(time.DateTime))
	fmt.Printf("api requests:       %d\n", s.APIRequestsThisSession)
	fmt.Printf("refresh running:    %t\n", s.RefreshInProgress)
	return nil
}

func symbols(ctx context.Context, c *metalpulse.Client) error {
	list, err := c.Symbols(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tNAME\tSECTOR")
	for _, s := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", s.Symbol, s.Name, s.Sector)
	}
	return tw.Flush()
}

func overview(ctx context.Context, c *metalpulse.Client) error {
	list, err := c.Overview(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SYMBOL\tNAME\tDATE\tSCORE\tLABEL\tNEWS")
	for _, o := range list {
		if o.Sentiment == nil {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t-\t-\n", o.Symbol, o.Name)
			continue
		}
		s := o.Sentiment
		fmt.Fprintf(tw, "%s\t%s\t%s\t%+.3f\t%s\t%d\n", o.Symbol, o.Name, s.Date, s.AverageSentiment, s.SentimentLabel, s.NewsCount)
	}
	return tw.Flush()
}

func runRefresh(ctx context.Context, c *metalpulse.Client) error {
	fmt.Println("refreshing, this can take several minutes...")
	r, err := c.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %d stocks, %d dates processed, %d skipped, %d api requests\n",
		r.RunID, len(r.Processed), r.DatesProcessed, r.DatesSkipped, r.APIRequestsUsed)
	for _, e := range r.Errors {
		fmt.Printf("  %s: %s\n", e.Symbol, e.Message)
	}
	return nil
}

func correlation(ctx context.Context, c *metalpulse.Client, symbol string, days int) error {
	r, err := c.Correlation(ctx, symbol, days)
	if err != nil {
		return err
	}
	if r.Correlation == nil {
		fmt.Printf("%s (%s): %s\n", r.Symbol, r.Period, r.Message)
		return nil
	}
	fmt.Printf("%s (%s): r = %+.3f (%s) over %d days\n",
		r.Symbol, r.Period, *r.Correlation, r.CorrelationStrength, r.DataPointsUsed)
	return nil
}
