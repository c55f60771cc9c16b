// Command healthcheck checks connectivity to the verification API and exits
// non-zero if any endpoint failed.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/earnx/earnx/internal/infra/verification"
	"github.com/earnx/earnx/pkg/logger"
)

func main() {
	baseURL := flag.String("url", os.Getenv("VERIFICATION_API_URL"), "verification API base URL")
	apiKey := flag.String("key", os.Getenv("VERIFICATION_API_KEY"), "verification API key")
	timeout := flag.Duration("timeout", 60*time.Second, "overall timeout")
	flag.Parse()

	if *baseURL == "" {
		fmt.Fprintln(os.Stderr, "verification API URL is required (-url or VERIFICATION_API_URL)")
		os.Exit(2)
	}

	log := logger.NewDefault(os.Getenv("ENV"))

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client := verification.NewClient(*baseURL, *apiKey, log)
	report := client.CheckConnectivity(ctx)

	fmt.Printf("Verification API: %s\n\n", client.BaseURL())
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CHECK\tRESULT\tTIME\tDETAIL")
	for _, c := range report.Checks {
		result := "ok"
		if !c.OK {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, result, c.Duration.Round(time.Millisecond), c.Detail)
	}
	tw.Flush()

	if report.Failed() {
		os.Exit(1)
	}
}
