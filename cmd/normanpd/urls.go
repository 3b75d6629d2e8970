package main

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/spf13/cobra"

	"github.com/joelkehle/normanpd/internal/fetch"
)

func newURLsCmd() *cobra.Command {
	var (
		start string
		end   string
		count int
		seed  uint64
	)
	cmd := &cobra.Command{
		Use:   "urls",
		Short: "Print random daily summary URLs between two dates",
		Long: `urls prints up to --count distinct daily incident summary URLs for days in
[--start, --end). Dates use YYYY-MM-DD.`,
		Args: cobra.NoArgs,
		// urls needs neither config nor a database.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			rng := rand.New(rand.NewPCG(seed, seed>>1|1))
			urls, err := fetch.RandomDailyURLs(start, end, count, rng)
			if err != nil {
				return err
			}
			for _, u := range urls {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&start, "start", "", "first day (inclusive)")
	f.StringVar(&end, "end", "", "last day (exclusive)")
	f.IntVar(&count, "count", 10, "number of urls")
	f.Uint64Var(&seed, "seed", 0, "random seed (0 picks one)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}
