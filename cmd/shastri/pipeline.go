package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the database schema and seed market events",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, e *env) error {
			if err := e.app.Migrate(ctx); err != nil {
				return fmt.Errorf("migrating: %w", err)
			}
			fmt.Println("schema ready")
			return nil
		})
	},
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Download raw inputs",
}

var collectPricesCmd = &cobra.Command{
	Use:   "prices",
	Short: "Download daily prices for every instrument",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, e *env) error {
			n, err := e.app.CollectPrices(ctx)
			if err != nil {
				return fmt.Errorf("collecting prices: %w", err)
			}
			fmt.Printf("stored %d price rows\n", n)
			return nil
		})
	},
}

var collectUnemploymentCmd = &cobra.Command{
	Use:   "unemployment",
	Short: "Download the unemployment series onto the daily grid",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, e *env) error {
			n, err := e.app.CollectUnemployment(ctx)
			if err != nil {
				return fmt.Errorf("collecting unemployment: %w", err)
			}
			fmt.Printf("stored %d unemployment rows\n", n)
			return nil
		})
	},
}

var collectSentimentCmd = &cobra.Command{
	Use:   "sentiment",
	Short: "Score headlines into daily sentiment per instrument",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, e *env) error {
			n, err := e.app.CollectSentiment(ctx)
			if err != nil {
				return fmt.Errorf("collecting sentiment: %w", err)
			}
			fmt.Printf("stored %d sentiment rows\n", n)
			return nil
		})
	},
}

var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "Rebuild the daily macro table and event flags",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, e *env) error {
			res, err := e.app.UpdateMacro(ctx)
			if err != nil {
				return fmt.Errorf("updating macro: %w", err)
			}
			fmt.Printf("macro table: %d days (%s to %s)\n", res.Days, res.Start, res.End)
			fmt.Printf("event flags: %v\n", res.FlagColumns)
			return nil
		})
	},
}

var featuresCmd = &cobra.Command{
	Use:   "features",
	Short: "Assemble the feature table",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, e *env) error {
			table, report, err := e.app.PrepareFeatures(ctx)
			if err != nil {
				return fmt.Errorf("assembling features: %w", err)
			}

			fmt.Printf("rows:     %d of %d\n", report.Emitted, report.InputRows)
			fmt.Printf("features: %d\n", len(table.FeatureNames()))
			reasons := make([]string, 0, len(report.Dropped))
			for r := range report.Dropped {
				reasons = append(reasons, r)
			}
			sort.Strings(reasons)
			for _, r := range reasons {
				fmt.Printf("dropped %-12s %d\n", r+":", report.Dropped[r])
			}
			return nil
		})
	},
}

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train and save a new model",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, e *env) error {
			res, err := e.app.Train(ctx)
			if err != nil {
				return fmt.Errorf("training: %w", err)
			}

			m := res.Metrics
			fmt.Printf("model:     %s\n", res.ModelID)
			fmt.Printf("rows:      %d train / %d test\n", m.TrainRows, m.TestRows)
			fmt.Printf("accuracy:  %.4f\n", m.Accuracy)
			fmt.Printf("precision: %.4f\n", m.Precision)
			fmt.Printf("recall:    %.4f\n", m.Recall)
			fmt.Printf("f1:        %.4f\n", m.F1)
			fmt.Printf("duration:  %.1fs\n", res.Seconds)
			return nil
		})
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict [ticker]",
	Short: "Predict next-day direction for a ticker",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, e *env) error {
			if err := e.app.LoadModel(ctx); err != nil {
				return fmt.Errorf("loading model: %w", err)
			}
			p, err := e.app.Predict(args[0])
			if err != nil {
				return err
			}
			e.log.Debug("prediction", zap.String("model_id", p.ModelID))
			fmt.Printf("%s %s (confidence %.4f, as of %s)\n", p.Ticker, p.Direction, p.Confidence, p.AsOf)
			return nil
		})
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show stored row counts and instrument coverage",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withEnv(func(ctx context.Context, e *env) error {
			st, err := e.app.Status(ctx)
			if err != nil {
				return fmt.Errorf("reading status: %w", err)
			}

			tables := make([]string, 0, len(st.Counts))
			for t := range st.Counts {
				tables = append(tables, t)
			}
			sort.Strings(tables)

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TABLE\tROWS")
			for _, t := range tables {
				fmt.Fprintf(w, "%s\t%d\n", t, st.Counts[t])
			}
			fmt.Fprintln(w)
			fmt.Fprintln(w, "TICKER\tROWS\tFIRST\tLAST\tSENTIMENT")
			for _, c := range st.Tickers {
				fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\n", c.Ticker, c.Rows,
					c.First.Format("2006-01-02"), c.Last.Format("2006-01-02"), c.SentimentRows)
			}
			return w.Flush()
		})
	},
}

func init() {
	collectCmd.AddCommand(collectPricesCmd, collectUnemploymentCmd, collectSentimentCmd)
	rootCmd.AddCommand(migrateCmd, collectCmd, macroCmd, featuresCmd, trainCmd, predictCmd, statusCmd)
}
