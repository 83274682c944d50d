// Command reconcile is the operator tool for payments that were verified but
// never became orders.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/Govind-619/DonateKart/config"
	"github.com/Govind-619/DonateKart/services"
	"github.com/Govind-619/DonateKart/utils"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "reconcile",
		Usage: "inspect and settle payments that need reconciliation",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "list reconciliation cases",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Value: "open", Usage: "open, resolved or all"},
					&cli.IntFlag{Name: "limit", Value: 50},
				},
				Action: listCases,
			},
			{
				Name:  "resolve",
				Usage: "close a case once the payment is settled",
				Flags: []cli.Flag{
					&cli.UintFlag{Name: "id", Required: true},
					&cli.StringFlag{Name: "note", Required: true, Usage: "what was done, e.g. refund id"},
				},
				Action: resolveCase,
			},
			{
				Name:  "export",
				Usage: "write cases to an xlsx file",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "status", Value: "open"},
					&cli.StringFlag{Name: "out", Value: "reconciliation.xlsx"},
				},
				Action: exportCases,
			},
			{
				Name:  "logstats",
				Usage: "summarize a day of checkout logs",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Value: "./logs"},
					&cli.StringFlag{Name: "date", Value: time.Now().Format("2006-01-02")},
				},
				Action: logStats,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDesk() (*services.ReconciliationDesk, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	db, err := config.InitDB(cfg)
	if err != nil {
		return nil, err
	}
	return services.NewReconciliationDesk(db), nil
}

func statusFilter(status string) string {
	if status == "all" {
		return ""
	}
	return status
}

func listCases(c *cli.Context) error {
	desk, err := openDesk()
	if err != nil {
		return err
	}

	cases, total, err := desk.List(context.Background(), statusFilter(c.String("status")), 0, c.Int("limit"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tOPENED\tBUYER\tGATEWAY ORDER\tPAYMENT\tAMOUNT\tSTATUS\tREASON")
	for _, rc := range cases {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
			rc.ID, rc.CreatedAt.Format("2006-01-02 15:04"), rc.UserID,
			rc.RazorpayOrderID, rc.PaymentID, utils.FormatAmount(rc.Amount), rc.Status, rc.Reason)
	}
	if err := w.Flush(); err != nil {
		return err
	}
	fmt.Printf("\n%d of %d cases\n", len(cases), total)
	return nil
}

func resolveCase(c *cli.Context) error {
	desk, err := openDesk()
	if err != nil {
		return err
	}
	rc, err := desk.Resolve(context.Background(), c.Uint("id"), c.String("note"))
	if err != nil {
		return err
	}
	fmt.Printf("Case %d resolved at %s\n", rc.ID, rc.ResolvedAt.Format(time.RFC3339))
	return nil
}

func exportCases(c *cli.Context) error {
	desk, err := openDesk()
	if err != nil {
		return err
	}

	out := c.String("out")
	file, err := os.Create(out)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := desk.ExportXLSX(context.Background(), file, statusFilter(c.String("status"))); err != nil {
		return err
	}
	fmt.Println("Wrote", out)
	return nil
}

func logStats(c *cli.Context) error {
	path := filepath.Join(c.String("dir"), fmt.Sprintf("checkout-%s.log", c.String("date")))
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("error opening log file %s: %v", path, err)
	}
	defer file.Close()

	stats := newLogStats()
	if err := analyzeCheckoutLog(file, stats); err != nil {
		return err
	}
	printReport(os.Stdout, stats)
	return nil
}
