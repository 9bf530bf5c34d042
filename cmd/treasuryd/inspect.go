package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/govledger/treasury/governance"
	"github.com/govledger/treasury/storage"
)

var inspectCommand = &cli.Command{
	Name:  "inspect",
	Usage: "Print the persisted ledger",
	Action: func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}
		store, err := storage.Open(cfg.Storage())
		if err != nil {
			return err
		}
		defer store.Close()

		snap, err := store.Load()
		if err != nil {
			return err
		}
		printSnapshot(os.Stdout, snap)
		fmt.Fprintf(os.Stdout, "\n%d vault accounts, %d events\n", len(snap.Balances), len(snap.Events))
		return nil
	},
}

func printSnapshot(out io.Writer, snap *governance.Snapshot) {
	heading := color.New(color.Bold)
	done := color.New(color.FgGreen).SprintFunc()
	pending := color.New(color.FgYellow).SprintFunc()

	status := func(executed bool) string {
		if executed {
			return done("executed")
		}
		return pending("pending")
	}

	heading.Fprintf(out, "Admins (%d)\n", len(snap.Admins))
	for _, a := range snap.Admins {
		fmt.Fprintf(out, "  %s\n", a.Hex())
	}
	heading.Fprintf(out, "Members (%d)\n", len(snap.Members))
	for _, m := range snap.Members {
		fmt.Fprintf(out, "  %s\n", m.Hex())
	}

	heading.Fprintf(out, "\nProposals (%d)\n", len(snap.Proposals))
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tVOTES\tCREATOR\tDESCRIPTION")
	for _, p := range snap.Proposals {
		fmt.Fprintf(w, "%d\t%s\t%d\t%s\t%s\n", p.ID, status(p.Executed), p.VoteCount, p.Creator.Hex(), p.Description)
	}
	w.Flush()

	heading.Fprintf(out, "\nDonations (%d), pool %s\n", len(snap.Donations), snap.Pool.Dec())
	w = tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPROPOSAL\tSTATUS\tAMOUNT\tDONOR\tBENEFICIARY")
	for _, d := range snap.Donations {
		fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\t%s\n", d.ID, d.ProposalID, status(d.Executed), d.Amount.Dec(), d.Donor.Hex(), d.Beneficiary.Hex())
	}
	w.Flush()
}
