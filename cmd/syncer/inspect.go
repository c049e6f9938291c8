package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/holiman/uint256"
	"github.com/spf13/cobra"

	"reserveScope/internal/dex"
)

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print the checkpoint summary and populated venues",
		RunE:  runInspect,
	}
}

func runInspect(cmd *cobra.Command, _ []string) error {
	cp, logger, err := loadCheckpoint(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cp.String())

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KIND\tVENUE\tTOKEN0\tRESERVE0\tTOKEN1\tRESERVE1\tCURSOR")
	for _, venue := range cp.PopulatedVenues() {
		currencies := venue.Currencies()
		r0, r1 := venueReserves(venue)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			venue.Kind(),
			venue.Address().Hex(),
			currencies[0].Symbol,
			formatAmount(r0, currencies[0].Decimals),
			currencies[1].Symbol,
			formatAmount(r1, currencies[1].Decimals),
			venue.Cursor(),
		)
	}
	return w.Flush()
}

func venueReserves(venue dex.Venue) (*uint256.Int, *uint256.Int) {
	switch v := venue.(type) {
	case *dex.ConstantProductPool:
		return v.Reserve0, v.Reserve1
	case *dex.Vault:
		return v.ShareReserve, v.AssetReserve
	default:
		return nil, nil
	}
}
