package main

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"reserveScope/internal/config"
	"reserveScope/internal/currency"
)

func newPriceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "price <venue> <base-token>",
		Short: "Print a venue's price for a base token and optionally a swap quote",
		Args:  cobra.ExactArgs(2),
		RunE:  runPrice,
	}
	cmd.Flags().String("amount-in", "", "quote a swap of this many base tokens (whole-token units)")
	return cmd
}

func runPrice(cmd *cobra.Command, args []string) error {
	venueAddr, err := config.ParseAddress(args[0])
	if err != nil {
		return err
	}
	base, err := config.ParseAddress(args[1])
	if err != nil {
		return err
	}

	cp, logger, err := loadCheckpoint(cmd)
	if err != nil {
		return err
	}
	defer logger.Sync()

	venue, ok := cp.Venues[venueAddr]
	if !ok {
		return fmt.Errorf("venue %s is not tracked", venueAddr.Hex())
	}
	quoteAddr, err := venue.TokenOut(base)
	if err != nil {
		return err
	}
	baseCur, quoteCur := currencyOf(venue.Currencies(), base), currencyOf(venue.Currencies(), quoteAddr)

	price, err := venue.Price(base)
	if err != nil {
		return fmt.Errorf("price: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "1 %s = %v %s\n", label(baseCur), price, label(quoteCur))

	amountIn, _ := cmd.Flags().GetString("amount-in")
	if amountIn == "" {
		return nil
	}
	raw, err := parseAmount(amountIn, baseCur.Decimals)
	if err != nil {
		return err
	}
	amountOut, err := venue.AmountOut(base, raw)
	if err != nil {
		return fmt.Errorf("amount out: %w", err)
	}
	fmt.Fprintf(out, "%s %s -> %s %s\n",
		formatAmount(raw, baseCur.Decimals), label(baseCur),
		formatAmount(amountOut, quoteCur.Decimals), label(quoteCur),
	)
	return nil
}

func currencyOf(currencies []currency.Currency, addr common.Address) currency.Currency {
	for _, c := range currencies {
		if c.Address == addr {
			return c
		}
	}
	return currency.Unresolved(addr)
}

func label(c currency.Currency) string {
	if c.Symbol != "" {
		return c.Symbol
	}
	return c.Address.Hex()
}
