// Command crowdmind runs the CrowdMind crowdfunding agent.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/crowdmind/crowdmind"
	"github.com/crowdmind/crowdmind/config"
	"github.com/crowdmind/crowdmind/store"
	"github.com/crowdmind/crowdmind/types"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:   "crowdmind",
		Short: "Crowdfunded on-chain proposal agent with x402 payment gating",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config file")

	root.AddCommand(serveCmd(), monitorCmd(), seedCmd(), listCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the proposal monitor",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if demo {
				cfg.Demo = true
			}

			agent, err := crowdmind.New(cfg)
			if err != nil {
				return err
			}
			defer agent.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return agent.Run(ctx)
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "use simulated chain clients")
	return cmd
}

func monitorCmd() *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Run only the proposal monitor loop, without the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if demo {
				cfg.Demo = true
			}

			agent, err := crowdmind.New(cfg)
			if err != nil {
				return err
			}
			defer agent.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			agent.Executor().Monitor(ctx)
			return nil
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "use simulated chain clients")
	return cmd
}

func listCmd() *cobra.Command {
	var withTransactions bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List proposals in the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			proposals, err := st.ListProposals(store.ProposalFilter{})
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tACTION\tSTATUS\tFUNDING")
			for _, p := range proposals {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s/%s USDC\n",
					p.ID, p.Title,
					types.FormatActionType(p.ActionType),
					types.FormatStatus(p.Status),
					p.CurrentAmount.String(), p.GoalAmount.String())
			}
			if err := w.Flush(); err != nil {
				return err
			}

			if !withTransactions {
				return nil
			}
			for _, p := range proposals {
				txs, err := st.ListTransactions(p.ID)
				if err != nil {
					return err
				}
				for _, tx := range txs {
					fmt.Printf("  %s: %s on %s %s -> %s (%s USDC) %s\n",
						p.ID, types.FormatTransactionType(tx.Type),
						types.FormatChain(tx.Chain),
						tx.FromAddress, tx.ToAddress,
						tx.Amount.String(), tx.TransactionHash)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withTransactions, "transactions", false, "include audit transactions")
	return cmd
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load sample proposals into the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			st, err := store.Open(cfg.Store.Path)
			if err != nil {
				return err
			}
			defer st.Close()

			if err := store.Seed(st); err != nil {
				return err
			}
			fmt.Println("sample proposals loaded")
			return nil
		},
	}
}
