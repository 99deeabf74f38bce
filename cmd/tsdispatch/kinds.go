package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/rbaliyan/tsdispatch"
	"github.com/spf13/cobra"
)

func newKindsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kinds",
		Short: "List event kinds, their flags and audiences",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ORDINAL\tNAME\tFLAG\tAUDIENCE")
			for _, k := range tsdispatch.Kinds() {
				fmt.Fprintf(w, "%d\t%s\t%#x\t%s\n", k.Ordinal(), k, uint64(k.Flag()), k.Audience())
			}
			fmt.Fprintln(w)
			fmt.Fprintf(w, "search\t%#x\t%s\n", uint64(tsdispatch.SearchMask()), tsdispatch.SearchMask())
			fmt.Fprintf(w, "publish\t%#x\t%s\n", uint64(tsdispatch.PublishMask()), tsdispatch.PublishMask())
			fmt.Fprintf(w, "rpc\t%#x\t%s\n", uint64(tsdispatch.RPCMask()), tsdispatch.RPCMask())
			return w.Flush()
		},
	}
}

func newConsumersCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "consumers",
		Short: "List the consumer names usable in " + tsdispatch.KeyConsumers,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, name := range tsdispatch.RegisteredConsumers() {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
		},
	}
}
