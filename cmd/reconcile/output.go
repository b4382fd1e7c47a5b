package main

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reconciler/internal/utils"
)

func printSummary(w io.Writer, s pipeline.BatchSummary, took time.Duration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "INVOICE\tFILE\tPO\tDISCREPANCIES\tACTION\tCONFIDENCE")
	for _, r := range s.Results {
		pr := r.ProcessingResults
		po := "-"
		if pr.MatchingResults != nil && pr.MatchingResults.PONumber != "" {
			po = pr.MatchingResults.PONumber
		}
		id := r.InvoiceID
		if id == "" {
			id = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			id, r.DocumentInfo.Filename, po, len(pr.Discrepancies),
			utils.Humanize(string(pr.RecommendedAction)), utils.Percent(pr.Confidence))
	}
	_ = tw.Flush()

	fmt.Fprintf(w, "\nProcessed %d invoices in %s (%d failed", s.Processed, took.Round(time.Millisecond), s.Failed)
	if len(s.Skipped) > 0 {
		fmt.Fprintf(w, ", %d skipped", len(s.Skipped))
	}
	fmt.Fprintln(w, ")")
	for _, a := range constants.AllActions {
		fmt.Fprintf(w, "  %-18s %d\n", utils.Humanize(string(a))+":", s.Actions[a])
	}
}

func printPurchaseOrders(w io.Writer, orders []entity.PurchaseOrder) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PO\tSUPPLIER\tDATE\tLINES\tTOTAL")
	for _, po := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n",
			po.PONumber, po.Supplier, po.Date, len(po.LineItems), utils.FormatMoney(po.Currency, po.Total))
	}
	_ = tw.Flush()
	fmt.Fprintf(w, "%d purchase orders\n", len(orders))
}
