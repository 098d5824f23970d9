package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/recolte/internal/registry"
)

func init() {
	urls := &cobra.Command{
		Use:   "urls",
		Short: "Inspect and manage registered URLs",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List registered URLs",
		Run:   runURLList,
	}
	list.Flags().StringP("status", "s", "", "Filter: pending, processing, completed, failed, skipped")
	list.Flags().String("type", "", "Filter by detected content type")
	list.Flags().IntP("limit", "l", 100, "Max rows")

	get := &cobra.Command{
		Use:   "get [url-or-id]",
		Short: "Show one registered URL",
		Args:  cobra.ExactArgs(1),
		Run:   runURLGet,
	}

	add := &cobra.Command{
		Use:   "add [url]",
		Short: "Register a URL without processing it",
		Args:  cobra.ExactArgs(1),
		Run:   runURLAdd,
	}

	rm := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a URL and everything attached to it",
		Args:  cobra.ExactArgs(1),
		Run:   runURLRemove,
	}

	history := &cobra.Command{
		Use:   "history [id]",
		Short: "Show past pipeline attempts for a URL",
		Args:  cobra.ExactArgs(1),
		Run:   runURLHistory,
	}
	history.Flags().IntP("limit", "l", 50, "Max rows")

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete every URL in failed status",
		Run:   runURLPurge,
	}

	urls.AddCommand(list, get, add, rm, history, purge)
	RootCmd.AddCommand(urls)
}

func runURLList(cmd *cobra.Command, _ []string) {
	status, _ := cmd.Flags().GetString("status")
	contentType, _ := cmd.Flags().GetString("type")
	limit, _ := cmd.Flags().GetInt("limit")

	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	list, err := svc.ListURLs(cmd.Context(), registry.Filter{
		Status:      status,
		ContentType: contentType,
		Limit:       limit,
	})
	if err != nil {
		exitErr("list urls", err)
	}
	if len(list) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(list)
}

func runURLGet(cmd *cobra.Command, args []string) {
	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	// Try the argument as a URL first, then as an id.
	rec, err := svc.GetURL(cmd.Context(), args[0])
	if err != nil {
		exitErr("get url", err)
	}
	if rec == nil {
		rec, err = svc.GetURLByID(cmd.Context(), args[0])
		if err != nil {
			exitErr("get url", err)
		}
	}
	if rec == nil {
		exitErr("get url", fmt.Errorf("not found: %s", args[0]))
	}
	printJSON(rec)
}

func runURLAdd(cmd *cobra.Command, args []string) {
	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	id, err := svc.AddURL(cmd.Context(), args[0], nil)
	if err != nil {
		exitErr("add url", err)
	}
	printJSON(map[string]string{"id": id})
}

func runURLRemove(cmd *cobra.Command, args []string) {
	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	if err := svc.RemoveURL(cmd.Context(), args[0]); err != nil {
		exitErr("remove url", err)
	}
	fmt.Println("deleted")
}

func runURLPurge(cmd *cobra.Command, _ []string) {
	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	n, err := svc.PurgeFailed(cmd.Context())
	if err != nil {
		exitErr("purge", err)
	}
	printJSON(map[string]int{"purged": n})
}

func runURLHistory(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")

	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	history, err := svc.IngestHistory(cmd.Context(), args[0], limit)
	if err != nil {
		exitErr("history", err)
	}
	if len(history) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(history)
}
