package cli

import (
	"github.com/spf13/cobra"

	"github.com/hazyhaar/recolte"
)

func init() {
	cmd := &cobra.Command{
		Use:   "process [urls...]",
		Short: "Fetch, extract, and index one or more URLs",
		Args:  cobra.MinimumNArgs(1),
		Run:   runProcess,
	}

	cmd.Flags().StringSliceP("tag", "t", nil, "Tag names to attach (repeatable)")
	cmd.Flags().Bool("force", false, "Reprocess even if content is unchanged")
	cmd.Flags().IntP("window", "w", 0, "Concurrent URLs per batch window")

	RootCmd.AddCommand(cmd)
}

func runProcess(cmd *cobra.Command, args []string) {
	tagNames, _ := cmd.Flags().GetStringSlice("tag")
	force, _ := cmd.Flags().GetBool("force")
	window, _ := cmd.Flags().GetInt("window")

	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	opts := recolte.Options{ForceReprocess: force, WindowSize: window}

	if len(args) == 1 {
		var res *recolte.Result
		if len(tagNames) > 0 {
			res = svc.ProcessURLWithTags(cmd.Context(), args[0], tagNames, opts)
		} else {
			res = svc.ProcessURL(cmd.Context(), args[0], opts)
		}
		printJSON(res)
		return
	}

	results := svc.ProcessURLs(cmd.Context(), args, opts)
	if len(tagNames) > 0 {
		ids, err := svc.EnsureTags(cmd.Context(), tagNames)
		if err != nil {
			exitErr("ensure tags", err)
		}
		for _, res := range results {
			if res.URLID != "" {
				svc.TagURL(cmd.Context(), res.URLID, ids)
			}
		}
	}
	printJSON(results)
}
