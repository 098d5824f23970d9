package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/recolte/internal/tags"
)

func init() {
	tagsCmd := &cobra.Command{
		Use:   "tags",
		Short: "Manage the tag hierarchy",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List tags",
		Run:   runTagList,
	}
	list.Flags().String("parent", "", "Only children of this tag id")
	list.Flags().Bool("roots", false, "Only root tags")

	create := &cobra.Command{
		Use:   "create [name]",
		Short: "Create a tag",
		Args:  cobra.ExactArgs(1),
		Run:   runTagCreate,
	}
	create.Flags().StringP("parent", "p", "", "Parent tag id")
	create.Flags().String("description", "", "Free-form description")
	create.Flags().String("color", "", "Display color")

	rm := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete a tag (children are promoted unless --cascade)",
		Args:  cobra.ExactArgs(1),
		Run:   runTagRemove,
	}
	rm.Flags().Bool("cascade", false, "Also delete the whole subtree")

	mv := &cobra.Command{
		Use:   "mv [id]",
		Short: "Rename or re-parent a tag",
		Args:  cobra.ExactArgs(1),
		Run:   runTagMove,
	}
	mv.Flags().String("name", "", "New name")
	mv.Flags().String("parent", "", "New parent tag id (\"-\" moves to root)")

	path := &cobra.Command{
		Use:   "path [id]",
		Short: "Show the root-to-leaf chain for a tag",
		Args:  cobra.ExactArgs(1),
		Run:   runTagPath,
	}

	attach := &cobra.Command{
		Use:   "attach [url-id] [names...]",
		Short: "Attach tags to a URL, creating missing tags",
		Args:  cobra.MinimumNArgs(2),
		Run:   runTagAttach,
	}

	tagsCmd.AddCommand(list, create, rm, mv, path, attach)
	RootCmd.AddCommand(tagsCmd)
}

func runTagList(cmd *cobra.Command, _ []string) {
	parent, _ := cmd.Flags().GetString("parent")
	roots, _ := cmd.Flags().GetBool("roots")

	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	list, err := svc.ListTags(cmd.Context(), tags.ListFilter{ParentID: parent, RootsOnly: roots})
	if err != nil {
		exitErr("list tags", err)
	}
	if len(list) == 0 {
		fmt.Println("[]")
		return
	}
	printJSON(list)
}

func runTagCreate(cmd *cobra.Command, args []string) {
	parent, _ := cmd.Flags().GetString("parent")
	description, _ := cmd.Flags().GetString("description")
	color, _ := cmd.Flags().GetString("color")

	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	tag, err := svc.CreateTag(cmd.Context(), tags.CreateSpec{
		Name:        args[0],
		ParentID:    parent,
		Description: description,
		Color:       color,
	})
	if err != nil {
		exitErr("create tag", err)
	}
	printJSON(tag)
}

func runTagRemove(cmd *cobra.Command, args []string) {
	cascade, _ := cmd.Flags().GetBool("cascade")

	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	if err := svc.DeleteTag(cmd.Context(), args[0], cascade); err != nil {
		exitErr("delete tag", err)
	}
	fmt.Println("deleted")
}

func runTagMove(cmd *cobra.Command, args []string) {
	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	var patch tags.Patch
	if cmd.Flags().Changed("name") {
		name, _ := cmd.Flags().GetString("name")
		patch.Name = &name
	}
	if cmd.Flags().Changed("parent") {
		parent, _ := cmd.Flags().GetString("parent")
		if parent == "-" {
			parent = ""
		}
		patch.ParentID = &parent
	}

	tag, err := svc.UpdateTag(cmd.Context(), args[0], patch)
	if err != nil {
		exitErr("update tag", err)
	}
	printJSON(tag)
}

func runTagPath(cmd *cobra.Command, args []string) {
	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	chain, err := svc.TagPath(cmd.Context(), args[0])
	if err != nil {
		exitErr("tag path", err)
	}
	printJSON(chain)
}

func runTagAttach(cmd *cobra.Command, args []string) {
	svc, err := openService()
	if err != nil {
		exitErr("open service", err)
	}
	defer svc.Close()

	ids, err := svc.EnsureTags(cmd.Context(), args[1:])
	if err != nil {
		exitErr("ensure tags", err)
	}
	if err := svc.TagURL(cmd.Context(), args[0], ids); err != nil {
		exitErr("attach tags", err)
	}
	printJSON(map[string]any{"url_id": args[0], "tag_ids": ids})
}
