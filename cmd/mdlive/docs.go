package main

import (
	"fmt"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/fredcamaral/mdlive/internal/adapters/secondary/parser"
	"github.com/fredcamaral/mdlive/internal/domain/ports"
	"github.com/fredcamaral/mdlive/internal/domain/services"
)

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "Manage stored documents",
	Long: `Documents are kept in a local SQLite database together with the list
of recently opened documents. 'mdlive serve' without a file shows the
current document.`,
}

func init() {
	rootCmd.AddCommand(docsCmd)
	docsCmd.PersistentFlags().String("store", "", "Document database path (overrides config)")

	docsCmd.AddCommand(
		&cobra.Command{Use: "list", Short: "List documents, most recently modified first", Args: cobra.NoArgs, RunE: runDocsList},
		&cobra.Command{Use: "recent", Short: "List recently opened documents", Args: cobra.NoArgs, RunE: runDocsRecent},
		docsImportCmd,
		docsShowCmd,
		&cobra.Command{Use: "rm <id>...", Short: "Delete documents", Args: cobra.MinimumNArgs(1), RunE: runDocsRemove},
	)

	docsImportCmd.Flags().String("title", "", "Document title (default: from the content or filename)")
	docsShowCmd.Flags().Bool("meta", false, "Print metadata instead of the content")
}

var docsImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Store a markdown file as a new document and make it current",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsImport,
}

var docsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print a stored document",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocsShow,
}

// withDocuments opens the store for the duration of fn
func withDocuments(cmd *cobra.Command, fn func(*services.DocumentService) error) error {
	storePath, _ := cmd.Flags().GetString("store")
	cfg, logger, closeLog, err := setup(cmd, "", ports.ConfigOverrides{StorePath: storePath})
	if err != nil {
		return err
	}
	defer closeLog()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	docs := services.NewDocumentService(st, cfg.Store.GetAutosaveDelay(), logger)
	defer func() { _ = docs.Close(cmd.Context()) }()
	return fn(docs)
}

func runDocsList(cmd *cobra.Command, _ []string) error {
	return withDocuments(cmd, func(docs *services.DocumentService) error {
		list, err := docs.List(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTITLE\tMODIFIED\tSIZE")
		for _, d := range list {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\n", d.ID, d.Title, d.ModifiedAt.Local().Format(time.DateTime), len(d.Content))
		}
		return w.Flush()
	})
}

func runDocsRecent(cmd *cobra.Command, _ []string) error {
	return withDocuments(cmd, func(docs *services.DocumentService) error {
		recent, err := docs.Recent(cmd.Context())
		if err != nil {
			return err
		}
		current, err := docs.Current(cmd.Context())
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "\tID\tTITLE\tOPENED")
		for _, r := range recent {
			marker := ""
			if current != nil && current.ID == r.ID {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, r.ID, r.Title, r.LastOpened.Local().Format(time.DateTime))
		}
		return w.Flush()
	})
}

func runDocsImport(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args[0])
	if err != nil {
		return err
	}
	title, _ := cmd.Flags().GetString("title")
	if title == "" {
		title = parser.NewExtractor(nil, nil, nil).Extract(text).Title
	}
	if title == "" {
		title = titleFromFilename(args[0])
	}

	return withDocuments(cmd, func(docs *services.DocumentService) error {
		doc, err := docs.Create(cmd.Context(), title, text)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", doc.ID)
		fmt.Fprintf(cmd.ErrOrStderr(), "Imported %s as %q\n", filepath.Base(args[0]), doc.Title)
		return nil
	})
}

func runDocsShow(cmd *cobra.Command, args []string) error {
	return withDocuments(cmd, func(docs *services.DocumentService) error {
		doc, err := docs.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if meta, _ := cmd.Flags().GetBool("meta"); meta {
			fmt.Fprintf(cmd.OutOrStdout(), "id:       %s\ntitle:    %s\ncreated:  %s\nmodified: %s\nsize:     %d\n",
				doc.ID, doc.Title,
				doc.CreatedAt.Local().Format(time.RFC3339),
				doc.ModifiedAt.Local().Format(time.RFC3339),
				len(doc.Content))
			return nil
		}
		_, err = fmt.Fprint(cmd.OutOrStdout(), doc.Content)
		return err
	})
}

func runDocsRemove(cmd *cobra.Command, args []string) error {
	return withDocuments(cmd, func(docs *services.DocumentService) error {
		for _, id := range args {
			if err := docs.Delete(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Deleted %s\n", id)
		}
		return nil
	})
}
