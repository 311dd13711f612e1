package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"sociofi/internal/models"
	"sociofi/internal/retrieval"
)

var (
	indexName  string
	indexRoles []string
)

var indexCmd = &cobra.Command{
	Use:   "index <file>",
	Short: "Embed a document into the retrieval store",
	Long: `index loads a local file, splits it into chunks and stores their embeddings
so /api/chat can ground answers on it. Re-indexing a name replaces its chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		emb, err := a.embedder(ctx)
		if err != nil {
			return err
		}
		indexer, err := retrieval.NewIndexer(ctx, emb, a.docs, a.cfg.Embedding.ChunkSize, a.logger)
		if err != nil {
			return err
		}
		name := indexName
		if name == "" {
			name = filepath.Base(args[0])
		}
		roles := models.NormalizeAccess(indexRoles)
		if len(roles) == 0 {
			return fmt.Errorf("at least one role is required")
		}
		n, err := indexer.Index(ctx, args[0], name, roles)
		if err != nil {
			return err
		}
		a.logger.Info("document indexed", zap.String("name", name), zap.Strings("roles", roles), zap.Int("chunks", n))
		fmt.Fprintf(cmd.OutOrStdout(), "indexed %s: %d chunks\n", name, n)
		return nil
	},
}

func init() {
	indexCmd.Flags().StringVar(&indexName, "name", "", "document name (defaults to the file name)")
	indexCmd.Flags().StringSliceVar(&indexRoles, "roles", []string{models.AccessAll}, "roles allowed to read the document")
	rootCmd.AddCommand(indexCmd)
}
