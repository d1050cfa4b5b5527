package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/adoptapet/internal/domain/search/request"
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search pets by text description or example image",
	Example: `  adoptapet search "playful orange tabby kitten"
  adoptapet search --image ./photos/beagle.jpg --top-k 10`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().String("image", "", "path to an example image; replaces the text query")
	searchCmd.Flags().Int("top-k", request.DefaultTopK, fmt.Sprintf("results per section (1-%d)", request.MaxTopK))
}

func runSearch(cmd *cobra.Command, args []string) error {
	query, err := queryFromFlags(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer a.close()

	svc, err := a.searchService(a.embedder())
	if err != nil {
		return err
	}

	resp, err := svc.Search(ctx, query)
	if err != nil {
		return fmt.Errorf("search: %w", err)
	}
	return render(cmd.OutOrStdout(), resp)
}

func queryFromFlags(cmd *cobra.Command, args []string) (request.Query, error) {
	imagePath, _ := cmd.Flags().GetString("image")
	topK, _ := cmd.Flags().GetInt("top-k")
	if topK < 1 || topK > request.MaxTopK {
		return request.Query{}, fmt.Errorf("--top-k must be between 1 and %d", request.MaxTopK)
	}

	switch {
	case imagePath != "" && len(args) > 0:
		return request.Query{}, errors.New("give either a text query or --image, not both")
	case imagePath != "":
		data, err := os.ReadFile(imagePath)
		if err != nil {
			return request.Query{}, fmt.Errorf("read image: %w", err)
		}
		return request.NewImage(data, filepath.Base(imagePath), topK)
	case len(args) == 0 || strings.TrimSpace(args[0]) == "":
		return request.Query{}, errors.New(request.EmptyQueryMessage)
	default:
		return request.NewText(args[0], topK)
	}
}
