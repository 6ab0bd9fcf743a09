package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/drstein77/productcatalog/internal/app"
	"github.com/drstein77/productcatalog/internal/catalog"
	"github.com/drstein77/productcatalog/internal/filekeeper"
	"github.com/drstein77/productcatalog/internal/logger"
	"github.com/drstein77/productcatalog/internal/models"
	"github.com/drstein77/productcatalog/internal/remote"
	"github.com/drstein77/productcatalog/internal/tui"
	"github.com/drstein77/productcatalog/internal/view"
	"github.com/spf13/cobra"
)

// remoteOpts configure the remote catalog client of every command.
var remoteOpts []remote.Option

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Print the merged catalog, local products first",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the details of one product",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a local product",
	Example: `  productcatalog add --title "Desk Lamp" --description "Warm light" \
    --category home --price 24.5 --stock 3 --image https://example.com/lamp.png`,
	Args: cobra.NoArgs,
	RunE: runAdd,
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a local product",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse the catalog in the terminal",
	Args:  cobra.NoArgs,
	RunE:  runBrowse,
}

func init() {
	listCmd.Flags().StringP("query", "q", "", "search query")

	addCmd.Flags().String("title", "", "product title")
	addCmd.Flags().String("description", "", "product description")
	addCmd.Flags().String("category", "", "product category")
	addCmd.Flags().String("price", "", "price in dollars")
	addCmd.Flags().String("stock", "", "units in stock")
	addCmd.Flags().String("image", "", "image URL")

	deleteCmd.Flags().Bool("yes", false, "delete without asking for confirmation")

	rootCmd.AddCommand(listCmd, showCmd, addCmd, deleteCmd, browseCmd)
}

// openBackend opens the local store and remote client for a one-shot command.
func openBackend(ctx context.Context) (*app.Backend, *logger.Logger, error) {
	log, err := logger.NewLogger(option.LogLevel())
	if err != nil {
		return nil, nil, err
	}
	b, err := app.Open(ctx, option, log, remoteOpts...)
	if err != nil {
		return nil, nil, err
	}
	return b, log, nil
}

func runList(cmd *cobra.Command, args []string) error {
	b, log, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	query, _ := cmd.Flags().GetString("query")
	c := catalog.NewController(b.Remote, b.Store, log)
	if query = strings.TrimSpace(query); query != "" {
		err = c.Search(cmd.Context(), query)
	} else {
		err = c.Refresh(cmd.Context())
	}
	if err != nil {
		return err
	}
	if c.Phase() != catalog.PhaseLoaded {
		return errors.New("remote catalog unavailable")
	}

	printList(cmd.OutOrStdout(), c.Products())
	return nil
}

func printList(w io.Writer, products []models.Product) {
	if len(products) == 0 {
		fmt.Fprintln(w, view.EmptyMessage)
		return
	}
	for _, p := range products {
		fmt.Fprintf(w, "%-10d %-40s %10s  %-16s %d in stock\n",
			p.ID, p.Title, view.FormatPrice(p.Price), p.Category, p.Stock)
	}
}

func runShow(cmd *cobra.Command, args []string) error {
	b, log, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	d := catalog.NewDetailController(url.Values{"id": {args[0]}}, b.Store, b.Remote, log)
	p, err := d.Resolve(cmd.Context())
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s (#%d)\n", p.Title, p.ID)
	fmt.Fprintf(w, "by %s, %s, %s %v\n", p.Brand, view.FormatPrice(p.Price), view.Stars(p.Rating), p.Rating)
	fmt.Fprintf(w, "%s, %d available\n\n", p.Category, p.Stock)
	fmt.Fprintln(w, p.Description)
	if len(p.Reviews) > 0 {
		fmt.Fprintf(w, "\n%d reviews\n", len(p.Reviews))
		for _, r := range p.Reviews {
			fmt.Fprintf(w, "  %s %s %s: %s\n", view.Stars(r.Rating), view.FormatDate(r.Date), r.ReviewerName, r.Comment)
		}
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	b, log, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	fields := map[string]string{}
	for flag, field := range map[string]string{
		"title":       "title",
		"description": "description",
		"category":    "category",
		"price":       "price",
		"stock":       "stock",
		"image":       "imageUrl",
	} {
		fields[field], _ = cmd.Flags().GetString(flag)
	}

	in, err := catalog.ParseForm(func(key string) string { return fields[key] })
	if err != nil {
		return err
	}
	p, err := catalog.NewController(b.Remote, b.Store, log, catalog.WithoutReload()).Add(cmd.Context(), in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Product added successfully! id %d\n", p.ID)
	return nil
}

func runDelete(cmd *cobra.Command, args []string) error {
	b, log, err := openBackend(cmd.Context())
	if err != nil {
		return err
	}
	defer b.Close()

	d := catalog.NewDetailController(url.Values{"id": {args[0]}}, b.Store, b.Remote, log)
	p, err := d.Resolve(cmd.Context())
	if err != nil {
		return err
	}

	yes, _ := cmd.Flags().GetBool("yes")
	confirm := catalog.Confirmed
	if !yes {
		confirm = prompt(cmd.InOrStdin(), cmd.OutOrStdout())
	}

	removed, err := catalog.NewController(b.Remote, b.Store, log, catalog.WithoutReload()).Delete(cmd.Context(), p.ID, confirm)
	if err != nil {
		return err
	}
	if removed {
		fmt.Fprintln(cmd.OutOrStdout(), "Product deleted successfully!")
	} else {
		fmt.Fprintln(cmd.OutOrStdout(), "Nothing deleted.")
	}
	return nil
}

// prompt asks on out and reads the answer from in.
func prompt(in io.Reader, out io.Writer) catalog.Confirmer {
	return func(int64) bool {
		fmt.Fprint(out, "Are you sure you want to delete this product? [y/N] ")
		answer, _ := bufio.NewReader(in).ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		return answer == "y" || answer == "yes"
	}
}

func runBrowse(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	// logs would garble the alternate screen
	log := &logger.Logger{}
	b, err := app.Open(ctx, option, log, remoteOpts...)
	if err != nil {
		return err
	}
	defer b.Close()

	var watcher tui.Watcher
	if fk, ok := b.Keeper.(*filekeeper.Keeper); ok {
		watcher = fk
	}
	return tui.Run(ctx, tui.NewModel(ctx, b.Remote, b.Store, log), watcher)
}
