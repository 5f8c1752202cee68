package products

import (
	"fmt"
	"strconv"

	"github.com/ValentinKolb/dShop/cmd/util"
	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/spf13/cobra"
)

var (
	listCmd = &cobra.Command{
		Use:   "list",
		Short: "Lists the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			category, _ := cmd.Flags().GetString("category")
			products, err := eng.Data.GetProducts(cmd.Context(), category)
			if err != nil {
				return err
			}
			printProducts(products)
			return nil
		},
	}
	featuredCmd = &cobra.Command{
		Use:   "featured",
		Short: "Lists the featured products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := eng.Data.GetFeaturedProducts(cmd.Context())
			if err != nil {
				return err
			}
			printProducts(products)
			return nil
		},
	}
	categoriesCmd = &cobra.Command{
		Use:   "categories",
		Short: "Lists the categories of the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			categories, err := eng.Data.GetCategories(cmd.Context())
			if err != nil {
				return err
			}
			for _, c := range categories {
				fmt.Println(c)
			}
			return nil
		},
	}
	getCmd = &cobra.Command{
		Use:   "get [id]",
		Short: "Shows a single product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("id must be a number: %w", err)
			}
			p, err := eng.Data.GetProduct(cmd.Context(), id)
			if err != nil {
				return err
			}
			return util.PrintJSON(p)
		},
	}
	searchCmd = &cobra.Command{
		Use:   "search [query]",
		Short: "Searches name, description and category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			products, err := eng.Data.SearchProducts(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printProducts(products)
			return nil
		},
	}
	recentCmd = &cobra.Command{
		Use:   "recent",
		Short: "Lists the recently viewed products",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			printProducts(eng.Data.RecentProducts())
			return nil
		},
	}
)

func printProducts(products []model.ProductSnapshot) {
	if len(products) == 0 {
		fmt.Println("no products")
		return
	}
	for _, p := range products {
		stock := "-"
		if n, ok := p.Stock(); ok {
			stock = strconv.Itoa(n)
		}
		fmt.Printf("%6d  %-32s %-16s %10s  stock=%s\n", p.ID, p.Name, p.Category, p.Price, stock)
	}
}
