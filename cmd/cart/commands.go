package cart

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/spf13/cobra"
)

var (
	showCmd = &cobra.Command{
		Use:   "show",
		Short: "Lists the cart lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := eng.Data.GetCart(cmd.Context()); err != nil {
				return err
			}
			items := eng.Cart.Items()
			if len(items) == 0 {
				fmt.Println("cart is empty")
				return nil
			}
			for _, it := range items {
				name := fmt.Sprintf("product %d", it.ProductID)
				if it.Product != nil {
					name = it.Product.Name
				}
				fmt.Printf("%8s  %-32s x%-4d %s\n", it.ID, name, it.Quantity, it.MetaData.Key())
			}
			return nil
		},
	}
	addCmd = &cobra.Command{
		Use:   "add [productId] [quantity]",
		Short: "Adds a product to the cart",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			productID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("productId must be a number: %w", err)
			}
			quantity := 1
			if len(args) == 2 {
				if quantity, err = strconv.Atoi(args[1]); err != nil {
					return fmt.Errorf("quantity must be a number: %w", err)
				}
			}
			raw, _ := cmd.Flags().GetString("variant")
			variant, err := ParseVariant(raw)
			if err != nil {
				return err
			}

			// stock clamping needs the catalog
			if _, err := eng.Data.LoadAppData(cmd.Context(), false); err != nil {
				return err
			}
			return eng.Cart.AddToCart(cmd.Context(), productID, quantity, variant)
		},
	}
	updateCmd = &cobra.Command{
		Use:   "update [lineId] [quantity]",
		Short: "Sets the quantity of a cart line (0 removes it)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseLineID(args[0])
			if err != nil {
				return err
			}
			quantity, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("quantity must be a number: %w", err)
			}
			if _, err := eng.Data.GetCart(cmd.Context()); err != nil {
				return err
			}
			if err := eng.Cart.UpdateQuantity(cmd.Context(), id, quantity); err != nil {
				return err
			}
			return eng.Cart.Flush(cmd.Context())
		},
	}
	removeCmd = &cobra.Command{
		Use:   "remove [lineId]",
		Short: "Removes a cart line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := model.ParseLineID(args[0])
			if err != nil {
				return err
			}
			if _, err := eng.Data.GetCart(cmd.Context()); err != nil {
				return err
			}
			return eng.Cart.RemoveFromCart(cmd.Context(), id)
		},
	}
	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Removes all cart lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return eng.Cart.ClearCart(cmd.Context())
		},
	}
	totalCmd = &cobra.Command{
		Use:   "total",
		Short: "Prints the item count and the total price",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := eng.Data.GetCart(cmd.Context()); err != nil {
				return err
			}
			fmt.Printf("items=%d, total=%s\n", eng.Cart.GetCartCount(), eng.Cart.GetCartTotal())
			return nil
		},
	}
)

// ParseVariant parses comma-separated key=value pairs into a variant. An
// empty string yields no variant.
func ParseVariant(s string) (model.Variant, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	v := model.Variant{}
	for _, pair := range strings.Split(s, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, fmt.Errorf("invalid variant option %q, expected key=value", pair)
		}
		v[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}
	return v, nil
}
