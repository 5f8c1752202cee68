package checkout

import (
	"fmt"

	"github.com/ValentinKolb/dShop/cmd/util"
	"github.com/ValentinKolb/dShop/lib/checkout"
	"github.com/ValentinKolb/dShop/lib/engine"
	"github.com/ValentinKolb/dShop/lib/model"
	"github.com/spf13/cobra"
)

var (
	eng *engine.Engine

	// CheckoutCommands represents the checkout command group
	CheckoutCommands = &cobra.Command{
		Use:                "checkout",
		Short:              "Create orders from the cart and verify payments",
		PersistentPreRunE:  setupEngine,
		PersistentPostRunE: closeEngine,
	}

	createCmd = &cobra.Command{
		Use:   "create",
		Short: "Creates an order from the confirmed cart lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := cmd.Flags()
			var shipping checkout.ShippingFields
			shipping.Name, _ = f.GetString("name")
			shipping.Email, _ = f.GetString("email")
			shipping.Phone, _ = f.GetString("phone")
			shipping.Address, _ = f.GetString("address")
			shipping.City, _ = f.GetString("city")
			shipping.PostalCode, _ = f.GetString("postal-code")
			shipping.Country, _ = f.GetString("country")
			amount, _ := f.GetFloat64("amount")

			if _, err := eng.Data.GetCart(cmd.Context()); err != nil {
				return err
			}
			order, err := eng.Checkout.CreateOrder(cmd.Context(), shipping, model.Amount(amount))
			if err != nil {
				return err
			}
			fmt.Printf("orderId=%s, orderNumber=%s\n", order.OrderID, order.OrderNumber)
			return nil
		},
	}
	verifyCmd = &cobra.Command{
		Use:   "verify [orderId] [paymentId] [signature]",
		Short: "Verifies a payment and clears the cart on success",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := eng.Checkout.VerifyPayment(cmd.Context(), checkout.PaymentVerification{
				OrderID:   args[0],
				PaymentID: args[1],
				Signature: args[2],
			}); err != nil {
				return err
			}
			fmt.Println("payment verified, cart cleared")
			return nil
		},
	}
)

func init() {
	cobra.OnInitialize(util.InitClientConfig)

	util.SetupClientFlags(CheckoutCommands)

	key := "amount"
	createCmd.Flags().Float64(key, 0, util.WrapString("Order amount (default: the total of the confirmed cart lines)"))
	for _, key = range []string{"name", "email", "phone", "address", "city", "postal-code", "country"} {
		createCmd.Flags().String(key, "", util.WrapString("Shipping "+key))
	}

	CheckoutCommands.AddCommand(createCmd)
	CheckoutCommands.AddCommand(verifyCmd)
}

func setupEngine(cmd *cobra.Command, _ []string) (err error) {
	eng, err = util.OpenEngine(cmd)
	return err
}

func closeEngine(cmd *cobra.Command, _ []string) error {
	return eng.Close(cmd.Context())
}
