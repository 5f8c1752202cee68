// Package checkout is the boundary to the payment collaborator. It turns the
// current cart snapshot into an order and clears the cart once the payment
// has been verified.
package checkout
