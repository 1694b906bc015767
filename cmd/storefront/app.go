package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/fjod/storefront/internal/cart"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/order"
	"github.com/fjod/storefront/internal/orderapi"
	"github.com/fjod/storefront/internal/payment"
)

const usage = `usage: storefront [flags] <command> [args]

commands:
  products                                  list the catalog
  cart                                      show the cart, its prices and the next checkout step
  add <product-id> <qty>                    add a product or set its quantity (0 removes)
  remove <product-id>                       remove a product
  ship <address> <city> <postal> <country>  set the shipping address
  method <payment-method>                   set the payment method
  step <cart|shipping|payment|place-order>  try to enter a checkout step
  place                                     place the cart as an order
  order <order-id>                          show an order
  pay <order-id> <capture.json|->           confirm a captured payment
  deliver <order-id>                        mark a paid order delivered (admin)
`

var errUsage = errors.New("invalid usage")

type app struct {
	sessions  *cart.Sessions
	api       *orderapi.Client
	lifecycle *order.Lifecycle
	actor     domain.Actor
	sessionID string
	in        io.Reader
	out       io.Writer
}

type cartView struct {
	Cart     domain.Cart           `json:"cart"`
	Prices   domain.PriceBreakdown `json:"prices"`
	NextStep string                `json:"nextStep"`
}

type orderView struct {
	Order          *domain.Order            `json:"order"`
	Status         domain.OrderStatus       `json:"status"`
	Prices         domain.PriceBreakdown    `json:"prices"`
	ShowPayPal     bool                     `json:"showPayPal"`
	PayPalClientID string                   `json:"paypalClientId,omitempty"`
	Purchase       *payment.PurchaseRequest `json:"purchase,omitempty"`
	CanDeliver     bool                     `json:"canDeliver"`
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, args := args[0], args[1:]

	switch cmd {
	case "products":
		products, err := a.api.ListProducts(ctx)
		if err != nil {
			return err
		}
		return a.print(products)
	case "order":
		if len(args) != 1 {
			return errUsage
		}
		return a.showOrder(ctx, args[0])
	case "pay":
		if len(args) != 2 {
			return errUsage
		}
		return a.pay(ctx, args[0], args[1])
	case "deliver":
		if len(args) != 1 {
			return errUsage
		}
		if _, err := a.lifecycle.ConfirmDelivery(ctx, args[0], a.actor); err != nil {
			return err
		}
		return a.showOrder(ctx, args[0])
	}

	store, err := a.sessions.Open(ctx, a.sessionID)
	if err != nil {
		return err
	}

	switch cmd {
	case "cart":
		return a.showCart(store)
	case "add":
		if len(args) != 2 {
			return errUsage
		}
		qty, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("%w: quantity %q is not a number", domain.ErrValidation, args[1])
		}
		if _, err := store.AddOrUpdateItem(ctx, args[0], qty); err != nil {
			return err
		}
		return a.showCart(store)
	case "remove":
		if len(args) != 1 {
			return errUsage
		}
		store.RemoveItem(args[0])
		return a.showCart(store)
	case "ship":
		if len(args) != 4 {
			return errUsage
		}
		addr := domain.ShippingAddress{Address: args[0], City: args[1], PostalCode: args[2], Country: args[3]}
		if err := store.SetShippingAddress(addr); err != nil {
			return err
		}
		return a.showCart(store)
	case "method":
		if len(args) != 1 {
			return errUsage
		}
		method, err := domain.ParsePaymentMethod(args[0])
		if err != nil {
			return err
		}
		if err := store.SetPaymentMethod(method); err != nil {
			return err
		}
		return a.showCart(store)
	case "step":
		if len(args) != 1 {
			return errUsage
		}
		target, err := checkout.ParseStep(args[0])
		if err != nil {
			return err
		}
		d := checkout.Enter(store.Cart(), target)
		return a.print(map[string]interface{}{"step": d.Step.String(), "redirected": d.Redirected})
	case "place":
		orderID, err := a.lifecycle.Place(ctx, store)
		if err != nil {
			return err
		}
		return a.showOrder(ctx, orderID)
	default:
		return errUsage
	}
}

func (a *app) showCart(store *cart.Store) error {
	c := store.Cart()
	return a.print(cartView{
		Cart:     c,
		Prices:   store.Prices(),
		NextStep: nextStep(c).String(),
	})
}

// nextStep is the furthest checkout step the cart may enter.
func nextStep(c domain.Cart) checkout.Step {
	return checkout.Enter(c, checkout.StepPlaceOrder).Step
}

func (a *app) showOrder(ctx context.Context, orderID string) error {
	view, err := a.lifecycle.Load(ctx, orderID, a.actor)
	if err != nil {
		return err
	}
	out := orderView{
		Order:          view.Order,
		Status:         view.Status(),
		Prices:         view.Prices,
		ShowPayPal:     view.ShowPayPal,
		PayPalClientID: view.PayPalClientID,
		CanDeliver:     view.CanDeliver,
	}
	if view.ShowPayPal {
		purchase, err := view.PurchaseRequest()
		if err != nil {
			return err
		}
		out.Purchase = &purchase
	}
	return a.print(out)
}

func (a *app) pay(ctx context.Context, orderID, source string) error {
	r := a.in
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("open capture details: %w", err)
		}
		defer f.Close()
		r = f
	}

	var details payment.CaptureDetails
	if err := json.NewDecoder(r).Decode(&details); err != nil {
		return fmt.Errorf("%w: capture details: %w", domain.ErrValidation, err)
	}
	if _, err := a.lifecycle.ConfirmPayment(ctx, orderID, details.Result()); err != nil {
		return err
	}
	return a.showOrder(ctx, orderID)
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
