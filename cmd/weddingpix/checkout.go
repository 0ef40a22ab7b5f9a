package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/fabriqs/wedding-pix/cart"
	"github.com/fabriqs/wedding-pix/checkout"
	"github.com/fabriqs/wedding-pix/config"
	"github.com/fabriqs/wedding-pix/gateway"
	"github.com/fabriqs/wedding-pix/lifecycle"
	"github.com/fabriqs/wedding-pix/locale"
	"github.com/fabriqs/wedding-pix/logger"
	"github.com/fabriqs/wedding-pix/payment"
	"github.com/fabriqs/wedding-pix/poller"
	"github.com/fabriqs/wedding-pix/store"
)

const checkoutHelp = `commands:
  gifts               list the registry
  add <id>            put one unit of a gift in the cart
  remove <id>         take one unit out of the cart
  cart                show the cart
  pay                 generate a PIX code for the cart
  status              show the payment
  check               check the payment now
  cancel              cancel the payment
  retry               retry after a connection problem
  dismiss             close a finished payment
  simulate            mark the payment as paid (development backend)
  quit`

func checkoutCmd() *cobra.Command {
	var customer payment.Customer
	cmd := &cobra.Command{
		Use:   "checkout",
		Short: "Terminal checkout: pick gifts and pay with PIX",
		Long: `Interactive checkout against the payment backend. An unfinished payment is
resumed on start.

Examples:
  weddingpix checkout --email convidado@example.com --name "Ana Souza"`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, flush, err := setup()
			if err != nil {
				return err
			}
			defer flush()

			repo, closeRepo, err := openSessionRepository(cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			tr, err := locale.New()
			if err != nil {
				return err
			}

			sh := newShell(cfg, repo, tr, customer, cmd.InOrStdin(), cmd.OutOrStdout())
			defer sh.close()
			return sh.run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&customer.Name, "name", "", "payer name")
	cmd.Flags().StringVar(&customer.Email, "email", "", "payer email (required to pay)")
	cmd.Flags().StringVar(&customer.Phone, "phone", "", "payer phone")
	cmd.Flags().StringVar(&customer.TaxID, "tax-id", "", "payer CPF")
	return cmd
}

// openSessionRepository returns the store for the active payment slot.
func openSessionRepository(cfg *config.Config) (store.SessionRepository, func(), error) {
	switch cfg.Store.Driver {
	case store.DriverMemory:
		return store.NewMemoryRepository(), func() {}, nil
	case store.DriverRedis:
		client, err := store.NewRedisClient(cfg.Store.RedisAddr)
		if err != nil {
			return nil, nil, err
		}
		return store.NewRedisRepository(client, cfg.Store.RedisKey), func() { _ = client.Close() }, nil
	}

	db, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	if err := store.Migrate(db, sqlDriver(cfg)); err != nil {
		_ = sqlDB.Close()
		return nil, nil, err
	}
	return store.NewGormRepository(db), func() { _ = sqlDB.Close() }, nil
}

type shell struct {
	coord    *checkout.Coordinator
	client   *gateway.Client
	cart     *cart.Cart
	catalog  *cart.Catalog
	tr       *locale.Translator
	lang     string
	customer payment.Customer
	in       io.Reader

	mu  sync.Mutex
	out io.Writer
}

func newShell(cfg *config.Config, repo store.SessionRepository, tr *locale.Translator, customer payment.Customer, in io.Reader, out io.Writer) *shell {
	client := gateway.New(cfg.Gateway.BaseURL, gateway.WithTimeout(cfg.Gateway.Timeout.Duration))
	catalog := cart.DefaultCatalog()

	policy := poller.Policy{
		BaseInterval:   cfg.Poller.BaseInterval.Duration,
		MaxInterval:    cfg.Poller.MaxInterval.Duration,
		SuccessGrowth:  cfg.Poller.SuccessGrowth,
		FailureBackoff: cfg.Poller.FailureBackoff,
		MaxFailures:    cfg.Poller.MaxFailures,
		RequestTimeout: cfg.Poller.RequestTimeout.Duration,
	}

	sh := &shell{
		coord: checkout.New(client, repo,
			checkout.WithPolicy(policy),
			checkout.WithExpiry(cfg.Payment.ExpirySeconds),
			checkout.WithDescription(cfg.Payment.Description),
		),
		client:   client,
		cart:     cart.New(catalog),
		catalog:  catalog,
		tr:       tr,
		lang:     cfg.Locale,
		customer: customer,
		in:       in,
		out:      out,
	}
	sh.subscribe()
	return sh
}

func (sh *shell) subscribe() {
	bus := sh.coord.Bus()
	_ = sh.coord.OnConfirmed(func(s lifecycle.Session) {
		sh.cart.Clear()
		sh.printf("\a%s %s\n", sh.tr.T(sh.lang, "StatusPaid", nil), locale.FormatBRL(s.TotalAmount, sh.lang))
	})
	_ = bus.Subscribe(checkout.TopicNotification, func(s lifecycle.Session) {
		if s.Status == lifecycle.StatusPaid {
			return
		}
		sh.printf("\a%s\n", sh.tr.T(sh.lang, s.Reason, nil))
	})
	_ = bus.Subscribe(checkout.TopicStateChanged, func(s lifecycle.Session) {
		sh.printView(checkout.Render(s, sh.tr, sh.lang, time.Now()))
	})
	_ = bus.Subscribe(checkout.TopicReconcile, func(s lifecycle.Session) {
		sh.printf("\apayment %s was paid after it was cancelled here; contact the couple\n", s.Intent.ID)
	})
}

func (sh *shell) close() {
	sh.coord.Close()
}

func (sh *shell) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if restored, err := sh.coord.Restore(ctx); err != nil {
		sh.printf("could not restore the previous payment: %v\n", err)
	} else if restored {
		sh.printf("resuming payment %s\n", sh.coord.Snapshot().Intent.ID)
	}
	if err := sh.coord.StartCountdown(time.Second); err != nil {
		return err
	}

	sh.printf("%s\n", checkoutHelp)
	scanner := bufio.NewScanner(sh.in)
	for {
		sh.printf("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := sh.exec(ctx, fields[0], fields[1:]); err != nil {
			sh.printf("error: %v\n", err)
		}
	}
}

func (sh *shell) exec(ctx context.Context, name string, args []string) error {
	switch name {
	case "gifts":
		for _, g := range sh.catalog.All() {
			sh.printf("  %-14s %-12s %s  %s\n", g.ID, locale.FormatBRL(g.PriceCents(), sh.lang), g.Department.Label(), g.Name)
		}
	case "add", "remove":
		if len(args) != 1 {
			return fmt.Errorf("usage: %s <id>", name)
		}
		if name == "add" {
			if err := sh.cart.Add(args[0]); err != nil {
				return err
			}
		} else {
			sh.cart.Remove(args[0])
		}
		sh.printCart()
	case "cart":
		sh.printCart()
	case "pay":
		return sh.pay(ctx)
	case "status":
		sh.printView(sh.coord.View(sh.tr, sh.lang))
	case "check":
		if !sh.coord.CheckNow() {
			sh.printf("nothing to check\n")
		}
	case "cancel":
		result, err := sh.coord.Cancel(ctx)
		if err != nil {
			return err
		}
		if !result.Cancelled {
			sh.printf("%s (%s)\n", sh.tr.T(sh.lang, lifecycle.ReasonCancelRefused, nil), result.Message)
		}
	case "retry":
		return sh.coord.RetryConnection()
	case "dismiss":
		return sh.coord.Dismiss()
	case "simulate":
		s := sh.coord.Snapshot()
		if !s.Active() {
			return checkout.ErrNoSession
		}
		if err := sh.client.SimulatePayment(ctx, s.Intent.ID); err != nil {
			return err
		}
		sh.coord.CheckNow()
	case "help":
		sh.printf("%s\n", checkoutHelp)
	default:
		return fmt.Errorf("unknown command %q (try help)", name)
	}
	return nil
}

func (sh *shell) pay(ctx context.Context) error {
	if sh.cart.Empty() {
		return errors.New("the cart is empty")
	}
	_, err := sh.coord.Start(ctx, checkout.Request{
		TotalAmount: sh.cart.TotalCents(),
		Description: sh.cart.Description(),
		Customer:    sh.customer,
		Metadata:    sh.cart.Metadata(),
	})
	var verr *payment.ValidationError
	if errors.As(err, &verr) {
		return fmt.Errorf("%w (pass --email to the checkout command)", err)
	}
	if err != nil {
		logger.Debug("Checkout start failed", map[string]interface{}{"error": err.Error()})
	}
	return err
}

func (sh *shell) printCart() {
	lines := sh.cart.Lines()
	if len(lines) == 0 {
		sh.printf("cart is empty\n")
		return
	}
	for _, l := range lines {
		sh.printf("  %dx %-14s %s\n", l.Quantity, l.Gift.ID, locale.FormatBRL(l.Subtotal, sh.lang))
	}
	sh.printf("  total %s\n", locale.FormatBRL(sh.cart.TotalCents(), sh.lang))
}

func (sh *shell) printView(v checkout.View) {
	if v.Status == lifecycle.StatusNone {
		sh.printf("no payment in progress\n")
		return
	}
	sh.printf("[%s] %s %s\n", v.PaymentID, v.StatusLabel, v.Amount)
	if v.Code != "" {
		sh.printf("  PIX copia e cola: %s\n", v.Code)
	}
	if v.Remaining != "" {
		sh.printf("  %s\n", sh.tr.T(sh.lang, "TimeRemaining", map[string]interface{}{"Time": v.Remaining}))
	}
	if v.Reason != "" {
		sh.printf("  %s\n", v.Reason)
	}

	var actions []string
	if v.CanCheckNow {
		actions = append(actions, "check")
	}
	if v.CanCancel {
		actions = append(actions, "cancel")
	}
	if v.CanRetry {
		actions = append(actions, "retry")
	}
	if v.CanDismiss {
		actions = append(actions, "dismiss")
	}
	if len(actions) > 0 {
		sh.printf("  actions: %s\n", strings.Join(actions, ", "))
	}
}

func (sh *shell) printf(format string, args ...interface{}) {
	sh.mu.Lock()
	defer sh.mu.Unlock()
	fmt.Fprintf(sh.out, format, args...)
}
