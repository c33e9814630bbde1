package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"qazna.org/backoffice/internal/api"
	"qazna.org/backoffice/internal/authz"
	"qazna.org/backoffice/internal/notify"
	"qazna.org/backoffice/internal/obs"
)

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "admin email")
	password := fs.String("password", "", "password (prompted when omitted)")
	_ = fs.Parse(args)

	if *email == "" {
		return fmt.Errorf("login: -email is required")
	}
	pw := *password
	if pw == "" {
		fmt.Fprint(os.Stderr, "password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		pw = strings.TrimSpace(line)
	}

	id, err := a.client.Login(ctx, *email, pw)
	if err != nil {
		return err
	}
	a.record("session.login", map[string]any{"email": *email})
	fmt.Printf("logged in as %s (%s)\n", id.Username, id.Role)
	return nil
}

func (a *app) logout() error {
	a.record("session.logout", nil)
	if err := a.client.Logout(); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func (a *app) whoami(ctx context.Context) error {
	id, err := a.identity(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("admin:  %s (id %d)\n", id.Username, id.AdminID)
	fmt.Printf("role:   %s\n", id.Role)
	perms := id.PermissionKeys()
	if id.Role == authz.RoleSuperAdmin {
		fmt.Println("perms:  * (super role)")
	} else if len(perms) == 0 {
		fmt.Println("perms:  none")
	} else {
		fmt.Printf("perms:  %s\n", strings.Join(perms, ", "))
	}
	if exp := a.sess.AccessTokenExpiry(); !exp.IsZero() {
		fmt.Printf("token:  expires %s\n", exp.Local().Format(time.RFC1123))
	}
	return nil
}

// watch runs the notification channel until interrupted, printing each event.
func (a *app) watch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	showRecent := fs.Int("recent", 0, "print the N most recent buffered events before following")
	_ = fs.Parse(args)

	if err := a.require(ctx, authz.PermNotificationsWatch); err != nil {
		return err
	}

	if a.cfg.MetricsAddr != "" {
		srv := &http.Server{Addr: a.cfg.MetricsAddr, Handler: obs.Handler()}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.Error().Err(err).Msg("metrics listener failed")
			}
		}()
		defer func() {
			shCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(shCtx)
		}()
		a.log.Info().Str("addr", a.cfg.MetricsAddr).Msg("metrics listening")
	}

	ch := notify.NewChannel(a.cfg.StreamBaseURL, a.sess,
		notify.WithChannelLogger(a.log),
		notify.WithStateFunc(func(s notify.State) {
			if s == notify.StateGivenUp {
				fmt.Fprintln(os.Stderr, "notification stream unavailable; restart watch to retry")
			}
		}),
	)

	sub := ch.Subscribe(ctx)
	go ch.Run(ctx)

	if *showRecent > 0 {
		recent := ch.Recent()
		if len(recent) > *showRecent {
			recent = recent[len(recent)-*showRecent:]
		}
		for _, n := range recent {
			printNotification(n)
		}
	}

	fmt.Fprintln(os.Stderr, "watching notifications (ctrl-c to stop)")
	for {
		select {
		case <-ctx.Done():
			return nil
		case n, ok := <-sub:
			if !ok {
				return nil
			}
			printNotification(n)
		}
	}
}

func printNotification(n notify.Notification) {
	ts := n.ReceivedAt.Local().Format("15:04:05")
	switch n.Kind {
	case notify.KindTransaction:
		fmt.Printf("%s  transaction %s  amount=%d\n", ts, n.Transaction.TransactionID, n.Transaction.Amount)
	case notify.KindLoan:
		fmt.Printf("%s  loan %s updated\n", ts, n.Loan.LoanID)
	case notify.KindUser:
		fmt.Printf("%s  user %s updated\n", ts, n.User.Username)
	default:
		fmt.Printf("%s  %s event: %s\n", ts, n.Kind, string(n.Raw))
	}
}

// identity returns the cached identity, fetching it once per run for sessions
// hydrated from storage (only tokens persist across runs).
func (a *app) identity(ctx context.Context) (*authz.Identity, error) {
	if !a.sess.Authenticated() {
		return nil, fmt.Errorf("not logged in; run 'backoffice login'")
	}
	if id := a.sess.Identity(); id != nil {
		return id, nil
	}
	id, err := a.client.Me(ctx)
	if err != nil {
		return nil, err
	}
	return &id, nil
}

// require gates a command on a permission the way the console UI gates
// navigation: deny means the command never reaches the network.
func (a *app) require(ctx context.Context, perm string) error {
	id, err := a.identity(ctx)
	if err != nil {
		return err
	}
	if !authz.Allowed(id, perm) {
		return fmt.Errorf("permission denied: %s requires %s", id.Username, perm)
	}
	return nil
}

func (a *app) resource(ctx context.Context, name string, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("%s: missing subcommand (list, get, ...)", name)
	}
	perm := map[string]string{
		"users":        authz.PermUsersManage,
		"admins":       authz.PermAdminsManage,
		"loans":        authz.PermLoansManage,
		"cards":        authz.PermCardsManage,
		"deposits":     authz.PermDepositsManage,
		"transactions": authz.PermTransactionsView,
		"roles":        authz.PermRBACManage,
		"permissions":  authz.PermRBACManage,
	}[name]
	if err := a.require(ctx, perm); err != nil {
		return err
	}

	switch name {
	case "users":
		return a.users(ctx, args)
	case "admins":
		return a.admins(ctx, args)
	case "loans":
		return a.loans(ctx, args)
	case "cards":
		return a.cards(ctx, args)
	case "deposits":
		return a.deposits(ctx, args)
	case "transactions":
		return a.transactions(ctx, args)
	case "roles":
		return a.roles(ctx, args)
	case "permissions":
		return a.permissions(ctx, args)
	}
	return fmt.Errorf("unknown resource %q", name)
}

func listFlags(name string, args []string) api.ListOptions {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	page := fs.Int("page", 1, "page number")
	perPage := fs.Int("per-page", 20, "items per page")
	query := fs.String("q", "", "search query")
	_ = fs.Parse(args)
	return api.ListOptions{Page: *page, PerPage: *perPage, Query: *query}
}

func parseID(args []string, what string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing %s id", what)
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s id %q", what, args[0])
	}
	return id, nil
}

func table(header string, rows func(w *tabwriter.Writer)) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, header)
	rows(w)
	_ = w.Flush()
}

func pageFooter[T any](list api.List[T]) {
	fmt.Printf("page %d/%d, %d total\n", list.Page, list.TotalPages, list.Total)
}

func (a *app) users(ctx context.Context, args []string) error {
	switch args[0] {
	case "list":
		opts := listFlags("users list", args[1:])
		list, err := a.client.Users.List(ctx, opts)
		if err != nil {
			return err
		}
		table("ID\tUSERNAME\tEMAIL\tSTATUS", func(w *tabwriter.Writer) {
			for _, u := range list.Items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", u.ID, u.Username, u.Email, u.Status)
			}
		})
		pageFooter(list)
		return nil
	case "get":
		id, err := parseID(args[1:], "user")
		if err != nil {
			return err
		}
		u, err := a.client.Users.Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("user %d: %s <%s> %s, created %s\n", u.ID, u.Username, u.Email, u.Status, u.CreatedAt.Format(time.RFC3339))
		return nil
	case "create":
		fs := flag.NewFlagSet("users create", flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email")
		fullName := fs.String("full-name", "", "full name")
		password := fs.String("password", "", "initial password")
		_ = fs.Parse(args[1:])
		if *username == "" || *email == "" || *password == "" {
			return fmt.Errorf("users create: -username, -email and -password are required")
		}
		u, err := a.client.Users.Create(ctx, api.CreateUserInput{
			Username: *username, Email: *email, FullName: *fullName, Password: *password,
		})
		if err != nil {
			return err
		}
		a.record("user.create", map[string]any{"user_id": u.ID, "username": u.Username})
		fmt.Printf("created user %d (%s)\n", u.ID, u.Username)
		return nil
	case "delete":
		id, err := parseID(args[1:], "user")
		if err != nil {
			return err
		}
		if err := a.client.Users.Delete(ctx, id); err != nil {
			return err
		}
		a.record("user.delete", map[string]any{"user_id": id})
		fmt.Printf("deleted user %d\n", id)
		return nil
	}
	return fmt.Errorf("users: unknown subcommand %q", args[0])
}

func (a *app) admins(ctx context.Context, args []string) error {
	switch args[0] {
	case "list":
		opts := listFlags("admins list", args[1:])
		list, err := a.client.Admins.List(ctx, opts)
		if err != nil {
			return err
		}
		table("ID\tUSERNAME\tEMAIL\tROLE\tSTATUS", func(w *tabwriter.Writer) {
			for _, ad := range list.Items {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", ad.ID, ad.Username, ad.Email, ad.Role, ad.Status)
			}
		})
		pageFooter(list)
		return nil
	case "get":
		id, err := parseID(args[1:], "admin")
		if err != nil {
			return err
		}
		ad, err := a.client.Admins.Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("admin %d: %s <%s> role=%s %s\n", ad.ID, ad.Username, ad.Email, ad.Role, ad.Status)
		return nil
	case "create":
		fs := flag.NewFlagSet("admins create", flag.ExitOnError)
		username := fs.String("username", "", "username")
		email := fs.String("email", "", "email")
		password := fs.String("password", "", "initial password")
		roleID := fs.Int64("role-id", 0, "role id")
		_ = fs.Parse(args[1:])
		if *username == "" || *email == "" || *password == "" || *roleID == 0 {
			return fmt.Errorf("admins create: -username, -email, -password and -role-id are required")
		}
		ad, err := a.client.Admins.Create(ctx, api.CreateAdminInput{
			Username: *username, Email: *email, Password: *password, RoleID: *roleID,
		})
		if err != nil {
			return err
		}
		a.record("admin.create", map[string]any{"admin_id": ad.ID, "username": ad.Username})
		fmt.Printf("created admin %d (%s)\n", ad.ID, ad.Username)
		return nil
	}
	return fmt.Errorf("admins: unknown subcommand %q", args[0])
}

func (a *app) loans(ctx context.Context, args []string) error {
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("loans list", flag.ExitOnError)
		page := fs.Int("page", 1, "page number")
		perPage := fs.Int("per-page", 20, "items per page")
		status := fs.String("status", "", "filter by status")
		_ = fs.Parse(args[1:])
		list, err := a.client.Loans.List(ctx, api.LoanListOptions{
			ListOptions: api.ListOptions{Page: *page, PerPage: *perPage},
			Status:      *status,
		})
		if err != nil {
			return err
		}
		table("ID\tUSER\tAMOUNT\tCURRENCY\tTERM\tSTATUS", func(w *tabwriter.Writer) {
			for _, l := range list.Items {
				fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%dmo\t%s\n", l.ID, l.UserID, l.Amount, l.Currency, l.TermMonths, l.Status)
			}
		})
		pageFooter(list)
		return nil
	case "get":
		id, err := parseID(args[1:], "loan")
		if err != nil {
			return err
		}
		l, err := a.client.Loans.Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("loan %d: user=%d %d %s over %d months, %s\n", l.ID, l.UserID, l.Amount, l.Currency, l.TermMonths, l.Status)
		return nil
	case "approve", "reject":
		id, err := parseID(args[1:], "loan")
		if err != nil {
			return err
		}
		status := "approved"
		if args[0] == "reject" {
			status = "rejected"
		}
		l, err := a.client.Loans.SetStatus(ctx, id, status)
		if err != nil {
			return err
		}
		a.record("loan."+args[0], map[string]any{"loan_id": l.ID})
		fmt.Printf("loan %d is now %s\n", l.ID, l.Status)
		return nil
	}
	return fmt.Errorf("loans: unknown subcommand %q", args[0])
}

func (a *app) cards(ctx context.Context, args []string) error {
	switch args[0] {
	case "list":
		opts := listFlags("cards list", args[1:])
		list, err := a.client.Cards.List(ctx, opts)
		if err != nil {
			return err
		}
		table("ID\tUSER\tNUMBER\tSTATUS\tEXPIRES", func(w *tabwriter.Writer) {
			for _, cd := range list.Items {
				fmt.Fprintf(w, "%d\t%d\t%s\t%s\t%s\n", cd.ID, cd.UserID, cd.MaskedNumber, cd.Status, cd.ExpiresAt)
			}
		})
		pageFooter(list)
		return nil
	case "get":
		id, err := parseID(args[1:], "card")
		if err != nil {
			return err
		}
		cd, err := a.client.Cards.Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("card %d: user=%d %s %s\n", cd.ID, cd.UserID, cd.MaskedNumber, cd.Status)
		return nil
	case "block":
		id, err := parseID(args[1:], "card")
		if err != nil {
			return err
		}
		cd, err := a.client.Cards.Block(ctx, id)
		if err != nil {
			return err
		}
		a.record("card.block", map[string]any{"card_id": cd.ID})
		fmt.Printf("card %d is now %s\n", cd.ID, cd.Status)
		return nil
	}
	return fmt.Errorf("cards: unknown subcommand %q", args[0])
}

func (a *app) deposits(ctx context.Context, args []string) error {
	switch args[0] {
	case "list":
		opts := listFlags("deposits list", args[1:])
		list, err := a.client.Deposits.List(ctx, opts)
		if err != nil {
			return err
		}
		table("ID\tUSER\tAMOUNT\tCURRENCY\tRATE\tTERM\tSTATUS", func(w *tabwriter.Writer) {
			for _, d := range list.Items {
				fmt.Fprintf(w, "%d\t%d\t%d\t%s\t%.2f%%\t%dmo\t%s\n",
					d.ID, d.UserID, d.Amount, d.Currency, float64(d.RateBps)/100, d.TermMonths, d.Status)
			}
		})
		pageFooter(list)
		return nil
	case "get":
		id, err := parseID(args[1:], "deposit")
		if err != nil {
			return err
		}
		d, err := a.client.Deposits.Get(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("deposit %d: user=%d %d %s at %.2f%%, %s\n",
			d.ID, d.UserID, d.Amount, d.Currency, float64(d.RateBps)/100, d.Status)
		return nil
	}
	return fmt.Errorf("deposits: unknown subcommand %q", args[0])
}

func (a *app) transactions(ctx context.Context, args []string) error {
	switch args[0] {
	case "list":
		fs := flag.NewFlagSet("transactions list", flag.ExitOnError)
		page := fs.Int("page", 1, "page number")
		perPage := fs.Int("per-page", 20, "items per page")
		account := fs.String("account", "", "filter by account id")
		status := fs.String("status", "", "filter by status")
		_ = fs.Parse(args[1:])
		list, err := a.client.Transactions.List(ctx, api.TransactionListOptions{
			ListOptions: api.ListOptions{Page: *page, PerPage: *perPage},
			AccountID:   *account,
			Status:      *status,
		})
		if err != nil {
			return err
		}
		table("ID\tFROM\tTO\tAMOUNT\tCURRENCY\tSTATUS", func(w *tabwriter.Writer) {
			for _, tx := range list.Items {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n",
					tx.ID, tx.FromAccountID, tx.ToAccountID, tx.Amount, tx.Currency, tx.Status)
			}
		})
		pageFooter(list)
		return nil
	case "get":
		if len(args) < 2 {
			return fmt.Errorf("missing transaction id")
		}
		tx, err := a.client.Transactions.Get(ctx, args[1])
		if err != nil {
			return err
		}
		fmt.Printf("transaction %s: %s -> %s %d %s, %s at %s\n",
			tx.ID, tx.FromAccountID, tx.ToAccountID, tx.Amount, tx.Currency, tx.Status, tx.CreatedAt.Format(time.RFC3339))
		return nil
	}
	return fmt.Errorf("transactions: unknown subcommand %q", args[0])
}

func (a *app) roles(ctx context.Context, args []string) error {
	switch args[0] {
	case "list":
		opts := listFlags("roles list", args[1:])
		list, err := a.client.RBAC.ListRoles(ctx, opts)
		if err != nil {
			return err
		}
		table("ID\tNAME\tDESCRIPTION", func(w *tabwriter.Writer) {
			for _, r := range list.Items {
				fmt.Fprintf(w, "%d\t%s\t%s\n", r.ID, r.Name, r.Description)
			}
		})
		pageFooter(list)
		return nil
	case "create":
		fs := flag.NewFlagSet("roles create", flag.ExitOnError)
		name := fs.String("name", "", "role name")
		desc := fs.String("desc", "", "description")
		_ = fs.Parse(args[1:])
		if *name == "" {
			return fmt.Errorf("roles create: -name is required")
		}
		r, err := a.client.RBAC.CreateRole(ctx, api.RoleInput{Name: *name, Description: *desc})
		if err != nil {
			return err
		}
		a.record("role.create", map[string]any{"role_id": r.ID, "name": r.Name})
		fmt.Printf("created role %d (%s)\n", r.ID, r.Name)
		return nil
	case "delete":
		id, err := parseID(args[1:], "role")
		if err != nil {
			return err
		}
		if err := a.client.RBAC.DeleteRole(ctx, id); err != nil {
			return err
		}
		a.record("role.delete", map[string]any{"role_id": id})
		fmt.Printf("deleted role %d\n", id)
		return nil
	case "perms":
		id, err := parseID(args[1:], "role")
		if err != nil {
			return err
		}
		permIDs, err := a.client.RBAC.RolePermissions(ctx, id)
		if err != nil {
			return err
		}
		fmt.Printf("role %d permissions: %v\n", id, permIDs)
		return nil
	}
	return fmt.Errorf("roles: unknown subcommand %q", args[0])
}

func (a *app) permissions(ctx context.Context, args []string) error {
	switch args[0] {
	case "list":
		opts := listFlags("permissions list", args[1:])
		list, err := a.client.RBAC.ListPermissions(ctx, opts)
		if err != nil {
			return err
		}
		table("ID\tKEY\tDESCRIPTION", func(w *tabwriter.Writer) {
			for _, p := range list.Items {
				fmt.Fprintf(w, "%d\t%s\t%s\n", p.ID, p.Key, p.Description)
			}
		})
		pageFooter(list)
		return nil
	}
	return fmt.Errorf("permissions: unknown subcommand %q", args[0])
}
