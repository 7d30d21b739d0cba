package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"cutman.dev/cutman/internal/audit"
	"cutman.dev/cutman/internal/authn"
	"cutman.dev/cutman/internal/clicreds"
	"cutman.dev/cutman/internal/config"
	"cutman.dev/cutman/internal/httpapi"
	"cutman.dev/cutman/internal/lfs"
	"cutman.dev/cutman/internal/obs"
	"cutman.dev/cutman/internal/permz"
	"cutman.dev/cutman/internal/repostore"
	"cutman.dev/cutman/internal/store"
)

var version = "0.1.0"

// exitError carries a CLI exit code alongside the error message cobra
// prints.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }

func usageErr(format string, a ...any) error  { return &exitError{code: 2, err: fmt.Errorf(format, a...)} }
func notFoundErr(format string, a ...any) error { return &exitError{code: 3, err: fmt.Errorf(format, a...)} }
func authErr(format string, a ...any) error    { return &exitError{code: 4, err: fmt.Errorf(format, a...)} }

func exitCode(err error) int {
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return 1
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "cutman:", err)
		os.Exit(exitCode(err))
	}
}

func newRootCmd() *cobra.Command {
	var dataDir string

	root := &cobra.Command{
		Use:           "cutman",
		Short:         "Self-hostable Git hosting server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&dataDir, "data-dir", os.Getenv("CUTMAN_DATA_DIR"), "data directory (env CUTMAN_DATA_DIR)")

	root.AddCommand(newServeCmd(&dataDir))
	root.AddCommand(newAdminCmd(&dataDir))
	root.AddCommand(newCredentialCmd())
	return root
}

func loadConfig(dataDir string) (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, usageErr("%v", err)
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if cfg.DataDir == "" {
		return config.Config{}, usageErr("--data-dir or CUTMAN_DATA_DIR is required")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return config.Config{}, fmt.Errorf("create data dir: %w", err)
	}
	return cfg, nil
}

// services bundles every open handle a command needs; call close when done.
type services struct {
	cfg      config.Config
	store    *store.Store
	authnSvc *authn.Service
	perm     *permz.Engine
	repos    *repostore.Store
	lfsStore *lfs.Storage
	auditLog *audit.Logger
}

func openServices(cfg config.Config) (*services, error) {
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	repos, err := repostore.New(cfg.ReposDir(), cfg.TrashDir())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open repo store: %w", err)
	}
	lfsStore, err := lfs.New(cfg.LFSDir())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("open lfs store: %w", err)
	}
	return &services{
		cfg:      cfg,
		store:    st,
		authnSvc: authn.NewService(st),
		perm:     permz.New(st),
		repos:    repos,
		lfsStore: lfsStore,
		auditLog: audit.NewLogger(st),
	}, nil
}

func (s *services) Close() {
	_ = s.store.Close()
}

func newServeCmd(dataDir *string) *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*dataDir)
			if err != nil {
				return err
			}
			if host != "" || port != 0 {
				if host == "" {
					host = "0.0.0.0"
				}
				if port == 0 {
					port = 8080
				}
				cfg.Addr = fmt.Sprintf("%s:%d", host, port)
			}

			obs.Init()
			obs.SetLevel(cfg.LogLevel)
			svc, err := openServices(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := reconcileRepos(svc); err != nil {
				return fmt.Errorf("reconcile repos: %w", err)
			}

			api := httpapi.New(svc.store, svc.authnSvc, svc.perm, svc.repos, svc.lfsStore, svc.auditLog, cfg, version)
			srv := &http.Server{
				Addr:              cfg.Addr,
				Handler:           api.Handler(),
				ReadTimeout:       cfg.ReadTimeout,
				ReadHeaderTimeout: cfg.ReadHeaderTimeout,
				WriteTimeout:      cfg.WriteTimeout,
				IdleTimeout:       cfg.IdleTimeout,
			}

			errCh := make(chan error, 1)
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()
			obs.Logger().Printf(`{"level":"info","msg":"cutman listening","addr":%q,"version":%q}`, cfg.Addr, version)

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

			select {
			case err := <-errCh:
				return fmt.Errorf("listen: %w", err)
			case <-stop:
			}

			ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", os.Getenv("CUTMAN_HOST"), "listen host (env CUTMAN_HOST)")
	envPort, _ := strconv.Atoi(os.Getenv("CUTMAN_PORT"))
	cmd.Flags().IntVar(&port, "port", envPort, "listen port (env CUTMAN_PORT)")
	return cmd
}

// reconcileRepos sweeps the on-disk repository tree against the database
// at startup, quarantining anything the database no longer references.
func reconcileRepos(svc *services) error {
	ctx := context.Background()
	namespaces, _, err := svc.store.ListNamespaces(ctx, 1, 1<<20)
	if err != nil {
		return err
	}
	live := make(map[string]map[string]struct{}, len(namespaces))
	for _, ns := range namespaces {
		repos, _, err := svc.store.ListReposByNamespace(ctx, ns.ID, 1, 1<<20)
		if err != nil {
			return err
		}
		ids := make(map[string]struct{}, len(repos))
		for _, r := range repos {
			ids[r.ID] = struct{}{}
		}
		live[ns.ID] = ids
	}
	return svc.repos.Sweep(live)
}

func newAdminCmd(dataDir *string) *cobra.Command {
	admin := &cobra.Command{
		Use:   "admin",
		Short: "Direct database administration",
	}
	admin.AddCommand(newAdminInitCmd(dataDir))
	admin.AddCommand(newAdminUserCmd(dataDir))
	admin.AddCommand(newAdminTokenCmd(dataDir))
	admin.AddCommand(newAdminNamespaceCmd(dataDir))
	admin.AddCommand(newAdminPermissionCmd(dataDir))
	return admin
}

func newAdminInitCmd(dataDir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and bootstrap admin token",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*dataDir)
			if err != nil {
				return err
			}
			if _, err := os.Stat(cfg.AdminTokenPath()); err == nil {
				return usageErr("admin token file already exists at %s; refusing to clobber", cfg.AdminTokenPath())
			}
			svc, err := openServices(cfg)
			if err != nil {
				return err
			}
			defer svc.Close()

			secret, _, err := svc.authnSvc.IssueToken(cmd.Context(), nil, "bootstrap admin token")
			if err != nil {
				return err
			}
			if err := os.WriteFile(cfg.AdminTokenPath(), []byte(secret+"\n"), 0o600); err != nil {
				return fmt.Errorf("write admin token file: %w", err)
			}
			fmt.Printf("initialized %s\nadmin token written to %s\n", cfg.DataDir, cfg.AdminTokenPath())
			return nil
		},
	}
}

func newAdminUserCmd(dataDir *string) *cobra.Command {
	user := &cobra.Command{Use: "user", Short: "Manage users"}

	var isAdmin bool
	add := &cobra.Command{
		Use:   "add USERNAME",
		Short: "Create a user and their personal namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openForAdmin(*dataDir)
			if err != nil {
				return err
			}
			defer svc.Close()
			u, ns, err := svc.store.CreateUserWithNamespace(cmd.Context(), args[0], isAdmin)
			if err != nil {
				return err
			}
			fmt.Printf("created user %s (id=%s, namespace=%s)\n", u.Username, u.ID, ns.ID)
			return nil
		},
	}
	add.Flags().BoolVar(&isAdmin, "admin", false, "grant admin privileges")

	remove := &cobra.Command{
		Use:   "remove USER_ID",
		Short: "Delete a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openForAdmin(*dataDir)
			if err != nil {
				return err
			}
			defer svc.Close()
			if err := svc.store.DeleteUser(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFoundErr("user %s not found", args[0])
				}
				return err
			}
			fmt.Printf("deleted user %s\n", args[0])
			return nil
		},
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openForAdmin(*dataDir)
			if err != nil {
				return err
			}
			defer svc.Close()
			users, _, err := svc.store.ListUsers(cmd.Context(), 1, 1<<20)
			if err != nil {
				return err
			}
			for _, u := range users {
				fmt.Printf("%s\t%s\tadmin=%v\n", u.ID, u.Username, u.IsAdmin)
			}
			return nil
		},
	}

	user.AddCommand(add, remove, list)
	return user
}

func newAdminTokenCmd(dataDir *string) *cobra.Command {
	token := &cobra.Command{Use: "token", Short: "Manage tokens"}

	var userID, description string
	create := &cobra.Command{
		Use:   "create",
		Short: "Issue a token (omit --user for the admin-root token)",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openForAdmin(*dataDir)
			if err != nil {
				return err
			}
			defer svc.Close()
			var uid *string
			if userID != "" {
				uid = &userID
			}
			secret, tok, err := svc.authnSvc.IssueToken(cmd.Context(), uid, description)
			if err != nil {
				return err
			}
			fmt.Printf("token id: %s\nsecret (shown once): %s\n", tok.ID, secret)
			return nil
		},
	}
	create.Flags().StringVar(&userID, "user", "", "owning user id")
	create.Flags().StringVar(&description, "description", "", "human-readable description")

	revoke := &cobra.Command{
		Use:   "revoke TOKEN_ID",
		Short: "Revoke a token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openForAdmin(*dataDir)
			if err != nil {
				return err
			}
			defer svc.Close()
			if err := svc.authnSvc.RevokeToken(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("revoked token %s\n", args[0])
			return nil
		},
	}

	token.AddCommand(create, revoke)
	return token
}

func newAdminNamespaceCmd(dataDir *string) *cobra.Command {
	ns := &cobra.Command{Use: "namespace", Short: "Manage shared namespaces"}

	var repoLimit int64
	create := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a shared namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openForAdmin(*dataDir)
			if err != nil {
				return err
			}
			defer svc.Close()
			var limit *int64
			if cmd.Flags().Changed("repo-limit") {
				limit = &repoLimit
			}
			n, err := svc.store.CreateNamespace(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			fmt.Printf("created namespace %s (id=%s)\n", n.Name, n.ID)
			return nil
		},
	}
	create.Flags().Int64Var(&repoLimit, "repo-limit", 0, "maximum repos allowed in this namespace")

	remove := &cobra.Command{
		Use:   "remove NAMESPACE_ID",
		Short: "Delete a namespace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openForAdmin(*dataDir)
			if err != nil {
				return err
			}
			defer svc.Close()
			if err := svc.store.DeleteNamespace(cmd.Context(), args[0]); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return notFoundErr("namespace %s not found", args[0])
				}
				return err
			}
			fmt.Printf("deleted namespace %s\n", args[0])
			return nil
		},
	}

	ns.AddCommand(create, remove)
	return ns
}

func newAdminPermissionCmd(dataDir *string) *cobra.Command {
	perm := &cobra.Command{Use: "permission", Short: "Manage namespace/repo grants"}

	var userID, namespaceID, repoID, scopesRaw string
	grant := &cobra.Command{
		Use:   "grant",
		Short: "Grant scopes to a user on a namespace or repo",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (namespaceID == "") == (repoID == "") {
				return usageErr("exactly one of --namespace or --repo is required")
			}
			scopes, err := authn.ParseScopeSet(strings.Split(scopesRaw, ","))
			if err != nil {
				return usageErr("%v", err)
			}
			svc, err := openForAdmin(*dataDir)
			if err != nil {
				return err
			}
			defer svc.Close()
			if namespaceID != "" {
				if _, err := svc.store.UpsertNamespaceGrant(cmd.Context(), userID, namespaceID, uint32(scopes)); err != nil {
					return err
				}
			} else {
				if _, err := svc.store.UpsertRepoGrant(cmd.Context(), userID, repoID, uint32(scopes)); err != nil {
					return err
				}
			}
			fmt.Println("granted")
			return nil
		},
	}
	grant.Flags().StringVar(&userID, "user", "", "user id")
	grant.Flags().StringVar(&namespaceID, "namespace", "", "namespace id")
	grant.Flags().StringVar(&repoID, "repo", "", "repo id")
	grant.Flags().StringVar(&scopesRaw, "scopes", "", "comma-separated scopes")
	grant.MarkFlagRequired("user")
	grant.MarkFlagRequired("scopes")

	revoke := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke a user's grant on a namespace or repo",
		RunE: func(cmd *cobra.Command, args []string) error {
			if (namespaceID == "") == (repoID == "") {
				return usageErr("exactly one of --namespace or --repo is required")
			}
			svc, err := openForAdmin(*dataDir)
			if err != nil {
				return err
			}
			defer svc.Close()
			if namespaceID != "" {
				if err := svc.store.DeleteNamespaceGrant(cmd.Context(), userID, namespaceID); err != nil {
					return err
				}
			} else {
				if err := svc.store.DeleteRepoGrant(cmd.Context(), userID, repoID); err != nil {
					return err
				}
			}
			fmt.Println("revoked")
			return nil
		},
	}
	revoke.Flags().StringVar(&userID, "user", "", "user id")
	revoke.Flags().StringVar(&namespaceID, "namespace", "", "namespace id")
	revoke.Flags().StringVar(&repoID, "repo", "", "repo id")
	revoke.MarkFlagRequired("user")

	perm.AddCommand(grant, revoke)
	return perm
}

func openForAdmin(dataDir string) (*services, error) {
	cfg, err := loadConfig(dataDir)
	if err != nil {
		return nil, err
	}
	return openServices(cfg)
}

// newCredentialCmd implements the get/store/erase triplet of git's
// credential-helper protocol (man gitcredentials), backed by the
// read-only client credentials file in internal/clicreds.
func newCredentialCmd() *cobra.Command {
	cred := &cobra.Command{Use: "credential", Short: "Git credential helper"}
	cred.AddCommand(
		&cobra.Command{
			Use:  "get",
			RunE: func(cmd *cobra.Command, args []string) error { return credentialGet(cmd.InOrStdin(), cmd.OutOrStdout()) },
		},
		&cobra.Command{
			Use: "store",
			RunE: func(cmd *cobra.Command, args []string) error {
				_, _ = io.ReadAll(cmd.InOrStdin()) // cutman's own credentials file is operator-managed; nothing to persist
				return nil
			},
		},
		&cobra.Command{
			Use: "erase",
			RunE: func(cmd *cobra.Command, args []string) error {
				_, _ = io.ReadAll(cmd.InOrStdin())
				return nil
			},
		},
	)
	return cred
}

func credentialGet(in io.Reader, out io.Writer) error {
	attrs := map[string]string{}
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}
		k, v, ok := strings.Cut(line, "=")
		if ok {
			attrs[k] = v
		}
	}

	path, err := clicreds.DefaultPath()
	if err != nil {
		return err
	}
	creds, err := clicreds.Load(path)
	if err != nil {
		return authErr("no stored credentials: %v", err)
	}
	if host := attrs["host"]; host != "" && creds.ServerURL != "" && !strings.Contains(creds.ServerURL, host) {
		return authErr("no stored credentials for host %s", host)
	}

	fmt.Fprintf(out, "username=cutman\n")
	fmt.Fprintf(out, "password=%s\n", creds.Token)
	return nil
}
