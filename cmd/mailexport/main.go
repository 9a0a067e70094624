// Command mailexport retrieves sent messages from registered mail accounts
// and exports them to xlsx spreadsheets.
//
//	mailexport add -address user@example.com -method delegated
//	mailexport add -address user@example.com -method direct-secret
//	mailexport list
//	mailexport remove -address user@example.com
//	mailexport export -address user@example.com -start 2024-01-01 -end 2024-02-01
//	mailexport export -all -start 2024-01-01 -end 2024-02-01
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/acuervo/mailexport/internal/account"
	"github.com/acuervo/mailexport/internal/batch"
	"github.com/acuervo/mailexport/internal/config"
	"github.com/acuervo/mailexport/internal/credential"
	"github.com/acuervo/mailexport/internal/export"
	"github.com/acuervo/mailexport/internal/gauth"
	"github.com/acuervo/mailexport/internal/logger"
	"github.com/acuervo/mailexport/internal/mail/types"
	"github.com/acuervo/mailexport/internal/session"
)

const dateLayout = "2006-01-02"

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return fmt.Errorf("missing subcommand")
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer log.Sync()

	store, err := account.Open(cfg.AccountsFile(), log)
	if err != nil {
		return err
	}
	ring := credential.NewRing(cfg.SecretsDir())
	provider := gauth.NewProvider(cfg.CredentialsFile(), cfg.TokensDir(), log)
	manager := account.NewManager(store, ring, provider.TokenPath, log)

	switch args[0] {
	case "add":
		return cmdAdd(args[1:], manager)
	case "remove":
		return cmdRemove(args[1:], manager)
	case "list":
		return cmdList(manager)
	case "export":
		return cmdExport(args[1:], cfg, store, ring, provider, log)
	default:
		usage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mailexport <add|remove|list|export> [flags]")
}

func cmdAdd(args []string, manager *account.Manager) error {
	fs := flag.NewFlagSet("add", flag.ExitOnError)
	address := fs.String("address", "", "email address to register")
	method := fs.String("method", string(account.AuthDelegated),
		"auth method: delegated or direct-secret")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *address == "" {
		return fmt.Errorf("-address is required")
	}

	secret := ""
	if account.AuthMethod(*method) == account.AuthDirectSecret {
		fmt.Print("App password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return fmt.Errorf("reading app password: %w", err)
		}
		secret = strings.TrimSpace(line)
	}

	if err := manager.Add(*address, account.AuthMethod(*method), secret); err != nil {
		return err
	}
	fmt.Printf("Account %s added\n", *address)
	return nil
}

func cmdRemove(args []string, manager *account.Manager) error {
	fs := flag.NewFlagSet("remove", flag.ExitOnError)
	address := fs.String("address", "", "email address to remove")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *address == "" {
		return fmt.Errorf("-address is required")
	}

	if err := manager.Remove(*address); err != nil {
		return err
	}
	fmt.Printf("Account %s removed\n", *address)
	return nil
}

func cmdList(manager *account.Manager) error {
	addresses := manager.List()
	if len(addresses) == 0 {
		fmt.Println("No accounts registered")
		return nil
	}
	for _, address := range addresses {
		acct, _ := manager.Details(address)
		fmt.Printf("%s\t%s\n", address, acct.AuthMethod)
	}
	return nil
}

func cmdExport(args []string, cfg *config.Config, store *account.Store, ring *credential.Ring, provider *gauth.Provider, log *zap.SugaredLogger) error {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	address := fs.String("address", "", "account to export")
	all := fs.Bool("all", false, "export every registered account")
	start := fs.String("start", "", "window start date, YYYY-MM-DD (inclusive)")
	end := fs.String("end", "", "window end date, YYYY-MM-DD (exclusive)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	window, err := parseWindow(*start, *end)
	if err != nil {
		return err
	}

	var addresses []string
	switch {
	case *all:
		addresses = store.List()
		if len(addresses) == 0 {
			return fmt.Errorf("no accounts registered")
		}
	case *address != "":
		addresses = []string{*address}
	default:
		return fmt.Errorf("either -address or -all is required")
	}

	opener := session.NewOpener(cfg.Fetch, provider, ring, log)
	sink := export.NewWriter(log)
	runner := batch.NewRunner(store, opener, sink, cfg.ExportsDir(),
		cfg.Export.Order == "desc", log)

	summary := runner.Run(context.Background(), addresses, window, printProgress)
	fmt.Println()

	for _, r := range summary.Results {
		if r.Err != nil {
			fmt.Printf("%s: FAILED: %v\n", r.Address, r.Err)
			continue
		}
		fmt.Printf("%s: %d emails -> %s\n", r.Address, r.Records, r.File)
	}
	fmt.Printf("Done: %d succeeded, %d failed\n", summary.Succeeded(), summary.Failed())

	if summary.Failed() > 0 {
		return fmt.Errorf("%d account(s) failed", summary.Failed())
	}
	return nil
}

func parseWindow(start, end string) (types.Window, error) {
	if start == "" || end == "" {
		return types.Window{}, fmt.Errorf("-start and -end are required")
	}
	s, err := time.Parse(dateLayout, start)
	if err != nil {
		return types.Window{}, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(dateLayout, end)
	if err != nil {
		return types.Window{}, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	if !s.Before(e) {
		return types.Window{}, fmt.Errorf("start date must be before end date")
	}
	return types.Window{Start: s, End: e}, nil
}

func printProgress(current, total int) {
	fmt.Printf("\rFetching emails %d/%d", current, total)
}
