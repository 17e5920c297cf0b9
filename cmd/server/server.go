package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/api"
	"github.com/Dikshant-Neupane/sahayog-fund/pkg/chain"
	"github.com/Dikshant-Neupane/sahayog-fund/pkg/fund"
	"github.com/Dikshant-Neupane/sahayog-fund/pkg/store"
	log "github.com/inconshreveable/log15"
	"github.com/urfave/cli"
)

var (
	addr            string
	dbBackend       string
	dataDir         string
	rpcEndpoint     string
	adminWallets    string
	requireAdminSig bool
	publicURL       string
	verifyDonations bool
	smtpAddr        string
	smtpFrom        string
	smtpUser        string
	smtpPassword    string
	logLevel        string
)

func setupLog() error {
	lvl, err := log.LvlFromString(logLevel)
	if err != nil {
		return err
	}

	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.LogfmtFormat())))
	return nil
}

func serve(c *cli.Context) error {
	err := setupLog()
	if err != nil {
		return err
	}

	kv, err := store.Open(dbBackend, dataDir)
	if err != nil {
		return fmt.Errorf("open %s database: %v", dbBackend, err)
	}

	db := store.NewDB(kv)
	defer db.Close()

	client := chain.NewClient(rpcEndpoint)
	feed := api.NewFeed()
	opts := []fund.Option{fund.WithPublisher(feed)}
	if verifyDonations {
		opts = append(opts, fund.WithVerifier(client))
	}

	if smtpAddr != "" {
		opts = append(opts, fund.WithNotifier(fund.NewSMTPNotifier(smtpAddr, smtpFrom, smtpUser, smtpPassword, publicURL)))
	}

	admins := strings.Split(adminWallets, ",")
	svc := fund.NewService(db, fund.Config{
		AdminWallets: admins,
		PublicURL:    publicURL,
	}, opts...)

	for _, w := range admins {
		if w = strings.TrimSpace(w); w != "" && !fund.ValidAddress(w) {
			log.Warn("admin wallet is not a valid address", "wallet", w)
		}
	}

	srv := api.NewServer(svc,
		api.WithFeed(feed),
		api.WithBalancer(client),
		api.WithAdminSignatures(requireAdminSig),
	)
	err = srv.Start(addr)
	if err != nil {
		return err
	}

	log.Info("server ready", "db", dbBackend, "rpc", chain.Endpoint(rpcEndpoint), "verify_donations", verifyDonations, "admin_sig", requireAdminSig)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

func main() {
	app := cli.NewApp()
	app.Name = "SahayogFund server"
	app.Usage = "campaign verification and donation ledger API"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "addr",
			Value:       ":8080",
			Usage:       "address the HTTP API listens on",
			EnvVar:      "SAHAYOG_ADDR",
			Destination: &addr,
		},
		cli.StringFlag{
			Name:        "db",
			Value:       "leveldb",
			Usage:       "database backend: memory, leveldb or badger",
			EnvVar:      "SAHAYOG_DB",
			Destination: &dbBackend,
		},
		cli.StringFlag{
			Name:        "data-dir",
			Value:       "./data",
			Usage:       "directory of the database files",
			EnvVar:      "SAHAYOG_DATA_DIR",
			Destination: &dataDir,
		},
		cli.StringFlag{
			Name:        "rpc",
			Value:       "devnet",
			Usage:       "Solana RPC endpoint or cluster name (devnet, testnet, mainnet-beta, localnet)",
			EnvVar:      "SOLANA_RPC_URL",
			Destination: &rpcEndpoint,
		},
		cli.StringFlag{
			Name:        "admin-wallets",
			Usage:       "comma separated admin wallet addresses",
			EnvVar:      "ADMIN_WALLETS",
			Destination: &adminWallets,
		},
		cli.BoolFlag{
			Name:        "require-admin-sig",
			Usage:       "require admin requests to be signed by the admin wallet",
			EnvVar:      "REQUIRE_ADMIN_SIG",
			Destination: &requireAdminSig,
		},
		cli.StringFlag{
			Name:        "public-url",
			Value:       "http://localhost:8080",
			Usage:       "public URL of the server, used in document links and emails",
			EnvVar:      "PUBLIC_URL",
			Destination: &publicURL,
		},
		cli.BoolFlag{
			Name:        "verify-donations",
			Usage:       "only record donations whose transaction is confirmed on chain",
			EnvVar:      "VERIFY_DONATIONS",
			Destination: &verifyDonations,
		},
		cli.StringFlag{
			Name:        "smtp-addr",
			Usage:       "SMTP relay host:port, notifications are only logged when empty",
			EnvVar:      "SMTP_ADDR",
			Destination: &smtpAddr,
		},
		cli.StringFlag{
			Name:        "smtp-from",
			Value:       "noreply@sahayog.fund",
			Usage:       "sender of the notification emails",
			EnvVar:      "SMTP_FROM",
			Destination: &smtpFrom,
		},
		cli.StringFlag{
			Name:        "smtp-user",
			EnvVar:      "SMTP_USER",
			Destination: &smtpUser,
		},
		cli.StringFlag{
			Name:        "smtp-password",
			EnvVar:      "SMTP_PASSWORD",
			Destination: &smtpPassword,
		},
		cli.StringFlag{
			Name:        "log-level",
			Value:       "info",
			Usage:       "log level: debug, info, warn, error, crit",
			EnvVar:      "LOG_LEVEL",
			Destination: &logLevel,
		},
	}
	app.Action = serve

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("server failed with error: %v\n", err)
		os.Exit(1)
	}
}
