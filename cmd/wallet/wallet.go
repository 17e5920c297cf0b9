package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/Dikshant-Neupane/sahayog-fund/pkg/api"
	"github.com/Dikshant-Neupane/sahayog-fund/pkg/chain"
	"github.com/Dikshant-Neupane/sahayog-fund/pkg/donate"
	"github.com/Dikshant-Neupane/sahayog-fund/pkg/fund"
	"github.com/gagliardetto/solana-go"
	log "github.com/inconshreveable/log15"
	"github.com/urfave/cli"
)

var (
	keypairPath string
	rpcEndpoint string
	apiAddr     string
	programID   string
	useProgram  bool
	autoApprove bool
)

const requestTimeout = 2 * time.Minute

func loadWallet() (*donate.KeypairWallet, error) {
	if keypairPath == "" {
		return nil, errors.New("keypair file is required, use --keypair")
	}
	return donate.LoadKeypairWallet(keypairPath)
}

func apiClient() *api.Client {
	return api.NewClient(apiAddr)
}

// adminClient signs admin requests with the wallet keypair.
func adminClient() (*api.Client, string, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(keypairPath)
	if err != nil {
		return nil, "", err
	}

	c := apiClient()
	c.SetAdminKey(key)
	return c, key.PublicKey().String(), nil
}

func findCampaign(ctx context.Context, c *api.Client, id string) (*fund.ApprovedCampaign, error) {
	cs, err := c.Campaigns(ctx)
	if err != nil {
		return nil, err
	}

	for _, a := range cs {
		if a.PendingID == id {
			return a, nil
		}
	}
	return nil, fmt.Errorf("campaign %s is not open for donations", id)
}

func donateCmd(c *cli.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return fmt.Errorf("donate needs 2 arguments (received: %d), please check usage using ./wallet -h", len(args))
	}

	w, err := loadWallet()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	client := apiClient()
	campaignID := args[0]
	var recipient solana.PublicKey
	if to := c.String("to"); to != "" {
		recipient, err = solana.PublicKeyFromBase58(to)
		if err != nil {
			return fmt.Errorf("invalid recipient %s: %v", to, err)
		}
	} else {
		campaign, err := findCampaign(ctx, client, campaignID)
		if err != nil {
			return err
		}

		recipient, err = solana.PublicKeyFromBase58(campaign.WalletAddress)
		if err != nil {
			return fmt.Errorf("campaign wallet %s: %v", campaign.WalletAddress, err)
		}
		fmt.Printf("Donating to %s (%s)\n", campaign.OrganizationName, campaign.WalletAddress)
	}

	var signer donate.Wallet = w
	if !autoApprove {
		signer = &donate.PromptWallet{Wallet: w, In: os.Stdin, Out: os.Stdout}
	}

	opts := []donate.Option{
		donate.WithRecorder(client),
		donate.WithObserver(func(s donate.State) {
			fmt.Printf("... %s\n", s)
		}),
	}
	if useProgram {
		pid, err := solana.PublicKeyFromBase58(programID)
		if err != nil {
			return fmt.Errorf("invalid program id %s: %v", programID, err)
		}
		opts = append(opts, donate.WithProgram(pid))
	}

	flow := donate.NewFlow(chain.NewClient(rpcEndpoint), signer, opts...)
	res, err := flow.Donate(ctx, donate.Request{
		CampaignID: campaignID,
		Recipient:  recipient,
		Amount:     args[1],
		Message:    c.String("message"),
		DonorName:  c.String("name"),
		Anonymous:  c.Bool("anonymous"),
	})
	if err != nil {
		var de *donate.Error
		if errors.As(err, &de) {
			if de.Kind == donate.KindInsufficientFunds && de.Shortfall > 0 {
				return fmt.Errorf("%s Missing %s SOL", de.Message(), chain.FormatSOL(de.Shortfall))
			}
			return errors.New(de.Message())
		}
		return err
	}

	fmt.Printf("Donated %s SOL\n", chain.FormatSOL(res.Lamports))
	fmt.Printf("Signature: %s\n", res.Signature)
	if res.ReceiptErr != nil {
		fmt.Printf("Warning: the donation is confirmed but its receipt could not be recorded: %v\n", res.ReceiptErr)
	}
	return nil
}

func printBalance(c *cli.Context) error {
	var pk solana.PublicKey
	if addr := c.Args().First(); addr != "" {
		var err error
		pk, err = solana.PublicKeyFromBase58(addr)
		if err != nil {
			return err
		}
	} else {
		w, err := loadWallet()
		if err != nil {
			return err
		}
		pk = w.PublicKey()
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	lamports, err := chain.NewClient(rpcEndpoint).Balance(ctx, pk)
	if err != nil {
		return err
	}

	fmt.Printf("Addr:\n%s\n", pk)
	fmt.Printf("Balance: %s SOL\n", chain.FormatSOL(lamports))
	return nil
}

func printHistory(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	ds, err := apiClient().DonationHistory(ctx, fund.HistoryQuery{
		CampaignID:  c.String("campaign"),
		DonorWallet: c.String("donor"),
		Limit:       c.Int("limit"),
	})
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.Debug)
	_, err = fmt.Fprintln(tw, "\tTime\tCampaign\tDonor\tSOL\tSignature\t")
	if err != nil {
		return err
	}

	for _, d := range ds {
		donor := d.DonorWallet
		if d.DonorName != "" {
			donor = d.DonorName
		}
		_, err = fmt.Fprintf(tw, "\t%s\t%s\t%s\t%s\t%s\t\n", d.CreatedAt.Format(time.RFC3339), d.CampaignID, donor, chain.FormatSOL(d.Lamports), d.TxSignature)
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printStatus(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("status needs the campaign id, please check usage using ./wallet -h")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	st, err := apiClient().CampaignStatus(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s)\n", st.OrganizationName, st.CampaignID)
	fmt.Printf("Status: %s\n", st.Status)
	if st.Notes != "" {
		fmt.Printf("Notes: %s\n", st.Notes)
	}
	if st.ScheduledDate != nil {
		fmt.Printf("Verification meeting: %s\n", st.ScheduledDate.Format(time.RFC1123))
	}
	fmt.Printf("Submitted: %s, updated: %s\n", st.SubmittedAt.Format(time.RFC3339), st.UpdatedAt.Format(time.RFC3339))
	return nil
}

func listCampaigns(c *cli.Context) error {
	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	cs, err := apiClient().Campaigns(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.Debug)
	_, err = fmt.Fprintln(tw, "\tID\tOrganization\tCategory\tGoal (SOL)\tRaised (SOL)\tEnds\t")
	if err != nil {
		return err
	}

	for _, a := range cs {
		_, err = fmt.Fprintf(tw, "\t%s\t%s\t%s\t%s\t%s\t%s\t\n", a.PendingID, a.OrganizationName, a.Category, a.GoalAmount, chain.FormatSOL(a.RaisedLamports), a.EndDate.Format("2006-01-02"))
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func printStats(c *cli.Context) error {
	id := c.Args().First()
	if id == "" {
		return errors.New("stats needs the campaign id, please check usage using ./wallet -h")
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	st, err := apiClient().Stats(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("Raised: %s SOL from %d donations by %d donors\n", chain.FormatSOL(st.TotalLamports), st.Donations, st.Donors)
	return nil
}

func review(c *cli.Context) error {
	args := c.Args()
	if len(args) < 2 {
		return fmt.Errorf("review needs at least 2 arguments (received: %d), please check usage using ./wallet -h", len(args))
	}

	status := fund.VerificationStatus(args[1])
	if !status.Valid() {
		return fmt.Errorf("status must be pending, scheduled, verified or rejected, received: %s", status)
	}

	client, admin, err := adminClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	err = client.UpdateStatus(ctx, admin, args[0], status, args.Get(2))
	if err != nil {
		return err
	}

	fmt.Printf("Campaign %s is now %s\n", args[0], status)
	return nil
}

func schedule(c *cli.Context) error {
	args := c.Args()
	if len(args) < 3 {
		return fmt.Errorf("schedule needs 3 arguments (received: %d), please check usage using ./wallet -h", len(args))
	}

	client, admin, err := adminClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	id, err := client.ScheduleAppointment(ctx, fund.AppointmentRequest{
		CampaignID:    args[0],
		ScheduledDate: args[1],
		ScheduledBy:   admin,
		MeetingType:   fund.MeetingType(args[2]),
		MeetingLink:   c.String("link"),
		Notes:         c.String("notes"),
	})
	if err != nil {
		return err
	}

	fmt.Printf("Appointment %s scheduled\n", id)
	return nil
}

func adminCampaigns(c *cli.Context) error {
	client, admin, err := adminClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	cs, err := client.AdminCampaigns(ctx, admin)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.Debug)
	_, err = fmt.Fprintln(tw, "\tID\tOrganization\tStatus\tWallet\tSubmitted\t")
	if err != nil {
		return err
	}

	for _, cp := range cs {
		_, err = fmt.Fprintf(tw, "\t%s\t%s\t%s\t%s\t%s\t\n", cp.ID, cp.OrganizationName, cp.Status, cp.WalletAddress, cp.CreatedAt.Format(time.RFC3339))
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func adminActions(c *cli.Context) error {
	client, admin, err := adminClient()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	as, err := client.AdminActions(ctx, admin, c.Int("limit"))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 1, ' ', tabwriter.Debug)
	_, err = fmt.Fprintln(tw, "\tSeq\tTime\tAdmin\tAction\tTarget\tNotes\t")
	if err != nil {
		return err
	}

	for _, a := range as {
		_, err = fmt.Fprintf(tw, "\t%s\t%s\t%s\t%s\t%s\t%s\t\n", strconv.FormatUint(a.Seq, 10), a.CreatedAt.Format(time.RFC3339), a.AdminWallet, a.Action, a.TargetID, a.Details["notes"])
		if err != nil {
			return err
		}
	}
	return tw.Flush()
}

func main() {
	log.Root().SetHandler(log.LvlFilterHandler(log.LvlError, log.StderrHandler))

	app := cli.NewApp()
	app.Name = "SahayogFund wallet"
	app.Usage = "donate to verified campaigns and review submissions"

	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:        "keypair, k",
			Usage:       "path to the solana-keygen keypair file",
			EnvVar:      "SAHAYOG_KEYPAIR",
			Destination: &keypairPath,
		},
		cli.StringFlag{
			Name:        "rpc",
			Value:       "devnet",
			Usage:       "Solana RPC endpoint or cluster name",
			EnvVar:      "SOLANA_RPC_URL",
			Destination: &rpcEndpoint,
		},
		cli.StringFlag{
			Name:        "api",
			Value:       "http://localhost:8080",
			Usage:       "SahayogFund server URL",
			EnvVar:      "SAHAYOG_API",
			Destination: &apiAddr,
		},
		cli.StringFlag{
			Name:        "program-id",
			Value:       "Buv5zyTkgj1pDDLKrt9q6Yy39vndTfFumEk7cLdwzmsA",
			Usage:       "donation program id",
			EnvVar:      "SAHAYOG_PROGRAM_ID",
			Destination: &programID,
		},
		cli.BoolFlag{
			Name:        "use-program",
			Usage:       "donate through the donation program instead of a plain transfer",
			Destination: &useProgram,
		},
		cli.BoolFlag{
			Name:        "yes, y",
			Usage:       "sign without asking for approval",
			Destination: &autoApprove,
		},
	}

	app.Commands = []cli.Command{
		{
			Name:   "donate",
			Usage:  "Donate to a verified campaign: ./wallet -k KEYPAIR donate CAMPAIGN_ID AMOUNT_SOL",
			Action: donateCmd,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "message, m", Usage: "message to the campaign (max 280 characters)"},
				cli.StringFlag{Name: "name", Usage: "donor name shown with the donation"},
				cli.BoolFlag{Name: "anonymous", Usage: "hide the donor wallet and name"},
				cli.StringFlag{Name: "to", Usage: "recipient wallet, defaults to the campaign wallet"},
			},
		},
		{
			Name:   "balance",
			Usage:  "Print the SOL balance: ./wallet balance ADDRESS, or, ./wallet -k KEYPAIR balance",
			Action: printBalance,
		},
		{
			Name:   "history",
			Usage:  "Print donation history: ./wallet history --campaign ID --donor ADDRESS",
			Action: printHistory,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "campaign", Usage: "campaign id"},
				cli.StringFlag{Name: "donor", Usage: "donor wallet"},
				cli.IntFlag{Name: "limit", Value: 50, Usage: "number of donations, at most 100"},
			},
		},
		{
			Name:   "status",
			Usage:  "Print the verification status of a submitted campaign: ./wallet status CAMPAIGN_ID",
			Action: printStatus,
		},
		{
			Name:   "campaigns",
			Usage:  "List the campaigns open for donations: ./wallet campaigns",
			Action: listCampaigns,
		},
		{
			Name:   "stats",
			Usage:  "Print the donation totals of a campaign: ./wallet stats CAMPAIGN_ID",
			Action: printStats,
		},
		{
			Name:   "review",
			Usage:  "Admin: set the verification status: ./wallet -k ADMIN_KEYPAIR review CAMPAIGN_ID STATUS [NOTES] (STATUS is pending, scheduled, verified or rejected)",
			Action: review,
		},
		{
			Name:   "schedule",
			Usage:  "Admin: schedule a verification meeting: ./wallet -k ADMIN_KEYPAIR schedule CAMPAIGN_ID DATE MEETING_TYPE (DATE is RFC 3339, MEETING_TYPE is in_person, video_call or phone_call)",
			Action: schedule,
			Flags: []cli.Flag{
				cli.StringFlag{Name: "link", Usage: "meeting link"},
				cli.StringFlag{Name: "notes", Usage: "notes for the representative"},
			},
		},
		{
			Name:   "admin_campaigns",
			Usage:  "Admin: list every submitted campaign: ./wallet -k ADMIN_KEYPAIR admin_campaigns",
			Action: adminCampaigns,
		},
		{
			Name:   "admin_actions",
			Usage:  "Admin: print the audit log: ./wallet -k ADMIN_KEYPAIR admin_actions",
			Action: adminActions,
			Flags: []cli.Flag{
				cli.IntFlag{Name: "limit", Value: 20, Usage: "number of entries"},
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Printf("command failed with error: %v\n", err)
		os.Exit(1)
	}
}
