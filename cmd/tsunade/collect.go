package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tsunade/collector/alfa"
	"github.com/tsunade/collector/bank"
	"github.com/tsunade/collector/browser"
	"github.com/tsunade/collector/gate"
	"github.com/tsunade/collector/notify"
	"github.com/tsunade/collector/otp"
	"github.com/tsunade/collector/store"
	"github.com/tsunade/collector/vtb"
)

// rrnWindow is how many recent reference numbers seed the continuation
// gate.
const rrnWindow = 10

func newCollectCmd() *cobra.Command {
	var bankName string
	cmd := &cobra.Command{
		Use:   "collect",
		Short: "Log in to the portal and collect new operations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(bankName)
		},
	}
	cmd.Flags().StringVar(&bankName, "bank", "vtb", "which collector to run: vtb or alfa")
	return cmd
}

func runCollect(bankName string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	log := slog.Default()
	runID := uuid.Must(uuid.NewV7()).String()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer st.Close()

	var notifier notify.Notifier = notify.Nop{}
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		notifier = notify.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
	}
	tell := func(msg string) {
		if err := notifier.Text(ctx, msg); err != nil {
			log.Warn("notify failed", "error", err)
		}
	}

	legacy, err := st.LatestIdentity(ctx, bankName)
	if err != nil {
		return err
	}
	rrns, err := st.RecentRRNs(ctx, bankName, rrnWindow)
	if err != nil {
		return err
	}
	known := gate.NewKnown(legacy, rrns)

	stored := 0
	sink := gate.Wrap(known, func(ctx context.Context, batch []bank.Operation) (bank.Signal, error) {
		n, err := st.InsertBatch(ctx, bankName, batch)
		if err != nil {
			return bank.Continue, err
		}
		stored += n
		log.Info("batch stored", "bank", bankName, "batch", len(batch), "inserted", n, "total", stored)
		return bank.Continue, nil
	})

	sess, err := browser.NewSession(ctx, browser.Config{
		Headless:   cfg.Headless,
		ProfileDir: cfg.ProfileDir,
		BinaryPath: cfg.ChromeBin,
		Logger:     log,
	})
	if err != nil {
		return err
	}
	defer sess.Close()

	log.Info("collection starting", "run_id", runID, "bank", bankName)
	tell(fmt.Sprintf("Collection run %s started (%s).", runID, bankName))

	switch bankName {
	case "vtb":
		err = collectVTB(ctx, cfg, sess, sink)
	case "alfa":
		err = alfa.Collect(ctx, sess.Page, alfa.Config{
			HistoryURL: cfg.Alfa.HistoryURL,
			OnLoginWait: func(ctx context.Context) {
				sendPageShot(ctx, log, notifier, sess, runID,
					"Login required: scan the QR code on the attached page.")
			},
			Logger: log,
		}, sink)
	default:
		err = fmt.Errorf("unknown bank %q", bankName)
	}

	if err != nil {
		tell(fmt.Sprintf("Collection run %s failed: %v (stored %d before failure).", runID, err, stored))
		sendPageShot(ctx, log, notifier, sess, runID, "Page state at failure.")
		return err
	}

	log.Info("collection finished", "run_id", runID, "stored", stored)
	tell(fmt.Sprintf("Collection run %s finished: %d new operations.", runID, stored))
	return nil
}

// sendPageShot captures the current page and attaches it to a
// notification: the QR prompt when login is pending, or the page state
// when a run died. Best-effort on every step.
func sendPageShot(ctx context.Context, log *slog.Logger, notifier notify.Notifier, sess *browser.Session, runID, caption string) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("tsunade-%s.png", runID))
	if err := sess.Screenshot(path); err != nil {
		log.Warn("page screenshot", "error", err)
		return
	}
	defer os.Remove(path)
	if err := notifier.Document(ctx, path, caption); err != nil {
		log.Warn("page screenshot upload", "error", err)
	}
}

// collectVTB runs login plus collection, restarting authentication once
// when the portal's fatal session banner kills a run in flight.
func collectVTB(ctx context.Context, cfg *appConfig, sess *browser.Session, sink bank.SnapshotFunc) error {
	codes, err := otp.New(otp.Config{
		FetchURL:   cfg.VTB.GetCodeURL,
		ConsumeURL: cfg.VTB.DeleteCodeURL,
	})
	if err != nil {
		return err
	}

	vcfg := vtb.Config{
		HistoryURL: cfg.VTB.HistoryURL,
		Phone:      cfg.VTB.Phone,
		PIN:        cfg.VTB.PIN,
	}

	const attempts = 2
	for attempt := 1; ; attempt++ {
		if err := vtb.Login(ctx, sess.Page, vcfg, codes); err != nil {
			if errors.Is(err, vtb.ErrLoginTimeout) && attempt < attempts {
				continue
			}
			return err
		}
		err := vtb.Collect(ctx, sess.Page, vcfg, sink)
		if errors.Is(err, vtb.ErrSessionFailure) && attempt < attempts {
			continue
		}
		return err
	}
}
