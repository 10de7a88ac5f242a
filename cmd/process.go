package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/linkrelay/internal/config"
	"github.com/tanq16/linkrelay/internal/downloaders"
	"github.com/tanq16/linkrelay/internal/downloaders/mega"
	"github.com/tanq16/linkrelay/internal/downloaders/terabox"
	"github.com/tanq16/linkrelay/internal/output"
	"github.com/tanq16/linkrelay/internal/scheduler"
	"github.com/tanq16/linkrelay/internal/sinks"
	"github.com/tanq16/linkrelay/internal/telegram"
	"github.com/tanq16/linkrelay/internal/utils"
)

func newTelegramClient(c *config.Config) (*telegram.Client, error) {
	httpCfg := c.HTTPClientConfig()
	// the client picks its own upload-sized timeout
	httpCfg.Timeout = 0
	return telegram.New(telegram.Options{
		APIURL: c.Telegram.APIURL,
		Token:  c.Telegram.Token,
		ChatID: c.Telegram.ChatID,
		HTTP:   httpCfg,
	})
}

func buildSink(ctx context.Context, c *config.Config, tg *telegram.Client) (utils.Sink, error) {
	switch c.Sink.Type {
	case config.SinkS3:
		return sinks.NewS3Sink(ctx, c.Sink.S3Target, c.Sink.S3Profile)
	case config.SinkTelegram:
		return tg, nil
	default:
		return sinks.NewLocalSink(c.Sink.OutDir)
	}
}

// runRelay relays every URL and blocks until all jobs are done. It fails when
// any job failed, lost ranges or did not pass the integrity check.
func runRelay(urls []string) error {
	for _, url := range urls {
		if err := utils.ValidateURL(url); err != nil {
			return err
		}
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var tg *telegram.Client
	if cfg.TelegramEnabled() {
		client, err := newTelegramClient(cfg)
		if err != nil {
			return err
		}
		tg = client
	}
	sink, err := buildSink(ctx, cfg, tg)
	if err != nil {
		return err
	}
	registry := downloaders.DefaultRegistry(downloaders.Options{
		HTTP:    cfg.HTTPClientConfig(),
		Mega:    mega.Options{APIURL: cfg.Mega.APIURL, APIRetries: cfg.Mega.APIRetries},
		Terabox: terabox.Options{APIURL: cfg.Terabox.APIURL, Cookie: cfg.Terabox.Cookie},
	})

	var status utils.StatusEditor
	var display *output.Manager
	if cfg.Telegram.Status {
		status = tg
	} else {
		display = output.NewManager()
		if display.Interactive() && logFile == nil {
			// redraws own the terminal
			f, err := os.OpenFile(utils.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
			if err != nil {
				return fmt.Errorf("error opening log file: %w", err)
			}
			defer f.Close()
			utils.SetLogOutput(f)
		}
		status = display
		display.StartDisplay()
	}

	sched := scheduler.New(registry, sink, status, scheduler.Config{
		Workers:          cfg.Relay.Workers,
		WindowSize:       cfg.WindowSize(),
		PartSize:         cfg.PartSize(),
		Policy:           utils.FailurePolicy(cfg.Relay.Policy),
		ProgressInterval: cfg.Relay.ProgressInterval,
	})
	go func() {
		<-ctx.Done()
		sched.CancelAll()
	}()
	for _, url := range urls {
		if _, err := sched.Submit(ctx, url); err != nil {
			log.Error().Str("op", "cmd/process").Err(err).Msgf("could not queue %s", url)
		}
	}
	jobs := sched.Wait()
	if display != nil {
		display.StopDisplay()
	}

	failed := len(urls) - len(jobs)
	for _, job := range jobs {
		res, err := job.Result()
		switch {
		case err != nil:
			failed++
		case res.Partial || res.IntegrityErr != nil || len(res.FailedParts) > 0:
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d link(s) did not relay cleanly", failed, len(urls))
	}
	return nil
}
