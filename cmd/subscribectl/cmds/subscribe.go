package cmds

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/ltfawg/subscribe-api/internal/exiterr"
	"github.com/ltfawg/subscribe-api/internal/logger"
	"github.com/ltfawg/subscribe-api/internal/sendy"
	"github.com/ltfawg/subscribe-api/internal/validator"
)

var (
	subscribeEmail     string
	subscribeName      string
	subscribeIPAddress string
	subscribeReferrer  string
	subscribeCaptcha   string
)

var errRejected = errors.New("mailing list rejected the subscription")

// Exit codes: 0 subscribed or already subscribed, 1 unrecoverable error, 2 rejected by the list.
var subscribeCmd = &cobra.Command{
	Use:   "subscribe",
	Short: "Subscribe one address to the configured list, bypassing the web form",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, span := tracer.Start(cmd.Context(), "subscribeCmd")
		defer span.End()

		email := strings.TrimSpace(subscribeEmail)
		valid := validator.Create()
		if err := valid.Var(email, "required,email"); err != nil {
			err = exiterr.Wrap(exiterr.ExitErrored, fmt.Errorf("invalid email %q: %w", email, err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "invalid email")
			return err
		}

		cfg, err := loadConfig()
		if err != nil {
			err = exiterr.Wrap(exiterr.ExitErrored, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to load config")
			return err
		}

		span.SetAttributes(attribute.String("list", cfg.Sendy.ListID))

		subscriber := sendy.NewHTTPSubscriber(sendy.Options{
			Endpoint:     cfg.SubscribeURL(),
			ListID:       cfg.Sendy.ListID,
			APIKey:       cfg.Sendy.APIKey,
			UserAgent:    cfg.Sendy.UserAgent,
			Timeout:      cfg.Sendy.Timeout,
			MaxRedirects: cfg.Sendy.MaxRedirects,
		})

		outcome, err := subscriber.Subscribe(ctx, sendy.Request{
			Email:        email,
			Name:         strings.TrimSpace(subscribeName),
			CaptchaToken: subscribeCaptcha,
			IPAddress:    subscribeIPAddress,
			Referrer:     subscribeReferrer,
		})
		if err != nil {
			err = exiterr.Wrap(exiterr.ExitErrored, err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "subscribe call failed")
			return err
		}

		out := cmd.OutOrStdout()
		switch {
		case outcome.IsSuccess:
			fmt.Fprintln(out, "subscribed")
		case outcome.IsAlreadySubscribed:
			fmt.Fprintln(out, "already subscribed")
		default:
			logger.Logger.WarnContext(ctx, "subscription rejected", "response", outcome.RawResponseBody)
			err = exiterr.Wrap(exiterr.ExitRejected, fmt.Errorf("%w: %s", errRejected, outcome.RawResponseBody))
			span.RecordError(err)
			span.SetStatus(codes.Error, "rejected")
			return err
		}

		span.SetStatus(codes.Ok, "")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(subscribeCmd)

	subscribeCmd.Flags().StringVarP(&subscribeEmail, "email", "e", "", "Address to subscribe")
	subscribeCmd.Flags().StringVarP(&subscribeName, "name", "n", "", "Display name")
	subscribeCmd.Flags().StringVar(&subscribeIPAddress, "ip", "", "Client address recorded by the list")
	subscribeCmd.Flags().StringVar(&subscribeReferrer, "referrer", "", "Referrer recorded by the list")
	subscribeCmd.Flags().StringVar(&subscribeCaptcha, "captcha-token", "", "Captcha token, if the list requires one")

	if err := subscribeCmd.MarkFlagRequired("email"); err != nil {
		logger.Logger.Error("error setting flag required", "flag", "email", "error", err)
		os.Exit(1)
	}
}
