package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"

	garageapi "github.com/PlateWorks/ServiceBox/internal/api/garage_api"
	"github.com/PlateWorks/ServiceBox/internal/broker/messages"
	"github.com/PlateWorks/ServiceBox/internal/models"
	"github.com/PlateWorks/ServiceBox/internal/services/garage"
)

type serviceAPIOpts struct {
	httpAddr string

	signatureTopic string
	consumerGroup  string

	onListen func(httpAddr string)
}

type kafkaConsumer interface {
	Consume(ctx context.Context, handler func(key, value []byte) error) error
}

func runServiceAPI(ctx context.Context, opts serviceAPIOpts, svc *garage.Service, consumer kafkaConsumer) error {
	httpLis, err := net.Listen("tcp", opts.httpAddr)
	if err != nil {
		return err
	}

	if opts.onListen != nil {
		opts.onListen(httpLis.Addr().String())
	}

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- runHTTPServer(ctx, httpLis, svc)
	}()

	go func() {
		slog.Info("kafka consumer started", "topic", opts.signatureTopic, "group", opts.consumerGroup)
		_ = consumer.Consume(ctx, func(_, value []byte) error {
			return handleSignatureCaptured(ctx, svc, value)
		})
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-httpErr:
		return err
	}
}

func runHTTPServer(ctx context.Context, lis net.Listener, svc *garage.Service) error {
	r := chi.NewRouter()
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Mount("/", garageapi.New(svc).Router())

	srv := &http.Server{Handler: r}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	slog.Info("HTTP server listening", "addr", lis.Addr().String())
	return srv.Serve(lis)
}

// handleSignatureCaptured drives a finalization from a kiosk message.
// Malformed payloads and domain rejections are logged and committed so a bad
// message cannot wedge the partition; only transient failures stay
// uncommitted for redelivery.
func handleSignatureCaptured(ctx context.Context, svc *garage.Service, value []byte) error {
	var m messages.SignatureCaptured
	if err := json.Unmarshal(value, &m); err != nil {
		slog.Warn("drop malformed signature.captured", "err", err)
		return nil
	}
	image, err := base64.StdEncoding.DecodeString(m.ImageBase64)
	if err != nil {
		slog.Warn("drop signature.captured with bad image", "service_id", m.ServiceID, "err", err)
		return nil
	}

	_, err = svc.AttachSignature(ctx, m.SessionToken, m.ServiceID, image, m.SignerName)
	switch {
	case err == nil:
		slog.Info("signature attached", "service_id", m.ServiceID)
		return nil
	case errors.Is(err, models.ErrAlreadySigned):
		// Redelivery after a crash between the attach and the offset commit.
		return nil
	case errors.Is(err, models.ErrServiceNotFound),
		errors.Is(err, models.ErrServiceNotDelivered),
		errors.Is(err, models.ErrEmptySignatureImage),
		errors.Is(err, models.ErrUnauthenticated):
		slog.Warn("reject signature.captured", "service_id", m.ServiceID, "err", err)
		return nil
	default:
		return err
	}
}
