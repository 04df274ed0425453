package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	apihttp "mhp-cloud/internal/api/http"
	"mhp-cloud/internal/audit"
	"mhp-cloud/internal/auth"
	billingapp "mhp-cloud/internal/billing/application"
	billing "mhp-cloud/internal/billing/domain"
	billingrepo "mhp-cloud/internal/billing/infrastructure/postgres"
	billingusage "mhp-cloud/internal/billing/infrastructure/usage"
	billinginterfaces "mhp-cloud/internal/billing/interfaces"
	"mhp-cloud/internal/eventing"
	"mhp-cloud/internal/eventing/eventbus"
	eventingrepo "mhp-cloud/internal/eventing/infrastructure/postgres"
	masterdataapp "mhp-cloud/internal/masterdata/application"
	masterdatarepo "mhp-cloud/internal/masterdata/infrastructure/postgres"
	masterdatahttp "mhp-cloud/internal/masterdata/interfaces/http"
	meteringrepo "mhp-cloud/internal/metering/infrastructure/postgres"
	"mhp-cloud/internal/metering/interfaces/capture"
	"mhp-cloud/internal/notify"
	"mhp-cloud/internal/observability/metrics"
	paymentsapp "mhp-cloud/internal/payments/application"
	paymentsrepo "mhp-cloud/internal/payments/infrastructure/postgres"
	paymentswebhook "mhp-cloud/internal/payments/interfaces/webhook"
	reconcileapp "mhp-cloud/internal/reconcile/application"
	reconcilehttp "mhp-cloud/internal/reconcile/interfaces"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	cfg := loadConfig()
	logger := log.New(os.Stdout, "", log.LstdFlags)

	db, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("db open error: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("db ping error: %v", err)
	}

	metrics.Init(db, logger)
	parkChecker := auth.NewParkChecker(db)
	auditRepo := audit.NewRepository(db)

	parkRepo := masterdatarepo.NewParkRepository(db)
	lotRepo := masterdatarepo.NewLotRepository(db)
	readingRepo := meteringrepo.NewReadingRepository(db)
	rateTableRepo := billingrepo.NewRateTableRepository(db)
	invoiceRepo := billingrepo.NewParkInvoiceRepository(db)
	billRepo := billingrepo.NewBillRepository(db)
	paymentRepo := paymentsrepo.NewPaymentRepository(db)

	baseBus := eventbus.NewInMemoryBus()
	registry := eventing.NewRegistry()
	registry.Register(billingapp.BillGenerated{})
	registry.Register(billingapp.BillSent{})
	registry.Register(billingapp.BillPaid{})
	registry.Register(billingapp.BillOverdue{})
	registry.Register(billingapp.BillVoided{})

	outboxStore := eventingrepo.NewOutboxStore(db)
	processedStore := eventingrepo.NewProcessedStore(db)
	dlqStore := eventingrepo.NewDLQStore(db)
	dispatcher := eventing.NewDispatcher(baseBus, outboxStore, registry, dlqStore)
	publisher := eventing.NewPublisher(outboxStore, dispatcher, cfg.TenantID, baseBus)

	resolver, err := billing.NewResolver(rateTableRepo)
	if err != nil {
		logger.Fatalf("rate resolver error: %v", err)
	}
	usageProvider, err := billingusage.NewProvider(readingRepo, invoiceRepo)
	if err != nil {
		logger.Fatalf("usage provider error: %v", err)
	}
	billService, err := billingapp.NewBillService(billRepo, resolver, lotRepo, usageProvider, publisher, systemClock{}, logger, cfg.TenantID, cfg.DueNetDays)
	if err != nil {
		logger.Fatalf("bill service error: %v", err)
	}
	runService, err := billingapp.NewParkRunService(billService, lotRepo, logger, cfg.RunWorkers)
	if err != nil {
		logger.Fatalf("run service error: %v", err)
	}
	statusService, err := billingapp.NewStatusService(billRepo, publisher, systemClock{}, logger, cfg.TenantID)
	if err != nil {
		logger.Fatalf("status service error: %v", err)
	}

	var billNotifier *notify.Notifier
	if cfg.NotifyWebhookURL != "" {
		channel, err := notify.NewWebhookChannel(cfg.NotifyWebhookURL)
		if err != nil {
			logger.Fatalf("notify webhook error: %v", err)
		}
		tpl, err := notify.NewTemplate(cfg.NotifyTemplate)
		if err != nil {
			logger.Fatalf("notify template error: %v", err)
		}
		billNotifier, err = notify.NewNotifier(lotRepo, parkRepo, channel, tpl,
			notify.WithCooldown(cfg.NotifyCooldown),
			notify.WithDedupeWindow(cfg.NotifyDedupeWindow),
		)
		if err != nil {
			logger.Fatalf("notifier error: %v", err)
		}
	}

	if billNotifier != nil {
		generatedConsumer, err := billinginterfaces.NewBillGeneratedConsumer(statusService, billNotifier, logger)
		if err != nil {
			logger.Fatalf("bill generated consumer error: %v", err)
		}
		eventing.Subscribe(baseBus, eventbus.EventTypeOf[billingapp.BillGenerated](), "bills.generated", func(ctx context.Context, event any) error {
			evt, ok := event.(billingapp.BillGenerated)
			if !ok {
				return eventbus.ErrInvalidEventType
			}
			return generatedConsumer.Consume(ctx, evt)
		}, processedStore)
		eventing.Subscribe(baseBus, eventbus.EventTypeOf[billingapp.BillOverdue](), "bills.overdue", func(ctx context.Context, event any) error {
			evt, ok := event.(billingapp.BillOverdue)
			if !ok {
				return eventbus.ErrInvalidEventType
			}
			bill, err := statusService.Get(ctx, evt.BillID)
			if err != nil {
				return err
			}
			return billNotifier.NotifyBill(ctx, notify.EventOverdue, bill)
		}, processedStore)
		eventing.Subscribe(baseBus, eventbus.EventTypeOf[billingapp.BillVoided](), "bills.voided", func(ctx context.Context, event any) error {
			evt, ok := event.(billingapp.BillVoided)
			if !ok {
				return eventbus.ErrInvalidEventType
			}
			bill, err := statusService.Get(ctx, evt.BillID)
			if err != nil {
				return err
			}
			return billNotifier.NotifyBill(ctx, notify.EventVoided, bill)
		}, processedStore)
	}
	eventing.Subscribe(baseBus, eventbus.EventTypeOf[billingapp.BillPaid](), "bills.log", func(ctx context.Context, event any) error {
		evt, ok := event.(billingapp.BillPaid)
		if !ok {
			return eventbus.ErrInvalidEventType
		}
		logger.Printf("bill paid: bill=%s lot=%s amount=%.2f", evt.BillID, evt.LotID, evt.Amount)
		return nil
	}, processedStore)

	billHandler, err := billinginterfaces.NewBillHandler(billService, runService, statusService, parkChecker, auditRepo)
	if err != nil {
		logger.Fatalf("bill handler error: %v", err)
	}
	adminHandler, err := billinginterfaces.NewAdminHandler(rateTableRepo, invoiceRepo, auditRepo)
	if err != nil {
		logger.Fatalf("admin handler error: %v", err)
	}

	parkService, err := masterdataapp.NewParkService(parkRepo, lotRepo, systemClock{})
	if err != nil {
		logger.Fatalf("park service error: %v", err)
	}
	parkAdminHandler, err := masterdatahttp.NewParkAdminHandler(parkService, auditRepo)
	if err != nil {
		logger.Fatalf("park admin handler error: %v", err)
	}

	ingestHandler, err := capture.NewIngestHandler(readingRepo, logger)
	if err != nil {
		logger.Fatalf("ingest handler error: %v", err)
	}

	paymentService, err := paymentsapp.NewPaymentService(paymentRepo, statusService, systemClock{}, logger)
	if err != nil {
		logger.Fatalf("payment service error: %v", err)
	}
	paymentHandler, err := paymentswebhook.NewConfirmHandler(paymentService, logger)
	if err != nil {
		logger.Fatalf("payment handler error: %v", err)
	}

	reconcileCfg, err := reconcileapp.LoadConfig()
	if err != nil {
		logger.Fatalf("reconcile config error: %v", err)
	}
	var reconcileChannel notify.Channel
	if reconcileCfg.WebhookURL != "" {
		reconcileChannel, err = notify.NewWebhookChannel(reconcileCfg.WebhookURL)
		if err != nil {
			logger.Fatalf("reconcile webhook error: %v", err)
		}
	}
	reconcileService, err := reconcileapp.NewService(billRepo, billService, reconcileCfg, reconcileChannel, systemClock{}, logger)
	if err != nil {
		logger.Fatalf("reconcile service error: %v", err)
	}
	reconcileHandler, err := reconcilehttp.NewRunHandler(reconcileService)
	if err != nil {
		logger.Fatalf("reconcile handler error: %v", err)
	}

	go func() {
		ticker := time.NewTicker(cfg.OverdueSweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			flagged, err := statusService.SweepOverdue(context.Background())
			if err != nil {
				logger.Printf("overdue sweep error: %v", err)
				continue
			}
			if flagged > 0 {
				logger.Printf("overdue sweep flagged %d bills", flagged)
			}
		}
	}()

	policy := auth.NewDefaultPolicy([]string{"/healthz", "/metrics"}, []string{"/api/v1/ingest/", "/api/v1/webhooks/"})
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), policy)
	ingestAuth := auth.NewIngestAuthMiddleware([]byte(cfg.IngestSecret), time.Duration(cfg.IngestSkewSeconds)*time.Second)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/ingest/readings", ingestAuth.Wrap(ingestHandler))
	mux.Handle("/api/v1/webhooks/payment", ingestAuth.Wrap(paymentHandler))
	mux.Handle("/api/v1/parks", parkAdminHandler)
	mux.Handle("/api/v1/lots", parkAdminHandler)
	mux.Handle("/api/v1/lots/", parkAdminHandler)
	mux.Handle("/api/v1/rate-tables", adminHandler)
	mux.Handle("/api/v1/park-invoices", adminHandler)
	mux.Handle("/api/v1/bills", billHandler)
	mux.Handle("/api/v1/bills/", billHandler)
	mux.Handle("/api/v1/billing-runs", billHandler)
	mux.Handle("/api/v1/reconcile/run", reconcileHandler)
	mux.Handle("/api/v1/readings", apihttp.NewReadingsHandler(db))
	mux.Handle("/api/v1/exports/bills.csv", apihttp.NewExportBillsCSVHandler(db, cfg.TenantID))
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	server := &http.Server{Addr: cfg.HTTPAddr, Handler: loggingMiddleware(authMiddleware.Wrap(mux), logger)}
	logger.Printf("http listening on %s", cfg.HTTPAddr)
	logger.Fatal(server.ListenAndServe())
}

type config struct {
	DatabaseURL          string
	HTTPAddr             string
	TenantID             string
	DueNetDays           int
	RunWorkers           int
	OverdueSweepInterval time.Duration
	NotifyWebhookURL     string
	NotifyTemplate       string
	NotifyCooldown       time.Duration
	NotifyDedupeWindow   time.Duration
	JWTSecret            string
	IngestSecret         string
	IngestSkewSeconds    int
}

func loadConfig() config {
	cfg := config{
		DatabaseURL:          getenvDefault("DATABASE_URL", getenvDefault("PG_DSN", "")),
		HTTPAddr:             getenvDefault("HTTP_ADDR", ":8080"),
		TenantID:             getenvDefault("TENANT_ID", "tenant-demo"),
		DueNetDays:           getenvIntDefault("BILL_DUE_NET_DAYS", 15),
		RunWorkers:           getenvIntDefault("BILLING_RUN_WORKERS", 4),
		OverdueSweepInterval: getenvDuration("OVERDUE_SWEEP_INTERVAL", time.Hour),
		NotifyWebhookURL:     getenvDefault("BILL_NOTIFY_WEBHOOK_URL", ""),
		NotifyTemplate:       getenvDefault("BILL_NOTIFY_TEMPLATE", ""),
		NotifyCooldown:       getenvDuration("BILL_NOTIFY_COOLDOWN", 0),
		NotifyDedupeWindow:   getenvDuration("BILL_NOTIFY_DEDUP_WINDOW", 0),
		JWTSecret:            getenvDefault("AUTH_JWT_SECRET", getenvDefault("JWT_SECRET", "")),
		IngestSecret:         getenvDefault("INGEST_HMAC_SECRET", ""),
		IngestSkewSeconds:    getenvIntDefault("INGEST_MAX_SKEW_SECONDS", 300),
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL or PG_DSN is required")
	}
	if cfg.JWTSecret == "" {
		log.Fatal("AUTH_JWT_SECRET is required")
	}
	return cfg
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
