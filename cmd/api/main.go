package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cmlabs-hris/hris-payroll-go/internal/config"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/bulk"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/employee"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/master/department"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/payroll"
	"github.com/cmlabs-hris/hris-payroll-go/internal/domain/salary"
	appHTTP "github.com/cmlabs-hris/hris-payroll-go/internal/handler/http"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/bpjs"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/cron"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/database"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/events"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/jwt"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/lock"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/pph21"
	"github.com/cmlabs-hris/hris-payroll-go/internal/pkg/sse"
	"github.com/cmlabs-hris/hris-payroll-go/internal/repository/memory"
	"github.com/cmlabs-hris/hris-payroll-go/internal/repository/postgresql"
	bulkService "github.com/cmlabs-hris/hris-payroll-go/internal/service/bulk"
	payrollService "github.com/cmlabs-hris/hris-payroll-go/internal/service/payroll"
	salaryService "github.com/cmlabs-hris/hris-payroll-go/internal/service/salary"
	"github.com/go-chi/httplog/v3"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// repositories is the storage backend selected by STORAGE_DRIVER.
type repositories struct {
	tx          database.TxManager
	employees   employee.EmployeeRepository
	departments department.DepartmentRepository
	components  salary.ComponentRepository
	changes     salary.ChangeRecordRepository
	periods     payroll.PeriodRepository
	lineItems   payroll.LineItemRepository
	variables   payroll.VariableInputRepository
	operations  bulk.OperationRepository
	close       func()
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Println("Error loading config:", err)
		return
	}

	logFormat := httplog.SchemaECS.Concise(cfg.App.Env != "production")
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level:       logLevel(cfg.App.LogLevel),
		ReplaceAttr: logFormat.ReplaceAttr,
	})).With(
		slog.String("app", "hris-payroll"),
		slog.String("env", cfg.App.Env),
	)
	slog.SetDefault(logger)

	rates, err := config.LoadRates(cfg.App.RatesFile)
	if err != nil {
		log.Fatal("Failed to load statutory rates: ", err)
	}

	repos, err := openRepositories(cfg)
	if err != nil {
		log.Fatal("Failed to initialize storage: ", err)
	}
	defer repos.close()

	locker, closeLocker := newLocker(cfg)
	defer closeLocker()

	var publisher events.Publisher = events.NoopPublisher{}
	if len(cfg.Kafka.Brokers) > 0 {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
	}
	defer publisher.Close()

	JWTService := jwt.NewJWTService(cfg.JWT.Secret, cfg.JWT.AccessExpiration)
	taxCalculator := pph21.NewCalculator(rates.Tax)
	contributionCalculator := bpjs.NewCalculator(rates.BPJS)

	ledgerService := salaryService.NewLedgerService(repos.changes, publisher)
	componentService := salaryService.NewComponentService(repos.tx, repos.components, repos.employees, ledgerService)
	approvalService := salaryService.NewApprovalService(repos.tx, repos.components, repos.changes, repos.employees, ledgerService)
	payrollEngine := payrollService.NewPayrollService(
		repos.tx,
		repos.periods,
		repos.lineItems,
		repos.variables,
		repos.employees,
		repos.components,
		locker,
		taxCalculator,
		contributionCalculator,
		publisher,
		payrollService.Options{
			MaxWorkers:        cfg.Payroll.MaxWorkers,
			RepositoryTimeout: cfg.Payroll.RepositoryTimeout,
		},
	)
	variableInputService := payrollService.NewVariableInputService(repos.periods, repos.variables, repos.employees, locker)
	bulkEngine := bulkService.NewBulkService(
		repos.tx,
		repos.operations,
		repos.employees,
		repos.departments,
		repos.components,
		ledgerService,
		locker,
		publisher,
		bulkService.Options{
			MaxWorkers:   cfg.Bulk.MaxWorkers,
			RoundingUnit: decimal.NewFromInt(cfg.Bulk.RoundingUnit),
		},
	)

	router := appHTTP.NewRouter(
		appHTTP.RouterConfig{Logger: logger, AllowedOrigins: cfg.App.CORSAllowedOrigins},
		JWTService,
		appHTTP.NewPayrollHandler(payrollEngine, variableInputService),
		appHTTP.NewSalaryHandler(componentService, approvalService, ledgerService),
		appHTTP.NewBulkHandler(bulkEngine, sse.NewHub()),
	)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := cron.NewScheduler()
	cron.NewBulkJobs(bulkEngine, cfg.Bulk.StaleAfter).RegisterJobs(scheduler, cfg.Bulk.RecoveryInterval)
	scheduler.Start(ctx)

	go func() {
		slog.Info("Server running", "port", cfg.App.Port, "storage", cfg.App.StorageDriver, "lock", cfg.App.LockDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Server stopped", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
	scheduler.Stop()
}

func openRepositories(cfg *config.Config) (*repositories, error) {
	switch cfg.App.StorageDriver {
	case config.StorageDriverMemory:
		store := memory.NewStore()
		if cfg.App.SeedFile != "" {
			if err := memory.LoadSeedFile(store, cfg.App.SeedFile); err != nil {
				return nil, err
			}
		}
		slog.Warn("Using in-memory storage; data is lost on restart")
		return &repositories{
			tx:          store,
			employees:   memory.NewEmployeeRepository(store),
			departments: memory.NewDepartmentRepository(store),
			components:  memory.NewComponentRepository(store),
			changes:     memory.NewChangeRecordRepository(store),
			periods:     memory.NewPeriodRepository(store),
			lineItems:   memory.NewLineItemRepository(store),
			variables:   memory.NewVariableInputRepository(store),
			operations:  memory.NewOperationRepository(store),
			close:       func() {},
		}, nil

	default:
		db, err := database.NewPostgreSQLDB(context.Background(), cfg.DatabaseURL(), cfg.Database.MaxConns)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		return &repositories{
			tx:          postgresql.NewTxManager(db),
			employees:   postgresql.NewEmployeeRepository(db),
			departments: postgresql.NewDepartmentRepository(db),
			components:  postgresql.NewComponentRepository(db),
			changes:     postgresql.NewChangeRecordRepository(db),
			periods:     postgresql.NewPeriodRepository(db),
			lineItems:   postgresql.NewLineItemRepository(db),
			variables:   postgresql.NewVariableInputRepository(db),
			operations:  postgresql.NewOperationRepository(db),
			close:       db.Close,
		}, nil
	}
}

func newLocker(cfg *config.Config) (lock.Locker, func()) {
	if cfg.App.LockDriver != config.LockDriverRedis {
		return lock.NewMemoryLocker(), func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	return lock.NewRedisLocker(client, cfg.Redis.LockTTL), func() { _ = client.Close() }
}

func logLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
