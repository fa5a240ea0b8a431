package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime/pprof"
	"strconv"
	"strings"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/golang/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chitamrita/chatd/auth"
	"github.com/chitamrita/chatd/chat"
	"github.com/chitamrita/chatd/feed"
	"github.com/chitamrita/chatd/httpapi"
	"github.com/chitamrita/chatd/store"
	"github.com/chitamrita/chatd/ws"
)

const feedMaxBytes = 4096

var (
	flagAddr    = flag.String("addr", "127.0.0.1:8000", "server address, ip:port")
	flagPidFile = flag.String("pid-file", "chatd.pid", "pid file")

	flagStore    = flag.String("store", "mysql", "message store backend: mysql or bolt")
	flagMysqlDsn = flag.String("mysql-dsn", "root:@tcp(127.0.0.1:3306)/chitamrita?parseTime=true&charset=utf8mb4&collation=utf8mb4_unicode_ci", "mysql server dsn")
	flagBoltPath = flag.String("bolt-path", "chatd.db", "bolt file path for -store=bolt")

	flagKafkaBrokers = flag.String("kafka-brokers", "", "comma separated kafka brokers for the message firehose, empty disables it")
	flagKafkaTopic   = flag.String("kafka-topic", "chitamrita-messages", "kafka topic for the message firehose")

	flagUploadsDir = flag.String("uploads-dir", "uploads", "dir to save uploaded media")

	flagIdentityURL = flag.String("identity-provider-url", "", "identity provider verify endpoint")
	flagDevAuth     = flag.Bool("dev-auth", false, "trust the x-uid cookie instead of the identity provider, dev only")

	flagDisableMetrics = flag.Bool("disable-metrics", false, "disable prometheus metrics")
)

func main() {
	flag.Parse()

	// NOTE: os.Exit() does not call defers.
	os.Exit(run())
}

func run() int {
	defer glog.Flush()

	if v := validateFlags(); v > 0 {
		return v
	}

	pid := os.Getpid()

	if err := savePid(*flagPidFile, pid); err != nil {
		return errorf("pid file: %v", err)
	}
	defer func() {
		_ = os.Remove(*flagPidFile)
	}()

	if err := os.MkdirAll(*flagUploadsDir, 0750); err != nil {
		return errorf("--uploads-dir: error create dir `%s`: %v", *flagUploadsDir, err)
	}

	glog.Info("chatd server is starting")

	var messageStore chat.MessageStore
	var users chat.UserDirectory
	var closeStore func() error

	switch *flagStore {
	case "mysql":
		db, err := sql.Open("mysql", *flagMysqlDsn)
		if err != nil {
			return errorf("sql.Open error, dsn: %s, err: %v", *flagMysqlDsn, err)
		}
		db.SetConnMaxLifetime(time.Minute * 3)
		db.SetMaxOpenConns(100)
		db.SetMaxIdleConns(1)

		ms := store.NewMysqlStore(db)
		messageStore = ms
		users = ms
		closeStore = db.Close
	case "bolt":
		bs, err := store.OpenBolt(*flagBoltPath)
		if err != nil {
			return errorf("open bolt store: %v", err)
		}
		messageStore = bs
		closeStore = bs.Close
	}

	var publisher chat.Publisher
	var closeFeed func() error
	if *flagKafkaBrokers != "" {
		brokers := strings.Split(*flagKafkaBrokers, ",")
		p := feed.NewPublisher(feed.NewKafkaWriter(brokers, *flagKafkaTopic), feedMaxBytes)
		publisher = p
		closeFeed = p.Close
	}

	presence := chat.NewRegistry()
	deliverer := chat.NewDeliverer(messageStore, presence, publisher)
	receipts := chat.NewReceipts(messageStore, presence)
	aggregator := chat.NewAggregator(messageStore, users)

	hub := ws.NewHub(newAuthClient(), presence, ws.NewApi(deliverer, receipts))
	apiServer := httpapi.NewServer(newAuthClient(), aggregator, receipts, hub, *flagUploadsDir)

	mux := http.NewServeMux()
	if !*flagDisableMetrics {
		mux.Handle("/metrics", promhttp.HandlerFor(
			prometheus.DefaultGatherer,
			promhttp.HandlerOpts{},
		))
	}
	mux.Handle("/ws", hub)
	mux.Handle("/api/", apiServer)
	mux.Handle("/uploads/", http.StripPrefix("/uploads/", http.FileServer(http.Dir(*flagUploadsDir))))

	httpServer := &http.Server{Addr: *flagAddr, Handler: mux}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hubStopDoneC := make(chan struct{})
	go hub.Run(ctx, hubStopDoneC)

	go func() {
		glog.Infof("http server is listening %v", *flagAddr)
		if err := httpServer.ListenAndServe(); errors.Is(err, http.ErrServerClosed) {
			glog.Infof("http server closed")
		} else if err != nil {
			glog.Errorf("error serve http server: %v", err)
		}
	}()

	glog.Infof("`kill -USR1 %d` to dump goroutines; `CTRL+c` or `kill %d` to graceful stop", pid, pid)

	var stopping bool

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGUSR1, syscall.SIGTERM, syscall.SIGINT)

	for sig := range sigCh {
		switch sig {
		case syscall.SIGUSR1:
			_ = pprof.Lookup("goroutine").WriteTo(os.Stderr, 2)
		case syscall.SIGTERM, syscall.SIGINT:
			if stopping {
				glog.Infof("chatd server is already in stop")
				continue
			}
			stopping = true
			glog.Infof("received signal `%s`, stopping", sig.String())
			go func() {
				cancel()
				<-hubStopDoneC
				close(hubStopDoneC)
				_ = httpServer.Shutdown(context.Background())
				if closeFeed != nil {
					_ = closeFeed()
				}
				_ = closeStore()
				signal.Stop(sigCh)
				close(sigCh)
			}()
		}
	}

	glog.Info("chatd server exited")
	return 0
}

func newAuthClient() auth.Client {
	if *flagDevAuth {
		return &auth.MockClient{}
	}
	return auth.NewHTTPClient(*flagIdentityURL)
}

func validateFlags() int {
	if *flagAddr == "" {
		return errorf("--addr is required")
	}
	if *flagPidFile == "" {
		return errorf("--pid-file is required")
	}
	if *flagUploadsDir == "" {
		return errorf("--uploads-dir is required")
	}

	switch *flagStore {
	case "mysql":
		if *flagMysqlDsn == "" {
			return errorf("--mysql-dsn is required for --store=mysql")
		}
	case "bolt":
		if *flagBoltPath == "" {
			return errorf("--bolt-path is required for --store=bolt")
		}
	default:
		return errorf("--store must be mysql or bolt")
	}

	if !*flagDevAuth && *flagIdentityURL == "" {
		return errorf("--identity-provider-url is required unless --dev-auth is set")
	}

	return 0
}

func errorf(format string, args ...interface{}) int {
	glog.Errorf(format, args...)
	return 1
}

func savePid(name string, pid int) error {
	if _, err := os.Stat(name); err == nil {
		content, err := os.ReadFile(name)
		if err != nil {
			return err
		}
		if len(content) > 0 {
			oldPid, err := strconv.Atoi(strings.TrimSpace(string(content)))
			if err != nil {
				return err
			}

			proc, err := os.FindProcess(oldPid)
			if err != nil {
				return err
			}
			defer proc.Release()

			if err := proc.Signal(syscall.Signal(0)); err == nil {
				return fmt.Errorf("pid file: exists with pid: %d, the process is running", oldPid)
			}
			glog.Infof("pid file exists with pid: %d, but is not running", oldPid)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("pid file: stat error: %v", err)
	}

	if err := os.WriteFile(name, []byte(strconv.Itoa(pid)), 0600); err != nil {
		return fmt.Errorf("pid file: write error: %v", err)
	}
	return nil
}
