package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joeshaw/envdecode"
	"golang.org/x/sync/errgroup"

	"github.com/relabs-tech/workfit/core/access"
	"github.com/relabs-tech/workfit/core/csql"
	"github.com/relabs-tech/workfit/core/kss"
	"github.com/relabs-tech/workfit/core/logger"
	"github.com/relabs-tech/workfit/core/notifier"
	"github.com/relabs-tech/workfit/core/registry"
	"github.com/relabs-tech/workfit/fitness/backend"
	"github.com/relabs-tech/workfit/fitness/catalog"
	"github.com/relabs-tech/workfit/fitness/challenge"
	"github.com/relabs-tech/workfit/fitness/relay"
)

// Service holds the configuration for this service
//
// use POSTGRES="host=localhost port=5432 user=postgres password=docker dbname=postgres sslmode=disable"
type Service struct {
	Postgres       string        `env:"POSTGRES,required" description:"the connection string for the Postgres DB"`
	PostgresSchema string        `env:"POSTGRES_SCHEMA,default=workfit" description:"the database schema of the service"`
	Port           string        `env:"PORT,default=3000" description:"the port the service listens on"`
	RapidAPIKey    string        `env:"RAPIDAPI_KEY,required" description:"the key of the RapidAPI hosted services"`
	JWTSecret      string        `env:"JWT_SECRET,required" description:"the secret which signs the bearer tokens"`
	JWTIssuer      string        `env:"JWT_ISSUER,default=workfit" description:"the issuer of the bearer tokens"`
	TokenValidity  time.Duration `env:"TOKEN_VALIDITY,default=720h" description:"how long a bearer token is valid"`
	LogLevel       string        `env:"LOG_LEVEL,default=info" description:"the log level: debug, info, warning or error"`
	Location       string        `env:"CHALLENGE_LOCATION,default=Local" description:"the time zone of the noon challenge reset and of schedule dates"`

	KSSDriver     string `env:"KSS_DRIVER,optional" description:"the blob storage driver for profile images: Local, AWSS3 or empty"`
	KSSLocalPath  string `env:"KSS_LOCAL_PATH,default=/tmp/workfit" description:"the base folder of the Local driver"`
	PublicURL     string `env:"PUBLIC_URL,default=http://localhost:3000" description:"the externally visible URL of the service"`
	AWSRegion     string `env:"AWS_REGION,optional" description:"the AWS region of the S3 bucket"`
	AWSBucketName string `env:"AWS_BUCKET_NAME,optional" description:"the S3 bucket of the AWSS3 driver"`
	AWSAccessID   string `env:"AWS_ACCESS_ID,optional" description:"the AWS access key ID"`
	AWSAccessKey  string `env:"AWS_ACCESS_KEY,optional" description:"the AWS secret access key"`
	AWSKeyPrefix  string `env:"AWS_KEY_PREFIX,optional" description:"the prefix of all S3 keys"`

	KafkaBrokers string `env:"KAFKA_BROKERS,optional" description:"comma separated Kafka brokers. Without brokers, notifications are logged"`
	KafkaTopic   string `env:"KAFKA_TOPIC,default=workfit_notification" description:"the topic of the change notifications"`

	AdminEmails string `env:"ADMIN_EMAILS,optional" description:"comma separated e-mail addresses of the admin accounts"`
}

func main() {
	service := &Service{}
	if err := envdecode.Decode(service); err != nil {
		panic(err)
	}
	logger.InitLogger(logger.ParseLevel(service.LogLevel))
	rlog := logger.Default()

	location, err := time.LoadLocation(service.Location)
	if err != nil {
		rlog.WithError(err).Fatalln("invalid CHALLENGE_LOCATION")
	}

	db, err := csql.OpenWithSchema(service.Postgres, service.PostgresSchema)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot open database")
	}
	defer db.Close()

	store, err := backend.NewPostgresStore(db)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot create store")
	}
	reg, err := registry.New(db)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot create registry")
	}

	rl, err := relay.New(relay.Configuration{APIKey: service.RapidAPIKey})
	if err != nil {
		rlog.WithError(err).Fatalln("cannot create relay")
	}
	cat, err := catalog.Load()
	if err != nil {
		rlog.WithError(err).Fatalln("cannot load catalog")
	}
	challenges := challenge.New(challenge.Builder{
		Catalog:     cat,
		Cardio:      rl,
		DailyStore:  reg.Accessor("daily"),
		CardioStore: reg.Accessor("cardio"),
		Location:    location,
	})
	tokens, err := access.NewTokenIssuer(service.JWTSecret, service.JWTIssuer, service.TokenValidity)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot create token issuer")
	}

	router := mux.NewRouter()
	blobs, err := kss.New(kss.Configuration{
		DriverType: kss.DriverType(service.KSSDriver),
		LocalConfiguration: &kss.LocalConfiguration{
			BasePath:  service.KSSLocalPath,
			PublicURL: service.PublicURL,
		},
		S3Configuration: &kss.S3Configuration{
			AWSRegion:     service.AWSRegion,
			AWSBucketName: service.AWSBucketName,
			AccessID:      service.AWSAccessID,
			AccessKey:     service.AWSAccessKey,
			KeyPrefix:     service.AWSKeyPrefix,
		},
	}, router)
	if err != nil {
		rlog.WithError(err).Fatalln("cannot create blob storage")
	}

	var events notifier.Notifier = notifier.Log{}
	if service.KafkaBrokers != "" {
		kafka, err := notifier.NewKafka(strings.Split(service.KafkaBrokers, ","), service.KafkaTopic)
		if err != nil {
			rlog.WithError(err).Fatalln("cannot create kafka notifier")
		}
		events = kafka
	}
	defer events.Close()

	backend.New(&backend.Builder{
		Store:      store,
		Router:     router,
		Tokens:     tokens,
		Relay:      rl,
		Catalog:    cat,
		Challenges: challenges,
		Blobs:      blobs,
		Notifier:   events,
		Location:   location,
		Admins:     strings.Split(service.AdminEmails, ","),
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              ":" + service.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rlog.Infoln("listen on port :" + service.Port)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return challenges.Resetter().Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		rlog.WithError(err).Errorln("service stopped")
	}
}
