/*
Package test holds the integration tests of the workfit service.

The suite starts a Postgres container with testcontainers and runs the backend
against it, with the third-party services replaced by an httptest upstream.
*/
package test

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"

	"github.com/relabs-tech/workfit/core/access"
	"github.com/relabs-tech/workfit/core/client"
	"github.com/relabs-tech/workfit/core/csql"
	"github.com/relabs-tech/workfit/core/registry"
	"github.com/relabs-tech/workfit/fitness/backend"
	"github.com/relabs-tech/workfit/fitness/catalog"
	"github.com/relabs-tech/workfit/fitness/challenge"
	"github.com/relabs-tech/workfit/fitness/relay"
)

// cardioExercises is the canned upstream answer for cardio exercises
const cardioExercises = `[
{"id":"0001","name":"jumping jack","bodyPart":"cardio"},
{"id":"0002","name":"burpee","bodyPart":"cardio"},
{"id":"0003","name":"mountain climber","bodyPart":"cardio"},
{"id":"0004","name":"high knees","bodyPart":"cardio"},
{"id":"0005","name":"skater hops","bodyPart":"cardio"},
{"id":"0006","name":"butt kicks","bodyPart":"cardio"},
{"id":"0007","name":"jump rope","bodyPart":"cardio"},
{"id":"0008","name":"star jump","bodyPart":"cardio"},
{"id":"0009","name":"squat jump","bodyPart":"cardio"},
{"id":"0010","name":"shadow boxing","bodyPart":"cardio"},
{"id":"0011","name":"stair run","bodyPart":"cardio"}
]`

// IntegrationTestSuite runs the backend against a Postgres container
type IntegrationTestSuite struct {
	suite.Suite

	postgresContainer testcontainers.Container
	upstream          *httptest.Server
	srv               *httptest.Server

	DB       *csql.DB
	Store    *backend.PostgresStore
	Registry registry.Registry
	Router   *mux.Router
	// Client talks to the service over HTTP
	Client client.Client
}

func (s *IntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	postgresUser := "testuser"
	postgresPassword := "testpass"
	postgresDB := "testdb"
	pgC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:15",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     postgresUser,
				"POSTGRES_PASSWORD": postgresPassword,
				"POSTGRES_DB":       postgresDB,
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	s.Require().NoError(err)
	s.postgresContainer = pgC

	pgHost, err := pgC.Host(ctx)
	s.Require().NoError(err)
	pgPort, err := pgC.MappedPort(ctx, "5432")
	s.Require().NoError(err)

	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		pgHost, pgPort.Port(), postgresUser, postgresPassword, postgresDB)
	s.DB, err = csql.OpenWithSchema(dsn, "workfit_test")
	s.Require().NoError(err)

	s.Store, err = backend.NewPostgresStore(s.DB)
	s.Require().NoError(err)
	s.Registry, err = registry.New(s.DB)
	s.Require().NoError(err)

	s.upstream = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/exercises/bodyPart/cardio":
			w.Write([]byte(cardioExercises))
		case "/recipes/complexSearch":
			w.Write([]byte(`{"results":[]}`))
		default:
			w.Write([]byte(`{}`))
		}
	}))
	rl, err := relay.New(relay.Configuration{
		APIKey:         "secret",
		ExerciseDBURL:  s.upstream.URL,
		SpoonacularURL: s.upstream.URL,
		NutritionURL:   s.upstream.URL,
	})
	s.Require().NoError(err)
	cat, err := catalog.Load()
	s.Require().NoError(err)
	challenges := challenge.New(challenge.Builder{
		Catalog:     cat,
		Cardio:      rl,
		DailyStore:  s.Registry.Accessor("daily"),
		CardioStore: s.Registry.Accessor("cardio"),
		Location:    time.UTC,
		Rand:        rand.New(rand.NewSource(7)),
	})
	tokens, err := access.NewTokenIssuer("integration-secret", "workfit-test", time.Hour)
	s.Require().NoError(err)

	s.Router = mux.NewRouter()
	backend.New(&backend.Builder{
		Store:        s.Store,
		Router:       s.Router,
		Tokens:       tokens,
		Relay:        rl,
		Catalog:      cat,
		Challenges:   challenges,
		Location:     time.UTC,
		PasswordCost: bcrypt.MinCost,
	})
	s.srv = httptest.NewServer(s.Router)
	s.Client = client.NewWithURL(s.srv.URL)
}

func (s *IntegrationTestSuite) TearDownSuite() {
	ctx := context.Background()
	if s.srv != nil {
		s.srv.Close()
	}
	if s.upstream != nil {
		s.upstream.Close()
	}
	if s.DB != nil {
		s.Require().NoError(s.DB.ClearSchema())
		s.DB.Close()
	}
	if s.postgresContainer != nil {
		err := s.postgresContainer.Terminate(ctx)
		s.Require().NoError(err)
	}
}
