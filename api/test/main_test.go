package test

import (
	"context"
	"fmt"
	"net"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/wsd/bookstore/config"
	"github.com/wsd/bookstore/database"
)

// dbHost is the host:port of the postgres container started by TestMain.
// Every test env creates its own database inside this one container.
var dbHost string

func TestMain(m *testing.M) {
	os.Exit(run(m))
}

func run(m *testing.M) int {
	pool, err := dockertest.NewPool("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not connect to docker: %v\n", err)
		return 1
	}

	res, err := pool.Run("postgres", "15-alpine", []string{
		"POSTGRES_USER=postgres",
		"POSTGRES_PASSWORD=postgres",
		"POSTGRES_DB=postgres",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not start postgres: %v\n", err)
		return 1
	}
	defer func() {
		if err := pool.Purge(res); err != nil {
			fmt.Fprintf(os.Stderr, "could not purge postgres: %v\n", err)
		}
	}()

	res.Expire(600)

	dbHost = net.JoinHostPort("localhost", res.GetPort("5432/tcp"))

	pool.MaxWait = 60 * time.Second
	err = pool.Retry(func() error {
		db, err := database.Open(config.DB{
			User:       "postgres",
			Password:   "postgres",
			Host:       dbHost,
			Name:       "postgres",
			DisableTLS: true,
		})
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		return database.StatusCheck(ctx, db)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "could not ping postgres: %v\n", err)
		return 1
	}

	return m.Run()
}
