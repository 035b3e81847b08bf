package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func withHooks(t *testing.T, open func(string) (*gorm.DB, error), run func(*gin.Engine, string) error) {
	t.Helper()
	origOpen, origRun, origRedis, origDotenv := openDB, runServer, initRedis, loadDotenv
	openDB = open
	runServer = run
	initRedis = func(url, password string) error { return errors.New("no redis in test") }
	loadDotenv = func(...string) error { return errors.New("no dotenv") }
	t.Cleanup(func() {
		openDB, runServer, initRedis, loadDotenv = origOpen, origRun, origRedis, origDotenv
	})
}

func TestRunMainProcess_DBOpenFails(t *testing.T) {
	withHooks(t,
		func(dsn string) (*gorm.DB, error) { return nil, errors.New("boom") },
		func(r *gin.Engine, port string) error { return nil },
	)

	err := runMainProcess()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")
}

func TestRunMainProcess_StartsServer(t *testing.T) {
	var served bool
	withHooks(t,
		func(dsn string) (*gorm.DB, error) {
			mem := fmt.Sprintf("file:main_%d?mode=memory&cache=shared", time.Now().UnixNano())
			return gorm.Open(sqlite.Open(mem), &gorm.Config{})
		},
		func(r *gin.Engine, port string) error {
			served = true
			require.NotNil(t, r)
			return nil
		},
	)

	require.NoError(t, runMainProcess())
	assert.True(t, served)
}
