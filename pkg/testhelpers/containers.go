package testhelpers

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"

	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource"
	"github.com/ekaya-inc/emistr-mcp/pkg/adapters/datasource/mysql"
)

// MySQLTestImage is the engine eMISTR runs on in production.
const MySQLTestImage = "mysql:8.0"

// MySQLDB holds a shared MySQL container with the eMISTR schema loaded.
type MySQLDB struct {
	Container testcontainers.Container
	DB        *datasource.DB
	Config    datasource.Config
}

var (
	sharedMySQLDB     *MySQLDB
	sharedMySQLDBOnce sync.Once
	sharedMySQLDBErr  error
)

// GetMySQLDB returns a shared MySQL container for integration tests.
// The container is created once and reused across all tests in the run.
func GetMySQLDB(t *testing.T) *MySQLDB {
	t.Helper()

	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	sharedMySQLDBOnce.Do(func() {
		sharedMySQLDB, sharedMySQLDBErr = setupMySQLDB()
	})

	if sharedMySQLDBErr != nil {
		t.Fatalf("Failed to setup MySQL test database: %v", sharedMySQLDBErr)
	}

	return sharedMySQLDB
}

func setupMySQLDB() (*MySQLDB, error) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        MySQLTestImage,
		ExposedPorts: []string{"3306/tcp"},
		Env: map[string]string{
			"MYSQL_ROOT_PASSWORD": "test_password",
			"MYSQL_DATABASE":      "emistr",
		},
		Cmd: []string{"--character-set-server=utf8mb4", "--collation-server=utf8mb4_czech_ci"},
		WaitingFor: wait.ForLog("port: 3306  MySQL Community Server").
			WithStartupTimeout(120 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start test container: %w", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get container host: %w", err)
	}

	port, err := container.MappedPort(ctx, "3306")
	if err != nil {
		return nil, fmt.Errorf("failed to get container port: %w", err)
	}

	cfg := datasource.Config{
		Driver:       "mysql",
		Host:         host,
		Port:         port.Int(),
		User:         "root",
		Password:     "test_password",
		Database:     "emistr",
		MaxOpenConns: 5,
	}

	dsn, err := mysql.Dialect{}.DSN(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build dsn: %w", err)
	}
	seedDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open seed connection: %w", err)
	}
	defer seedDB.Close()

	if err := LoadEmistr(ctx, seedDB, CurrentSchema, time.Now()); err != nil {
		return nil, err
	}

	db, err := datasource.Open(ctx, cfg, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("failed to open datasource: %w", err)
	}

	return &MySQLDB{
		Container: container,
		DB:        db,
		Config:    cfg,
	}, nil
}
