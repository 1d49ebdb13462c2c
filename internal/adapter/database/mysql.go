package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/semmidev/sqlcourier/internal/config"
	"github.com/semmidev/sqlcourier/internal/domain"
)

type commandRunner func(ctx context.Context, name string, args, env []string) ([]byte, error)

type MySQLDatabase struct {
	config *config.DatabaseConfig

	openDB     func(dsn string) (*sql.DB, error)
	runCommand commandRunner
}

func NewMySQL(cfg *config.DatabaseConfig) *MySQLDatabase {
	return &MySQLDatabase{
		config: cfg,
		openDB: func(dsn string) (*sql.DB, error) {
			return sql.Open("mysql", dsn)
		},
		runCommand: execCommand,
	}
}

// Dump verifies the credentials over a driver connection and then runs
// mysqldump into outputPath. The connection is returned as the result handle
// even on failure; the caller closes it.
func (m *MySQLDatabase) Dump(ctx context.Context, outputPath string) (*domain.DumpResult, error) {
	db, err := m.openDB(m.DSN())
	if err != nil {
		return nil, fmt.Errorf("open mysql connection: %w", err)
	}

	result := &domain.DumpResult{Path: outputPath, Handle: db}

	if err := db.PingContext(ctx); err != nil {
		return result, fmt.Errorf("mysql ping failed: %w", err)
	}

	output, err := m.runCommand(ctx, m.command(), m.dumpArgs(outputPath), m.env())
	if err != nil {
		return result, fmt.Errorf("mysqldump failed: %w, output: %s", err, string(output))
	}

	// mysqldump has exited, so no process of ours holds the file.
	result.Released = true
	return result, nil
}

func (m *MySQLDatabase) GetName() string {
	return m.config.Name
}

func (m *MySQLDatabase) GetType() string {
	return "mysql"
}

func (m *MySQLDatabase) Ping(ctx context.Context) error {
	db, err := m.openDB(m.DSN())
	if err != nil {
		return fmt.Errorf("open mysql connection: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("mysql ping failed: %w", err)
	}

	return nil
}

// DSN returns the go-sql-driver data source name for the configured server.
func (m *MySQLDatabase) DSN() string {
	cfg := mysql.NewConfig()
	cfg.User = m.config.User
	cfg.Passwd = m.config.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(m.config.Host, strconv.Itoa(m.config.Port))
	cfg.DBName = m.config.Name
	cfg.Timeout = 10 * time.Second
	return cfg.FormatDSN()
}

func (m *MySQLDatabase) command() string {
	if m.config.DumpCommand == "" {
		return "mysqldump"
	}
	return m.config.DumpCommand
}

func (m *MySQLDatabase) dumpArgs(outputPath string) []string {
	args := []string{
		fmt.Sprintf("--host=%s", m.config.Host),
		fmt.Sprintf("--port=%d", m.config.Port),
		fmt.Sprintf("--user=%s", m.config.User),
		"--single-transaction",
		"--quick",
		"--lock-tables=false",
		"--routines",
		"--triggers",
		"--events",
	}
	args = append(args, m.config.DumpArgs...)
	return append(args, fmt.Sprintf("--result-file=%s", outputPath), m.config.Name)
}

// The password travels in the environment so it stays out of the process list.
func (m *MySQLDatabase) env() []string {
	if m.config.Password == "" {
		return nil
	}
	return []string{"MYSQL_PWD=" + m.config.Password}
}

func execCommand(ctx context.Context, name string, args, env []string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Env = append(os.Environ(), env...)
	return cmd.CombinedOutput()
}
