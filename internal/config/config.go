package config

import (
	"log"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
)

// Store kinds accepted by --store.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Options struct {
	runAddr       string
	logLevel      string
	dataBaseDSN   string
	storeDir      string
	storeKind     string
	migrationsDir string
}

func NewOptions() *Options {
	return new(Options)
}

// RegisterFlags loads the .env file and registers every option on fs.
// Environment variables provide the defaults, command line flags override them.
func (o *Options) RegisterFlags(fs *pflag.FlagSet) {
	loadEnvFile()

	regStringVar(fs, &o.runAddr, "addr", "a", getEnvOrDefault("RUN_ADDRESS", ":8080"), "address and port to run server")
	regStringVar(fs, &o.logLevel, "log-level", "l", getEnvOrDefault("LOG_LEVEL", "info"), "log level")
	regStringVar(fs, &o.dataBaseDSN, "database", "d", getEnvOrDefault("DATABASE_URI", ""), "database connection string")
	regStringVar(fs, &o.storeDir, "store-dir", "s", getEnvOrDefault("STORE_DIR", "data"), "directory of the file store")
	regStringVar(fs, &o.migrationsDir, "migrations", "m", getEnvOrDefault("MIGRATIONS_DIR", "migrations"), "directory with database migrations")
	regStringVar(fs, &o.storeKind, "store", "", getEnvOrDefault("STORE_KIND", StoreFile), "local store backend: file, postgres or memory")
}

func (o *Options) RunAddr() string {
	return o.runAddr
}

func (o *Options) LogLevel() string {
	return o.logLevel
}

func (o *Options) DataBaseDSN() string {
	return o.dataBaseDSN
}

func (o *Options) StoreDir() string {
	return o.storeDir
}

func (o *Options) MigrationsDir() string {
	return o.migrationsDir
}

// StoreKind reports the selected backend. A database DSN implies postgres
// unless another kind was chosen explicitly.
func (o *Options) StoreKind() string {
	if o.storeKind == StoreFile && o.dataBaseDSN != "" {
		return StorePostgres
	}
	return o.storeKind
}

func regStringVar(fs *pflag.FlagSet, p *string, name, shorthand, value, usage string) {
	fs.StringVarP(p, name, shorthand, value, usage)
}

// getEnvOrDefault reads an environment variable or returns a default value if the variable is not set or is empty.
func getEnvOrDefault(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// loadEnvFile loads environment variables from a .env file in the working directory.
func loadEnvFile() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Printf("cannot resolve working directory: %v", err)
		return
	}
	envPath := filepath.Join(cwd, ".env")

	if err := godotenv.Load(envPath); err != nil {
		return
	}
	log.Printf(".env file loaded from %s", envPath)
}
