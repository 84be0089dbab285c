package core

import (
	"log"
	"net"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string // DEV (local; default), TEST, QA, PROD
	Build    string
	AppName  string
	Debug    bool
	TestMode bool
	WorkDir  string

	RollbarToken     string
	SendgridApiKey   string
	defaultFromEmail string
	ReportEmails     []string

	Database struct {
		Engine        string
		Host          string
		Port          string
		Name          string
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Server struct {
		Host            string
		DebugHost       string
		ReadTimeout     time.Duration
		WriteTimeout    time.Duration
		ShutdownTimeout time.Duration
	}

	Points struct {
		DefaultLocale string
		Calculators   []string
	}

	Kafka struct {
		Brokers           []string
		InvalidationTopic string
	}

	RabbitMQ struct {
		URL      string
		Queue    string
		Prefetch int
		Workers  int
	}
}

func (conf *Config) DefaultFromEmail() mail.Address {
	addr, err := mail.ParseAddress(conf.defaultFromEmail)
	if err != nil {
		return mail.Address{Name: conf.AppName, Address: "noreply@localhost"}
	}
	return *addr
}

func (conf *Config) ReportRecipients() []mail.Address {
	addrs := make([]mail.Address, 0, len(conf.ReportEmails))
	for _, e := range conf.ReportEmails {
		if addr, err := mail.ParseAddress(e); err == nil {
			addrs = append(addrs, *addr)
		}
	}
	return addrs
}

func newViper(env string) *viper.Viper {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Nujoom")
	v.SetDefault("build", "develop")
	v.SetDefault("rollbarToken", "")
	v.SetDefault("sendgridApiKey", "")
	v.SetDefault("defaultFromEmail", "Nujoom <noreply@localhost>")
	v.SetDefault("reportEmails", "")

	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "nujoom")
	v.SetDefault("database.user", "nujoom")
	v.SetDefault("database.password", "nujoom")
	v.SetDefault("database.adminUser", "postgres")
	v.SetDefault("database.adminPassword", "postgres")
	v.SetDefault("database.disableTLS", true)

	v.SetDefault("server.host", "0.0.0.0:8000")
	v.SetDefault("server.debugHost", "0.0.0.0:4000")
	v.SetDefault("server.readTimeout", 5*time.Second)
	v.SetDefault("server.writeTimeout", 10*time.Second)
	v.SetDefault("server.shutdownTimeout", 5*time.Second)

	v.SetDefault("points.defaultLocale", "ar")
	v.SetDefault("points.calculators", "direct-sql,rpc,manual")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.invalidationTopic", "cache.invalidate")

	v.SetDefault("rabbitmq.url", "")
	v.SetDefault("rabbitmq.queue", "points.events")
	v.SetDefault("rabbitmq.prefetch", 10)
	v.SetDefault("rabbitmq.workers", 4)

	if env == "TEST" {
		v.SetDefault("testMode", true)
		v.SetDefault("debug", false)
	}

	// DEV_DATABASE_HOST -> database.host
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// NewConfig loads the configuration of the current ENV.
// Values come from defaults, then config/.env.<env> (if any), then the environment.
func NewConfig() *Config {
	env := strings.ToUpper(os.Getenv("ENV"))
	if env == "" {
		env = "DEV"
	}
	wd := Getwd()

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(wd, "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			log.Fatalf("config.godotenv(%s): %v", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		log.Fatalf("config.os.Stat(%s): %v", dotEnvPath, err)
	}

	return load(newViper(env), env, wd)
}

// NewTestConfig returns the TEST configuration without reading any .env file.
func NewTestConfig() *Config {
	return load(newViper("TEST"), "TEST", os.TempDir())
}

func load(v *viper.Viper, env, wd string) *Config {
	conf := &Config{
		Env:              env,
		Build:            v.GetString("build"),
		AppName:          v.GetString("appName"),
		Debug:            v.GetBool("debug"),
		TestMode:         v.GetBool("testMode"),
		WorkDir:          wd,
		RollbarToken:     v.GetString("rollbarToken"),
		SendgridApiKey:   v.GetString("sendgridApiKey"),
		defaultFromEmail: v.GetString("defaultFromEmail"),
		ReportEmails:     splitList(v.GetString("reportEmails")),
	}

	conf.Database.Engine = v.GetString("database.engine")
	conf.Database.Host = v.GetString("database.host")
	conf.Database.Port = v.GetString("database.port")
	conf.Database.Name = v.GetString("database.name")
	conf.Database.User = v.GetString("database.user")
	conf.Database.Password = v.GetString("database.password")
	conf.Database.AdminUser = v.GetString("database.adminUser")
	conf.Database.AdminPassword = v.GetString("database.adminPassword")
	conf.Database.DisableTLS = v.GetBool("database.disableTLS")

	conf.Server.Host = v.GetString("server.host")
	conf.Server.DebugHost = v.GetString("server.debugHost")
	conf.Server.ReadTimeout = v.GetDuration("server.readTimeout")
	conf.Server.WriteTimeout = v.GetDuration("server.writeTimeout")
	conf.Server.ShutdownTimeout = v.GetDuration("server.shutdownTimeout")

	conf.Points.DefaultLocale = v.GetString("points.defaultLocale")
	conf.Points.Calculators = splitList(v.GetString("points.calculators"))

	conf.Kafka.Brokers = splitList(v.GetString("kafka.brokers"))
	conf.Kafka.InvalidationTopic = v.GetString("kafka.invalidationTopic")

	conf.RabbitMQ.URL = v.GetString("rabbitmq.url")
	conf.RabbitMQ.Queue = v.GetString("rabbitmq.queue")
	conf.RabbitMQ.Prefetch = v.GetInt("rabbitmq.prefetch")
	conf.RabbitMQ.Workers = v.GetInt("rabbitmq.workers")
	return conf
}

// DatabaseAddress returns the "host:port" of the database server.
func (conf *Config) DatabaseAddress() string {
	if conf.Database.Port == "" {
		return conf.Database.Host
	}
	return net.JoinHostPort(conf.Database.Host, conf.Database.Port)
}

// splitList splits a comma separated value, dropping empty items.
func splitList(s string) []string {
	items := make([]string, 0)
	for _, item := range strings.Split(s, ",") {
		if item = CleanString(item); item != "" {
			items = append(items, item)
		}
	}
	return items
}
