package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"
)

// reading config error is fatal, and exits main thread
func processError(err error) {
	fmt.Println(err)
	os.Exit(2)
}

func readFile(path string, v interface{}) {
	f, err := os.Open(path)
	if err != nil {
		processError(err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(v); err != nil {
		processError(err)
	}
}

func readEnv(cfg *Configuration) {
	if err := envconfig.Process("", cfg); err != nil {
		processError(err)
	}
}

// Init loads config.yml twice against two different target shapes (the
// process settings and the committee/treasury/limiter seed data), then
// layers environment variables over the process settings.
func Init(path string) {
	readFile(path, &Config)
	readFile(path, &SeedData)
	readEnv(&Config)
}
