package config

import (
	"os"
	"sync"

	"github.com/joho/godotenv"
)

var dotenvOnce sync.Once

// LoadDotenv loads variables from a .env file once per process. ENV_FILE
// selects the file (default ".env" in the working directory) and NO_DOTENV=1
// disables loading. Variables already set in the environment win.
func LoadDotenv() {
	dotenvOnce.Do(func() {
		if os.Getenv("NO_DOTENV") == "1" {
			return
		}
		path := os.Getenv("ENV_FILE")
		if path == "" {
			path = ".env"
		}
		_ = godotenv.Load(path)
	})
}
