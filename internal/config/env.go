package config

import "github.com/joho/godotenv"

// LoadEnv loads variables from a .env file in the working directory.
// Variables that are already set in the environment take precedence.
// Callers can check os.IsNotExist on the returned error to treat a
// missing file as optional.
func LoadEnv(filenames ...string) error {
	return godotenv.Load(filenames...)
}
