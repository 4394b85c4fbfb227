// ABOUTME: Optional .env file loading for local development
// ABOUTME: A missing .env file is not an error
package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnv loads variables from a .env file in the working directory
// into the process environment. The file is optional.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}
