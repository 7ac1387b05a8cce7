package shared

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Getenv reads and parses an environment variable. When the variable is unset
// and required is false, def is returned instead.
func Getenv[T any](parse func(string) (T, error), key string, required bool, def T) (T, error) {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		if required {
			var zero T
			return zero, fmt.Errorf("environment variable %s is required", key)
		}
		return def, nil
	}
	v, err := parse(raw)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("parsing environment variable %s: %w", key, err)
	}
	return v, nil
}

func MustGetenv[T any](parse func(string) (T, error), key string, required bool, def T) T {
	v, err := Getenv(parse, key, required, def)
	if err != nil {
		panic(err)
	}
	return v
}

func GetenvString(raw string) (string, error) {
	return raw, nil
}

func GetenvInt(raw string) (int, error) {
	return strconv.Atoi(raw)
}

func GetenvBool(raw string) (bool, error) {
	return strconv.ParseBool(raw)
}

func GetenvDuration(raw string) (time.Duration, error) {
	return time.ParseDuration(raw)
}
