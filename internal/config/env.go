package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// resolver looks a setting up in flag, environment, .env, default order.
type resolver struct {
	getenv func(string) string
	dotenv map[string]string
}

func (r resolver) str(flagValue, key, def string) string {
	if flagValue != "" {
		return flagValue
	}
	if v := r.getenv(key); v != "" {
		return v
	}
	if v := r.dotenv[key]; v != "" {
		return v
	}
	return def
}

// boolean accepts true, 1 and yes (any case) as true; any other set value is false.
func (r resolver) boolean(flagValue, key string, def bool) bool {
	v := r.str(flagValue, key, "")
	if v == "" {
		return def
	}
	switch strings.ToLower(v) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// readEnvFile parses KEY=value lines. Blank lines and # comments are skipped,
// an optional "export " prefix is ignored and surrounding quotes are removed.
func readEnvFile(path string) (map[string]string, error) {
	f, err := os.Open(path) //#nosec G304 -- path comes from the operator
	if err != nil {
		return nil, err
	}
	defer f.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("invalid format at line %d: %s", lineNum, line)
		}
		values[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), `"'`)
	}
	return values, scanner.Err()
}
