// Package env resolves runtime settings from cobra flags, the process
// environment and dotenv-style files, and bootstraps the logger and
// telemetry stack for commands.
package env

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/placeloop/go-common/logger"
	"github.com/placeloop/go-common/telemetry"
)

type EnvLine struct {
	Key string `json:"key"`
	Val string `json:"val"`
}

// ParseEnvFile parses an environment file into EnvLine entries. A missing
// file is an empty result, not an error.
func ParseEnvFile(filename string) ([]EnvLine, error) {
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return []EnvLine{}, nil
	}
	buf, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return ParseEnvBuffer(buf)
}

// LoadEnvFile parses an environment file and exports every entry into the
// process environment, so PLACELOOP_* overrides from a local .env file are
// visible to config.Load.
func LoadEnvFile(filename string) error {
	envs, err := ParseEnvFile(filename)
	if err != nil {
		return err
	}
	for _, el := range envs {
		if err := os.Setenv(el.Key, el.Val); err != nil {
			return fmt.Errorf("error setting %s: %w", el.Key, err)
		}
	}
	return nil
}

// dequote strips a matched pair of surrounding single or double quotes.
func dequote(s string) string {
	v := s
	if strings.HasPrefix(v, "'") && strings.HasSuffix(v, "'") {
		v = strings.TrimLeft(v, "'")
		v = strings.TrimRight(v, "'")
	} else if strings.HasPrefix(v, `"`) && strings.HasSuffix(v, `"`) {
		v = strings.TrimLeft(v, `"`)
		v = strings.TrimRight(v, `"`)
	}
	return v
}

func ParseEnvValue(key, val string) EnvLine {
	return EnvLine{
		Key: key,
		Val: val,
	}
}

// ProcessEnvLine splits a KEY=VALUE line and dequotes the value. A line
// without = becomes a key with an empty value.
func ProcessEnvLine(env string) EnvLine {
	tok := strings.SplitN(env, "=", 2)
	if len(tok) < 2 {
		return EnvLine{Key: env, Val: ""}
	}
	return ParseEnvValue(tok[0], dequote(tok[1]))
}

// envRef is one ${NAME} or ${NAME:-fallback} reference inside a value.
type envRef struct {
	name     string
	fallback string
}

// refEnd returns the index of the brace closing the reference whose body
// starts at start, or -1 when the reference never closes or nests a
// closing brace inside its body.
func refEnd(input string, start int) int {
	depth := 1
	for i := start; i < len(input); i++ {
		switch input[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				if strings.Contains(input[start:i], "}") {
					return -1
				}
				return i
			}
		}
	}
	return -1
}

func parseRef(refStr string) envRef {
	body := refStr[2 : len(refStr)-1]
	parts := strings.SplitN(body, ":-", 2)
	ref := envRef{name: parts[0]}
	if len(parts) > 1 {
		ref.fallback = parts[1]
	}
	return ref
}

// interpolate expands ${NAME} and ${NAME:-fallback} references against
// vars, and ${env:KEY} against the process environment. Unknown references
// without a fallback are left in place, and a value with unbalanced braces
// passes through untouched.
func interpolate(input string, vars map[string]string) string {
	if input == "" {
		return input
	}
	if strings.Count(input, "${") != strings.Count(input, "}") {
		return input
	}

	var out strings.Builder
	lastPos := 0

	for i := 0; i < len(input); i++ {
		if i+1 >= len(input) || input[i] != '$' || input[i+1] != '{' {
			continue
		}
		out.WriteString(input[lastPos:i])

		end := refEnd(input, i+2)
		if end == -1 {
			out.WriteString(input[i:])
			return out.String()
		}

		refStr := input[i : end+1]
		ref := parseRef(refStr)

		switch {
		case ref.name == "":
			out.WriteString("${}")
		case strings.HasPrefix(ref.name, "env:"):
			val := os.Getenv(strings.TrimPrefix(ref.name, "env:"))
			switch {
			case val != "":
				out.WriteString(val)
			case ref.fallback != "":
				out.WriteString(ref.fallback)
			default:
				out.WriteString(refStr)
			}
		default:
			val, exists := vars[ref.name]
			switch {
			case exists && val != "":
				out.WriteString(val)
			case ref.fallback != "":
				out.WriteString(ref.fallback)
			default:
				out.WriteString(refStr)
			}
		}

		i = end
		lastPos = end + 1
	}

	out.WriteString(input[lastPos:])
	return out.String()
}

// ParseEnvBuffer parses dotenv content. Values see every key in the file
// regardless of declaration order: a first pass interpolates against the
// entries so far, a second pass re-resolves forward references.
func ParseEnvBuffer(buf []byte) ([]EnvLine, error) {
	if len(buf) == 0 {
		return make([]EnvLine, 0), nil
	}
	var envs []EnvLine
	vars := make(map[string]string)

	for _, line := range strings.Split(string(buf), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		env := ProcessEnvLine(line)
		if env.Key == "" {
			continue
		}
		env.Val = interpolate(env.Val, vars)
		vars[env.Key] = env.Val
		envs = append(envs, env)
	}

	for i := range envs {
		envs[i].Val = interpolate(envs[i].Val, vars)
	}

	return envs, nil
}

func mustQuote(val string) bool {
	if strings.Contains(val, `"`) {
		return true
	}
	return strings.Contains(val, "\\n")
}

type callback func(key, val string) string

// EncodeOSEnvFunc escapes and quotes val for a dotenv file, then hands the
// pair to fn for final formatting.
func EncodeOSEnvFunc(key, val string, fn callback) string {
	val = strings.ReplaceAll(val, "\n", "\\n")
	val = strings.ReplaceAll(val, "'", "\\'")
	if mustQuote(val) {
		if strings.Contains(val, `"`) {
			val = `'` + val + `'`
		} else {
			val = `"` + val + `"`
		}
	}
	return fn(key, val)
}

// EncodeOSEnv renders one KEY=VALUE line for a dotenv file.
func EncodeOSEnv(key, val string) string {
	return EncodeOSEnvFunc(key, val, func(key, val string) string {
		return fmt.Sprintf(`%s=%s`, key, val)
	})
}

// WriteEnvFile writes entries as a dotenv file, one encoded line each.
func WriteEnvFile(fn string, envs []EnvLine) error {
	of, err := os.Create(fn)
	if err != nil {
		return err
	}
	defer of.Close()
	for _, el := range envs {
		fmt.Fprintln(of, EncodeOSEnv(el.Key, el.Val))
	}
	return of.Close()
}

// FlagOrEnv resolves a setting from the cobra flag first, then the named
// environment variable, then defaultValue.
func FlagOrEnv(cmd *cobra.Command, flagName string, envName string, defaultValue string) string {
	flagValue, _ := cmd.Flags().GetString(flagName)
	if flagValue != "" {
		return flagValue
	}
	if val, ok := os.LookupEnv(envName); ok {
		return val
	}
	return defaultValue
}

// LogLevel resolves the logging level from the cobra log-level flag, then the
// PLACELOOP_LOG_LEVEL environment value, falling back to info.
func LogLevel(cmd *cobra.Command) logger.LogLevel {
	return logger.ParseLevel(FlagOrEnv(cmd, "log-level", "PLACELOOP_LOG_LEVEL", "info"))
}

// NewLogger returns a console logger at the level resolved by LogLevel.
func NewLogger(cmd *cobra.Command) logger.Logger {
	log.SetFlags(0)
	return logger.NewConsoleLogger(LogLevel(cmd))
}

// NewTelemetry returns a telemetry context, logger and shutdown function. The cobra flags it expects are:
//
// --no-telemetry (boolean): if set, telemetry will be disabled
//
// --otlp-url (string): the url of the otlp server
//
// --otlp-shared-secret (string): the shared secret for the otlp server
//
// When no OTLP URL is configured the console logger is returned and telemetry
// stays off rather than failing the command.
func NewTelemetry(ctx context.Context, cmd *cobra.Command, serviceName string) (context.Context, logger.Logger, func(), error) {
	if noTelemetry, err := cmd.Flags().GetBool("no-telemetry"); err == nil && noTelemetry {
		return ctx, NewLogger(cmd), func() {}, nil
	}
	otlpURL := FlagOrEnv(cmd, "otlp-url", "PLACELOOP_OTLP_URL", "")
	otlpSharedSecret := FlagOrEnv(cmd, "otlp-shared-secret", "PLACELOOP_OTLP_SHARED_SECRET", "")

	if otlpURL == "" {
		return ctx, NewLogger(cmd), func() {}, nil
	}

	telemetryCtx, log, shutdown, err := telemetry.New(ctx, serviceName, otlpSharedSecret, otlpURL, NewLogger(cmd))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("error creating telemetry: %w", err)
	}
	return telemetryCtx, log, shutdown, nil
}
