// Package lambdautil holds the pieces shared by the Lambda entry points.
package lambdautil

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/iot-sensordata/stageload/internal/config"
)

// ConfigPathEnv names the environment variable holding the config file path
const ConfigPathEnv = config.EnvPrefix + "_CONFIG"

// LoadConfig loads the file named by STAGELOAD_CONFIG when set. Environment
// overrides always apply, so a function can run from environment and defaults alone.
func LoadConfig(opts ...config.Option) (*config.Config, error) {
	all := []config.Option{config.WithEnv(os.Getenv)}
	if path := os.Getenv(ConfigPathEnv); path != "" {
		all = append(all, config.WithConfigPath(path))
	}
	return config.LoadConfig(append(all, opts...)...)
}

// Recover wraps a handler so a panic fails the invocation with an error
// instead of crashing the runtime
func Recover[In, Out any](h func(context.Context, In) (Out, error)) func(context.Context, In) (Out, error) {
	return func(ctx context.Context, in In) (out Out, err error) {
		defer func() {
			if r := recover(); r != nil {
				slog.ErrorContext(ctx, "Handler panicked",
					"panic", fmt.Sprint(r),
					"stack", string(debug.Stack()))
				err = fmt.Errorf("handler panicked: %v", r)
			}
		}()
		return h(ctx, in)
	}
}

// RecoverErr is Recover for handlers that return only an error
func RecoverErr[In any](h func(context.Context, In) error) func(context.Context, In) error {
	wrapped := Recover(func(ctx context.Context, in In) (struct{}, error) {
		return struct{}{}, h(ctx, in)
	})
	return func(ctx context.Context, in In) error {
		_, err := wrapped(ctx, in)
		return err
	}
}
