package cli

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"qlmodel/internal/adapter/queryserver"
	"qlmodel/internal/domain"
	"qlmodel/internal/port"
)

// startServer launches the configured evaluation backend.
func startServer(ctx context.Context) (*queryserver.Client, error) {
	c := GetConfig()
	client, err := queryserver.Start(ctx, queryserver.Options{
		Path:        c.Server.Path,
		Args:        c.Server.Args,
		TimeoutSecs: c.Server.TimeoutSecs,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start query server: %w", err)
	}
	return client, nil
}

// compilationOptions maps the config section onto the request shape.
func compilationOptions() domain.CompilationOptions {
	c := GetConfig().Compile
	return domain.CompilationOptions{
		ComputeNoLocationURLs: c.ComputeNoLocationURLs,
		FailOnWarnings:        c.FailOnWarnings,
		FastCompilation:       c.FastCompilation,
		IncludeDilInQlo:       c.IncludeDilInQlo,
		LocalChecking:         c.LocalChecking,
		NoComputeGetURL:       c.NoComputeGetURL,
		NoComputeToString:     c.NoComputeToString,
		ComputeDefaultStrings: c.ComputeDefaultStrings,
		EmitDebugInfo:         c.EmitDebugInfo,
	}
}

// barSink renders backend progress with a terminal progress bar, created
// lazily once the total step count is known.
func barSink(description string) port.ProgressSink {
	var bar *progressbar.ProgressBar
	var mu sync.Mutex
	var startTime time.Time
	var initialized bool

	return port.ProgressFunc(func(step, maxStep int, message string) {
		mu.Lock()
		defer mu.Unlock()

		if !initialized {
			startTime = time.Now()
			bar = progressbar.NewOptions(maxStep,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]"+description+"[reset]"),
				progressbar.OptionSetTheme(progressbar.Theme{
					Saucer:        "[green]=[reset]",
					SaucerHead:    "[green]>[reset]",
					SaucerPadding: " ",
					BarStart:      "[",
					BarEnd:        "]",
				}),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
			initialized = true
		}

		if maxStep > 0 {
			bar.ChangeMax(maxStep)
		}
		bar.Set(step)
		if message != "" {
			elapsed := time.Since(startTime).Round(time.Second)
			bar.Describe(fmt.Sprintf("[cyan]%s[reset] %s (%s)", description, message, elapsed))
		}
	})
}
