package cli

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/i474232898/weather-report/internal/config"
	"github.com/i474232898/weather-report/internal/fetch"
	"github.com/i474232898/weather-report/internal/logging"
	"github.com/i474232898/weather-report/internal/weather"
)

var lookupCmd = &cobra.Command{
	Use:   "lookup <city>...",
	Short: "Print today's weather for cities without sending anything",
	Args:  cobra.MinimumNArgs(1),
	RunE:  lookupAction,
}

// regions is replaced in tests.
var regions = weather.DefaultRegions

func lookupAction(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(debugLog)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	// Credentials are not needed here, so the config is read but not validated.
	cfg, err := config.Read(envFile, nil, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	fetcher := fetch.New(&http.Client{Timeout: cfg.RequestTimeout}, cfg.FetchPolicy(), logger)
	svc := weather.NewService(fetcher, regions(), nil, logger)

	out := cmd.OutOrStdout()
	var failed []string
	for _, city := range args {
		rec, err := svc.Lookup(commandContext(cmd), city)
		if err != nil {
			if errors.Is(err, weather.ErrSourcesUnavailable) {
				return err
			}
			fmt.Fprintf(out, "%s: not found\n", city)
			failed = append(failed, city)
			continue
		}
		fmt.Fprintf(out, "%s %s %s %s %s\n", rec.Date, rec.City, rec.WeatherType, rec.TemperatureRange, rec.Wind)
	}
	if len(failed) > 0 {
		return fmt.Errorf("no weather for %v", failed)
	}
	return nil
}
