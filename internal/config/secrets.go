package config

// RedactedConfig returns a shallow copy of cfg with sensitive fields replaced
// by the redaction placeholder "***". Use this when logging or printing the
// active configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg // shallow copy of the top-level struct

	redact(&out.Postgres.DSN)
	redact(&out.Postgres.Password)
	redact(&out.Redis.Password)
	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through
	// the redacted copy.
	if cfg.Trading.Symbols != nil {
		out.Trading.Symbols = append([]string(nil), cfg.Trading.Symbols...)
	}
	if cfg.Trading.Markets != nil {
		out.Trading.Markets = append([]string(nil), cfg.Trading.Markets...)
	}
	if cfg.Trading.BasePrices != nil {
		out.Trading.BasePrices = make(map[string]float64, len(cfg.Trading.BasePrices))
		for k, v := range cfg.Trading.BasePrices {
			out.Trading.BasePrices[k] = v
		}
	}
	if cfg.Notify.Events != nil {
		out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	}

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
