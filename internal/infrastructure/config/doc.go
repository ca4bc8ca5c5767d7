// Package config loads the OpenDeck Core configuration.
//
// Values start from built-in defaults, are overlaid by the YAML file and
// then by OPENDECK_* environment variables, and are validated as a whole so
// every problem is reported at once.
//
// Keep broker and InfluxDB credentials in the environment rather than the
// file. The API listens on loopback unless api.host says otherwise, since
// plugins run on the same machine.
//
//	cfg, err := config.Load(os.Getenv("OPENDECK_CONFIG"))
//	if err != nil {
//	    return err
//	}
//	profilesDir := filepath.Join(cfg.Paths.ConfigRoot, "profiles")
package config
