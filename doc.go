// Package dcmetro polls the WMATA rail API and serves a live dashboard of
// incidents and next-train times for Washington Metro stations.
//
// A [Board] runs one or more [Session] values. Each session polls two feeds
// with its own API key: rail incidents (every 2 minutes by default) and
// next-train predictions for its stations (every 30 seconds, the first poll
// delayed by 1 second). Every update is published as an [Event] tagged with
// the session identifier, to registered callbacks and to the dashboard.
//
// # Quick Start
//
//	s, _ := dcmetro.NewSession("hallway", os.Getenv("WMATA_API_KEY"),
//	    dcmetro.WithStations("A01", "C01"),
//	)
//	board, _ := dcmetro.New(dcmetro.WithSession(s))
//
//	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer stop()
//
//	board.Start(ctx) // blocks until context is cancelled
//
// # Train filtering
//
// Predictions are kept in feed order. A session can drop trains bound for
// given destinations ([WithExcludedDestinations]), hide trains arriving in
// fewer than N minutes ([WithHideTrainTimesLessThan], where BRD and ARR count
// as zero) and cap each station's list ([WithMaxTrainTimesPerStation]).
//
// # Failures
//
// A failed fetch or an undecodable body counts against the session. By
// default the fifth failure halts polling for good and publishes
// [EventPollingHalted] once. [BreakerCooldown] instead pauses polling and
// probes again after a growing cooldown, publishing [EventPollingResumed] on
// recovery.
//
// # Architecture
//
// dcmetro consists of several internal packages (under internal/):
//
//   - wmata: URLs, strict decoding and parsing of the WMATA payloads
//   - stations: the station directory, loaded once per process
//   - poller: the HTTP client, per-feed timers and the failure breakers
//   - store: per-session state and pub/sub
//   - server: HTTP server with the JSON API, SSE and dashboard
package dcmetro
