package dcmetro

import (
	"context"
	"log/slog"
	"time"

	"github.com/jpalmerr/dcmetro/internal/poller"
	"github.com/jpalmerr/dcmetro/internal/stations"
	"github.com/jpalmerr/dcmetro/internal/store"
	"github.com/jpalmerr/dcmetro/internal/wmata"
)

// sessionRuntime owns the scheduler and breaker of one running session.
type sessionRuntime struct {
	session Session
	dir     *stations.Directory
	events  chan<- store.Event
	logger  *slog.Logger

	scheduler *poller.Scheduler

	// ctx is the session's run context, set before the scheduler starts.
	// Breaker callbacks have no context of their own and use it to publish.
	ctx context.Context
}

func newSessionRuntime(
	s Session,
	dir *stations.Directory,
	baseURL string,
	timeout time.Duration,
	client *poller.Client,
	events chan<- store.Event,
	logger *slog.Logger,
) *sessionRuntime {
	rt := &sessionRuntime{
		session: s,
		dir:     dir,
		events:  events,
		logger:  logger.With("session", s.identifier),
	}

	var feeds []poller.Feed
	if s.showIncidents {
		feeds = append(feeds, poller.Feed{
			Name:     wmata.FeedIncidents,
			URL:      wmata.IncidentsURL(baseURL, s.apiKey),
			Interval: s.incidentsInterval,
			Timeout:  timeout,
			Handle:   rt.handleIncidents,
		})
	}
	if s.showTrainTimes {
		feeds = append(feeds, poller.Feed{
			Name:     wmata.FeedTrainTimes,
			URL:      wmata.PredictionsURL(baseURL, s.apiKey, s.stations),
			Interval: s.trainTimesInterval,
			Delay:    s.trainTimesDelay,
			Timeout:  timeout,
			Handle:   rt.handleTrainTimes,
		})
	}

	rt.scheduler = poller.NewScheduler(feeds, rt.newBreaker(), client, rt.logger)
	return rt
}

func (rt *sessionRuntime) newBreaker() poller.Breaker {
	cfg := rt.session.breaker
	if cfg.Policy == BreakerCooldown {
		return poller.NewCooldownBreaker(poller.CooldownConfig{
			Threshold:       cfg.Threshold,
			InitialCooldown: cfg.InitialCooldown,
			MaxCooldown:     cfg.MaxCooldown,
			OnHalt:          rt.halted,
			OnResume:        rt.resumed,
		})
	}
	return poller.NewMonitor(cfg.Threshold, rt.halted)
}

// run polls until ctx is cancelled, then stops the scheduler and waits for
// in-flight polls to be discarded.
func (rt *sessionRuntime) run(ctx context.Context) error {
	rt.ctx = ctx
	rt.scheduler.Start(ctx)
	rt.logger.Info("session polling started",
		"incidents", rt.session.showIncidents,
		"train_times", rt.session.showTrainTimes,
		"stations", rt.session.stations,
	)

	<-ctx.Done()
	rt.scheduler.Stop()
	rt.logger.Info("session polling stopped")
	return nil
}

func (rt *sessionRuntime) handleIncidents(ctx context.Context, body []byte) error {
	raw, err := wmata.DecodeIncidents(body)
	if err != nil {
		return err
	}
	incidents := wmata.ParseIncidents(raw)
	rt.publish(ctx, store.Event{
		Kind:      store.EventIncidentsUpdated,
		Incidents: &incidents,
		Summary:   wmata.SummarizeLines(incidents.Lines),
	})
	return nil
}

func (rt *sessionRuntime) handleTrainTimes(ctx context.Context, body []byte) error {
	preds, err := wmata.DecodeTrains(body)
	if err != nil {
		return err
	}
	filter := wmata.TrainFilter{
		Stations:             rt.session.stations,
		ExcludedDestinations: rt.session.excludedDestinations,
		HideLessThan:         rt.session.hideLessThan,
		FullDestinationNames: rt.session.fullDestinationNames,
	}
	snapshot := wmata.ParseTrainTimes(preds, filter, rt.dir).Truncate(rt.session.maxPerStation)
	rt.publish(ctx, store.Event{
		Kind:       store.EventTrainTimesUpdated,
		TrainTimes: snapshot,
	})
	return nil
}

func (rt *sessionRuntime) halted() {
	rt.logger.Error("polling halted after repeated failures")
	rt.publish(rt.ctx, store.Event{Kind: store.EventPollingHalted})
}

func (rt *sessionRuntime) resumed() {
	rt.logger.Info("polling resumed")
	rt.publish(rt.ctx, store.Event{Kind: store.EventPollingResumed})
}

// publish tags the event with the session and queues it. Nothing is
// published once ctx is done.
func (rt *sessionRuntime) publish(ctx context.Context, event store.Event) {
	if ctx.Err() != nil {
		return
	}
	event.Identifier = rt.session.identifier
	event.At = time.Now()
	select {
	case rt.events <- event:
	case <-ctx.Done():
	}
}
