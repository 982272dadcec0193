package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/chatlings/pkg/models"
)

// Event names what a user-facing notifier is told about
type Event string

const (
	EventAnnounced Event = "announced"
	EventReminder  Event = "reminder"
	EventOpened    Event = "opened"
	EventClosed    Event = "closed"
)

// Notifier delivers lifecycle events to users. Delivery itself lives outside
// this module; failures are logged and never roll back a transition.
type Notifier interface {
	Notify(ctx context.Context, event Event, sc *models.ChatroomSchedule) error
}

// LogNotifier writes events to the structured log
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, event Event, sc *models.ChatroomSchedule) error {
	log.Info().
		Str("event", string(event)).
		Int64("schedule_id", sc.ID).
		Time("open_time", sc.OpenTime).
		Msg("Chatroom event")
	return nil
}

// TickReport counts what one poll pass did
type TickReport struct {
	Notified int `json:"notified"`
	Reminded int `json:"reminded"`
	Opened   int `json:"opened"`
	Closed   int `json:"closed"`
}

// Ticker runs one poll-and-advance pass over due windows
type Ticker struct {
	svc      *Service
	notifier Notifier
}

func NewTicker(svc *Service, notifier Notifier) *Ticker {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return &Ticker{svc: svc, notifier: notifier}
}

// Tick advances every due window. Windows another poller already moved are
// skipped silently; other per-window errors are collected and returned.
func (t *Ticker) Tick(ctx context.Context) (TickReport, error) {
	var report TickReport
	var errs []error

	due, err := t.svc.GetNeedingNotification(ctx)
	if err != nil {
		return report, err
	}
	for _, sc := range due {
		ok, err := t.advance(ctx, sc, models.StatusNotified, EventAnnounced)
		errs = append(errs, err)
		if ok {
			report.Notified++
		}
	}

	due, err = t.svc.GetNeedingReminder(ctx)
	if err != nil {
		return report, errors.Join(append(errs, err)...)
	}
	for _, sc := range due {
		marked, err := t.svc.store.MarkReminderSent(ctx, sc.ID, t.svc.now())
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !marked {
			continue
		}
		t.notify(ctx, EventReminder, sc)
		report.Reminded++
	}

	due, err = t.svc.GetToOpen(ctx)
	if err != nil {
		return report, errors.Join(append(errs, err)...)
	}
	for _, sc := range due {
		ok, err := t.advance(ctx, sc, models.StatusOpen, EventOpened)
		errs = append(errs, err)
		if ok {
			report.Opened++
		}
	}

	due, err = t.svc.GetToClose(ctx)
	if err != nil {
		return report, errors.Join(append(errs, err)...)
	}
	for _, sc := range due {
		ok, err := t.advance(ctx, sc, models.StatusClosed, EventClosed)
		errs = append(errs, err)
		if ok {
			report.Closed++
		}
	}

	if report != (TickReport{}) {
		log.Info().
			Int("notified", report.Notified).
			Int("reminded", report.Reminded).
			Int("opened", report.Opened).
			Int("closed", report.Closed).
			Msg("Schedule tick complete")
	}
	return report, errors.Join(errs...)
}

func (t *Ticker) advance(ctx context.Context, sc *models.ChatroomSchedule, to models.ScheduleStatus, event Event) (bool, error) {
	err := t.svc.AdvanceStatus(ctx, sc.ID, to)
	if errors.Is(err, ErrAlreadyAdvanced) {
		return false, nil
	}
	if err != nil {
		log.Error().Err(err).Int64("schedule_id", sc.ID).Str("to", string(to)).Msg("Failed to advance chatroom")
		return false, err
	}
	sc.Status = to
	t.notify(ctx, event, sc)
	return true, nil
}

func (t *Ticker) notify(ctx context.Context, event Event, sc *models.ChatroomSchedule) {
	if err := t.notifier.Notify(ctx, event, sc); err != nil {
		log.Warn().Err(err).Str("event", string(event)).Int64("schedule_id", sc.ID).Msg("Notifier failed")
	}
}

// Poller calls Tick on a fixed interval until stopped. It is the in-process
// driver for deployments that run without the job queue.
type Poller struct {
	ticker   *Ticker
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
	started  bool
}

func NewPoller(ticker *Ticker, interval time.Duration) *Poller {
	if interval < time.Second {
		interval = time.Second
	}
	return &Poller{ticker: ticker, interval: interval, timeout: 30 * time.Second, stopCh: make(chan struct{}), doneCh: make(chan struct{})}
}

func (p *Poller) Start() {
	if p.started {
		return
	}
	p.started = true
	go p.loop()
}

func (p *Poller) Stop() {
	if !p.started {
		return
	}
	close(p.stopCh)
	<-p.doneCh
}

func (p *Poller) loop() {
	ticker := time.NewTicker(p.interval)
	defer func() { ticker.Stop(); close(p.doneCh) }()
	p.runOnce()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.runOnce()
		}
	}
}

func (p *Poller) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if _, err := p.ticker.Tick(ctx); err != nil {
		log.Error().Err(err).Msg("Schedule poll cycle error")
	}
}
