package schedule

import (
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/chatlings/pkg/models"
)

// GeneratorConfig controls daily window placement
type GeneratorConfig struct {
	WindowsPerDay int
	FirstHour     int           // earliest open hour
	HourSpan      int           // open hour is drawn from [FirstHour, FirstHour+HourSpan)
	Duration      time.Duration // open -> close
	NotifyLead    time.Duration // notification is this long before open
	ReminderLead  time.Duration // reminder is this long before open
	MinGap        time.Duration // 0 disables the overlap check
	Location      *time.Location
}

func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		WindowsPerDay: 3,
		FirstHour:     10,
		HourSpan:      12,
		Duration:      time.Hour,
		NotifyLead:    2 * time.Hour,
		ReminderLead:  15 * time.Minute,
		Location:      time.UTC,
	}
}

// maxPlacementAttempts bounds resampling when MinGap is set
const maxPlacementAttempts = 50

// Generator draws random daily windows
type Generator struct {
	cfg GeneratorConfig
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a generator; a nil rnd gets a time-seeded source
func NewGenerator(cfg GeneratorConfig, rnd *rand.Rand) *Generator {
	if cfg.WindowsPerDay <= 0 {
		cfg.WindowsPerDay = 3
	}
	if cfg.HourSpan <= 0 {
		cfg.HourSpan = 12
	}
	if cfg.Duration <= 0 {
		cfg.Duration = time.Hour
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Generator{cfg: cfg, rnd: rnd}
}

// Windows returns the day's windows sorted by open time. Nothing is persisted.
func (g *Generator) Windows(date time.Time) []*models.ChatroomSchedule {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := g.Day(date)

	out := make([]*models.ChatroomSchedule, 0, g.cfg.WindowsPerDay)
	for i := 0; i < g.cfg.WindowsPerDay; i++ {
		open := g.drawOpen(day)
		for attempt := 0; g.cfg.MinGap > 0 && attempt < maxPlacementAttempts && conflicts(out, open, g.cfg.MinGap); attempt++ {
			open = g.drawOpen(day)
		}
		out = append(out, &models.ChatroomSchedule{
			Date:             day,
			OpenTime:         open,
			CloseTime:        open.Add(g.cfg.Duration),
			NotificationTime: open.Add(-g.cfg.NotifyLead),
			ReminderTime:     open.Add(-g.cfg.ReminderLead),
			Status:           models.StatusScheduled,
		})
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].OpenTime.Before(out[j].OpenTime) })
	return out
}

// Day is midnight of date's calendar day in the generator's location
func (g *Generator) Day(date time.Time) time.Time {
	y, m, d := date.In(g.cfg.Location).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, g.cfg.Location)
}

func (g *Generator) drawOpen(day time.Time) time.Time {
	hour := g.cfg.FirstHour + g.rnd.Intn(g.cfg.HourSpan)
	minute := 0
	if g.rnd.Intn(2) == 1 {
		minute = 30
	}
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func conflicts(existing []*models.ChatroomSchedule, open time.Time, gap time.Duration) bool {
	for _, s := range existing {
		d := s.OpenTime.Sub(open)
		if d < 0 {
			d = -d
		}
		if d < gap {
			return true
		}
	}
	return false
}
