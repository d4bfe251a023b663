package analytics

import (
	"context"
	"sort"
	"strings"
	"time"

	"ticketbot/internal/storage"
	"ticketbot/internal/ticket"
)

type Store interface {
	ListAuditLogs(ctx context.Context, since time.Time) ([]storage.AuditLog, error)
	CountByStatus(ctx context.Context) (map[ticket.Status]int, error)
}

type Service struct {
	store Store
}

func New(store Store) *Service {
	return &Service{store: store}
}

type Report struct {
	Since      time.Time
	Total      int
	ByLevel    map[string]int
	ByEvent    map[string]int
	ByStatus   map[ticket.Status]int
	Sanctions  int
	TopClosers []Count
}

type Count struct {
	Key   string
	Value int
}

func (s *Service) Report(ctx context.Context, since time.Time) (Report, error) {
	logs, err := s.store.ListAuditLogs(ctx, since)
	if err != nil {
		return Report{}, err
	}
	status, err := s.store.CountByStatus(ctx)
	if err != nil {
		return Report{}, err
	}

	report := Report{
		Since:    since,
		ByLevel:  make(map[string]int),
		ByEvent:  make(map[string]int),
		ByStatus: status,
	}
	closers := make(map[string]int)
	for _, log := range logs {
		report.Total++
		report.ByLevel[log.Level]++
		report.ByEvent[log.Event]++
		if strings.HasPrefix(log.Event, "sanction_") {
			report.Sanctions++
		}
		if log.Event == EventTicketClosed && log.UserID != "" {
			closers[log.UserID]++
		}
	}
	report.TopClosers = top(closers, 5)
	return report, nil
}

const EventTicketClosed = "ticket_closed"

func top(values map[string]int, limit int) []Count {
	counts := make([]Count, 0, len(values))
	for key, value := range values {
		counts = append(counts, Count{Key: key, Value: value})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Value == counts[j].Value {
			return counts[i].Key < counts[j].Key
		}
		return counts[i].Value > counts[j].Value
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}
