// Package store defines the durable log's repository interfaces and a
// PostgreSQL implementation, used to persist every detected opportunity,
// executed trade leg, fund transfer and periodic system metric.
package store

import (
	"context"
	"time"
)

// TimeRange bounds a query by inclusive [From, To].
type TimeRange struct {
	From time.Time
	To   time.Time
}

// OpportunityRecord is the durable representation of a detected cycle.
type OpportunityRecord struct {
	ID           string
	DetectedAt   time.Time
	MainPair     string
	MainVenue    string
	ProfitMargin float64
	Volume       float64
	Status       string
	CycleJSON    []byte
	CreatedAt    time.Time
}

// TradeRecord is the durable representation of one executed order leg.
type TradeRecord struct {
	ID            string
	OpportunityID string
	Venue         string
	Symbol        string
	Side          string
	OrderID       string
	PlannedPrice  float64
	FilledPrice   float64
	Amount        float64
	FilledAmount  float64
	Status        string
	CreatedAt     time.Time
}

// TransferRecord is the durable representation of an inter-venue transfer.
type TransferRecord struct {
	ID         string
	FromVenue  string
	ToVenue    string
	Currency   string
	Amount     float64
	Network    string
	Fee        float64
	WithdrawID string
	Status     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MetricRecord is one periodic system metric sample.
type MetricRecord struct {
	Service   string
	Name      string
	Value     float64
	Timestamp time.Time
}

// OpportunityRepo persists and queries detected opportunities.
type OpportunityRepo interface {
	Insert(ctx context.Context, o OpportunityRecord) error
	UpdateStatus(ctx context.Context, id, status string) error
	GetByID(ctx context.Context, id string) (*OpportunityRecord, error)
	ListByStatus(ctx context.Context, status string, limit int) ([]OpportunityRecord, error)
	ListRecent(ctx context.Context, tr TimeRange, limit int) ([]OpportunityRecord, error)
}

// TradesRepo persists and queries executed order legs.
type TradesRepo interface {
	Insert(ctx context.Context, t TradeRecord) error
	ListByOpportunity(ctx context.Context, opportunityID string) ([]TradeRecord, error)
	GetByOrderID(ctx context.Context, orderID string) (*TradeRecord, error)
	CountByVenue(ctx context.Context, tr TimeRange) (map[string]int64, error)
}

// TransfersRepo persists and queries fund transfers.
type TransfersRepo interface {
	Insert(ctx context.Context, t TransferRecord) error
	UpdateStatus(ctx context.Context, id, status string) error
	GetByID(ctx context.Context, id string) (*TransferRecord, error)
	ListPending(ctx context.Context) ([]TransferRecord, error)
}

// MetricsRepo persists periodic system metric samples.
type MetricsRepo interface {
	Insert(ctx context.Context, m MetricRecord) error
	ListRecent(ctx context.Context, service, name string, limit int) ([]MetricRecord, error)
}

// Repository aggregates every durable-log repo the engine needs.
type Repository struct {
	Opportunities OpportunityRepo
	Trades        TradesRepo
	Transfers     TransfersRepo
	Metrics       MetricsRepo
}
