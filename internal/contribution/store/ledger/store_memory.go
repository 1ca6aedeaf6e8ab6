package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"

	"fecguard/internal/contribution/models"
	id "fecguard/pkg/domain"
	"fecguard/pkg/platform/sentinel"
)

type pairKey struct {
	donor    id.DonorID
	campaign id.CampaignID
}

// InMemoryLedgerStore keeps the ledger in process memory. Appends are
// serialized per (donor, campaign) pair so concurrent conditional appends for
// the same donor cannot jointly exceed the cap, while unrelated pairs proceed
// in parallel.
type InMemoryLedgerStore struct {
	mu        sync.RWMutex
	records   map[id.ContributionID]*models.Contribution
	byIdemKey map[string]id.ContributionID
	byTxnCode map[string]id.ContributionID

	pairMu    sync.Mutex
	pairLocks map[pairKey]*sync.Mutex
}

// NewInMemory constructs an empty in-memory ledger store.
func NewInMemory() *InMemoryLedgerStore {
	return &InMemoryLedgerStore{
		records:   make(map[id.ContributionID]*models.Contribution),
		byIdemKey: make(map[string]id.ContributionID),
		byTxnCode: make(map[string]id.ContributionID),
		pairLocks: make(map[pairKey]*sync.Mutex),
	}
}

func (s *InMemoryLedgerStore) pairLock(key pairKey) *sync.Mutex {
	s.pairMu.Lock()
	defer s.pairMu.Unlock()
	lock, ok := s.pairLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.pairLocks[key] = lock
	}
	return lock
}

func (s *InMemoryLedgerStore) Append(ctx context.Context, contribution *models.Contribution) error {
	return s.append(ctx, contribution, decimal.Decimal{}, false)
}

func (s *InMemoryLedgerStore) AppendWithinCap(ctx context.Context, contribution *models.Contribution, cap decimal.Decimal) error {
	return s.append(ctx, contribution, cap, true)
}

func (s *InMemoryLedgerStore) append(_ context.Context, contribution *models.Contribution, cap decimal.Decimal, capped bool) error {
	if err := contribution.Validate(); err != nil {
		return err
	}

	key := pairKey{donor: contribution.DonorID, campaign: contribution.CampaignID}
	lock := s.pairLock(key)
	lock.Lock()
	defer lock.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byIdemKey[contribution.IdempotencyKey]; exists {
		return sentinel.ErrDuplicate
	}
	if _, exists := s.records[contribution.ID]; exists {
		return sentinel.ErrDuplicate
	}

	if capped && contribution.Status == models.StatusConfirmed {
		total := s.confirmedTotalLocked(contribution.DonorID, contribution.CampaignID)
		if total.Add(contribution.Amount).GreaterThan(cap) {
			return sentinel.ErrCapExceeded
		}
	}

	stored := *contribution
	s.records[stored.ID] = &stored
	s.byIdemKey[stored.IdempotencyKey] = stored.ID
	if stored.TransactionCode != "" {
		s.byTxnCode[stored.TransactionCode] = stored.ID
	}
	return nil
}

func (s *InMemoryLedgerStore) CumulativeTotal(_ context.Context, donorID id.DonorID, campaignID id.CampaignID) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.confirmedTotalLocked(donorID, campaignID), nil
}

func (s *InMemoryLedgerStore) confirmedTotalLocked(donorID id.DonorID, campaignID id.CampaignID) decimal.Decimal {
	total := decimal.Zero
	for _, record := range s.records {
		if record.DonorID == donorID && record.CampaignID == campaignID && record.Status == models.StatusConfirmed {
			total = total.Add(record.Amount)
		}
	}
	return total
}

func (s *InMemoryLedgerStore) Confirm(_ context.Context, contributionID id.ContributionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[contributionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	switch record.Status {
	case models.StatusPending:
		record.Status = models.StatusConfirmed
		return nil
	case models.StatusVoid:
		return sentinel.ErrAlreadyVoid
	default:
		return sentinel.ErrInvalidState
	}
}

func (s *InMemoryLedgerStore) Void(_ context.Context, contributionID id.ContributionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[contributionID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if record.Status == models.StatusVoid {
		return sentinel.ErrAlreadyVoid
	}
	record.Status = models.StatusVoid
	return nil
}

func (s *InMemoryLedgerStore) FindByTransactionCode(_ context.Context, code string) (*models.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	contributionID, ok := s.byTxnCode[code]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	record := *s.records[contributionID]
	return &record, nil
}
