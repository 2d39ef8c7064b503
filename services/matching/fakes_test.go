package matching

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/HSouheill/barrim_matching/models"
)

type fakeDirectory struct {
	mu      sync.Mutex
	members map[primitive.ObjectID]*models.Member
	// extra edges that do not follow sponsorId, to model corrupted data
	extra         map[primitive.ObjectID][]primitive.ObjectID
	childrenCalls int
	err           error
}

func newFakeDirectory() *fakeDirectory {
	return &fakeDirectory{
		members: map[primitive.ObjectID]*models.Member{},
		extra:   map[primitive.ObjectID][]primitive.ObjectID{},
	}
}

// add registers a member sponsored by sponsor (nil for a root) and returns its id.
func (d *fakeDirectory) add(sponsor *primitive.ObjectID, rank string) primitive.ObjectID {
	id := primitive.NewObjectID()
	d.members[id] = &models.Member{ID: id, SponsorID: sponsor, Rank: rank}
	return id
}

func (d *fakeDirectory) FindMember(_ context.Context, id primitive.ObjectID) (*models.Member, error) {
	if d.err != nil {
		return nil, d.err
	}
	m, ok := d.members[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (d *fakeDirectory) ChildrenOf(_ context.Context, parentIDs []primitive.ObjectID) ([]models.Member, error) {
	d.mu.Lock()
	d.childrenCalls++
	d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	parents := map[primitive.ObjectID]bool{}
	for _, id := range parentIDs {
		parents[id] = true
	}
	var out []models.Member
	for _, m := range d.members {
		if m.SponsorID != nil && parents[*m.SponsorID] {
			out = append(out, *m)
		}
	}
	for _, p := range parentIDs {
		for _, c := range d.extra[p] {
			out = append(out, *d.members[c])
		}
	}
	return out, nil
}

func (d *fakeDirectory) DirectReferralCount(_ context.Context, id primitive.ObjectID) (int64, error) {
	if d.err != nil {
		return 0, d.err
	}
	var n int64
	for _, m := range d.members {
		if m.SponsorID != nil && *m.SponsorID == id {
			n++
		}
	}
	return n, nil
}

func (d *fakeDirectory) MemberIDsWithRanks(_ context.Context, ranks []string) ([]primitive.ObjectID, error) {
	want := map[string]bool{}
	for _, r := range ranks {
		want[r] = true
	}
	var out []primitive.ObjectID
	for id, m := range d.members {
		if want[m.Rank] {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeLedger struct {
	events []models.CommissionEvent
	err    error
}

func (l *fakeLedger) add(owner primitive.ObjectID, incomeType, status, amount string, at time.Time) models.CommissionEvent {
	ev := models.CommissionEvent{
		ID:        primitive.NewObjectID(),
		OwnerID:   owner,
		Type:      incomeType,
		Amount:    decimal.RequireFromString(amount),
		Status:    status,
		CreatedAt: at,
	}
	l.events = append(l.events, ev)
	return ev
}

func (l *fakeLedger) HasEventOfType(_ context.Context, owner primitive.ObjectID, incomeType string) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	for _, ev := range l.events {
		if ev.OwnerID == owner && ev.Type == incomeType {
			return true, nil
		}
	}
	return false, nil
}

func (l *fakeLedger) FindEvents(_ context.Context, f models.EventFilter) ([]models.CommissionEvent, error) {
	if l.err != nil {
		return nil, l.err
	}
	in := func(s string, set []string) bool {
		for _, v := range set {
			if v == s {
				return true
			}
		}
		return false
	}
	owners := map[primitive.ObjectID]bool{}
	for _, id := range f.OwnerIDs {
		owners[id] = true
	}
	var out []models.CommissionEvent
	for _, ev := range l.events {
		if owners[ev.OwnerID] && in(ev.Type, f.Types) && in(ev.Status, f.Statuses) &&
			!ev.CreatedAt.Before(f.From) && !ev.CreatedAt.After(f.To) {
			out = append(out, ev)
		}
	}
	return out, nil
}

type fakePolicies struct {
	mu       sync.Mutex
	policies map[string]models.MatchingPolicy
	err      error
}

func newFakePolicies(policies ...models.MatchingPolicy) *fakePolicies {
	fp := &fakePolicies{policies: map[string]models.MatchingPolicy{}}
	for _, p := range policies {
		p.IsActive = true
		fp.policies[p.RankName] = p
	}
	return fp
}

func (p *fakePolicies) ActivePolicy(_ context.Context, rank string) (*models.MatchingPolicy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	pol, ok := p.policies[rank]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &pol, nil
}

func (p *fakePolicies) ActivePolicies(context.Context) ([]models.MatchingPolicy, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return nil, p.err
	}
	var out []models.MatchingPolicy
	for _, pol := range p.policies {
		out = append(out, pol)
	}
	return out, nil
}

func (p *fakePolicies) ReplaceActivePolicy(_ context.Context, policy *models.MatchingPolicy) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.policies[policy.RankName] = *policy
	return nil
}

type fakeBonuses struct {
	mu      sync.Mutex
	records []models.MatchingBonusRecord
	details map[primitive.ObjectID][]models.ContributionDetail
	// pause widens the window between the existence check and the insert.
	pause     time.Duration
	createErr error
}

func newFakeBonuses() *fakeBonuses {
	return &fakeBonuses{details: map[primitive.ObjectID][]models.ContributionDetail{}}
}

func (b *fakeBonuses) find(owner primitive.ObjectID, start, end time.Time) *models.MatchingBonusRecord {
	for i := range b.records {
		r := b.records[i]
		if r.OwnerID == owner && r.CycleStart.Equal(start) && r.CycleEnd.Equal(end) {
			return &r
		}
	}
	return nil
}

func (b *fakeBonuses) FindMatchingBonus(_ context.Context, owner primitive.ObjectID, start, end time.Time) (*models.MatchingBonusRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if r := b.find(owner, start, end); r != nil {
		return r, nil
	}
	return nil, models.ErrNotFound
}

func (b *fakeBonuses) CreateMatchingBonus(_ context.Context, record *models.MatchingBonusRecord, details []models.ContributionDetail) (*models.MatchingBonusRecord, error) {
	if b.pause > 0 {
		time.Sleep(b.pause)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.createErr != nil {
		return nil, b.createErr
	}
	if r := b.find(record.OwnerID, *record.CycleStart, *record.CycleEnd); r != nil {
		return r, models.ErrDuplicatePosting
	}
	b.records = append(b.records, *record)
	b.details[record.ID] = append([]models.ContributionDetail(nil), details...)
	return record, nil
}

func (b *fakeBonuses) FindMatchingBonusByID(_ context.Context, owner, id primitive.ObjectID) (*models.MatchingBonusRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, r := range b.records {
		if r.ID == id && r.OwnerID == owner {
			return &r, nil
		}
	}
	return nil, models.ErrNotFound
}

func (b *fakeBonuses) ListMatchingBonuses(_ context.Context, owner primitive.ObjectID, f models.HistoryFilter) ([]models.MatchingBonusRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []models.MatchingBonusRecord
	for i := len(b.records) - 1; i >= 0; i-- {
		r := b.records[i]
		if r.OwnerID != owner || (f.Status != "" && r.Status != f.Status) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (b *fakeBonuses) ContributionDetails(_ context.Context, id primitive.ObjectID) ([]models.ContributionDetail, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.ContributionDetail(nil), b.details[id]...), nil
}

func (b *fakeBonuses) DetailCounts(_ context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := map[primitive.ObjectID]int64{}
	for _, id := range ids {
		out[id] = int64(len(b.details[id]))
	}
	return out, nil
}

func (b *fakeBonuses) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.records)
}

// keyLocker is an in-process Locker with one mutex per key.
type keyLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
	keys  []string
}

func (l *keyLocker) Acquire(_ context.Context, key string, _ time.Duration) (func(context.Context) error, error) {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = map[string]*sync.Mutex{}
	}
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.keys = append(l.keys, key)
	l.mu.Unlock()

	m.Lock()
	return func(context.Context) error {
		m.Unlock()
		return nil
	}, nil
}

type recordingNotifier struct {
	mu    sync.Mutex
	calls []primitive.ObjectID
}

func (n *recordingNotifier) NotifyMatchingBonus(_ context.Context, record *models.MatchingBonusRecord, _ int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, record.ID)
	return nil
}

func pct(levels map[string]string) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for k, v := range levels {
		out[k] = decimal.RequireFromString(v)
	}
	return out
}

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}
