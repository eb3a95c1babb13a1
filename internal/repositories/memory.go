package repositories

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/quicknet-il/support-bot-be/internal/models"
)

// In-memory repository implementations. They enforce the same invariants
// as the Postgres-backed ones and serve as fixtures for engine tests and
// as a no-dependency mode for local development.

// MemoryStore bundles one in-memory repo per entity.
type MemoryStore struct {
	Conversations *MemoryConversationRepo
	Templates     *MemoryTemplateRepo
	Policies      *MemoryPolicyRepo
	Handoffs      *MemoryHandoffRepo
	Analytics     *MemoryAnalyticsRepo
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Conversations: NewMemoryConversationRepo(),
		Templates:     NewMemoryTemplateRepo(),
		Policies:      NewMemoryPolicyRepo(),
		Handoffs:      NewMemoryHandoffRepo(),
		Analytics:     NewMemoryAnalyticsRepo(),
	}
}

// MemoryConversationRepo

type MemoryConversationRepo struct {
	mu            sync.Mutex
	conversations map[uuid.UUID]*models.Conversation
	messages      []*models.Message
	providerIDs   map[string]bool
	nextSeq       int64
}

var _ ConversationRepo = (*MemoryConversationRepo)(nil)

func NewMemoryConversationRepo() *MemoryConversationRepo {
	return &MemoryConversationRepo{
		conversations: make(map[uuid.UUID]*models.Conversation),
		providerIDs:   make(map[string]bool),
	}
}

func (m *MemoryConversationRepo) GetOrCreate(ctx context.Context, visitorID string, channel models.Channel) (*models.Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range m.conversations {
		if c.VisitorID == visitorID && c.Channel == channel && c.Status != models.StatusClosed {
			cp := *c
			return &cp, false, nil
		}
	}

	now := time.Now()
	conv := &models.Conversation{
		ID:        uuid.New(),
		VisitorID: visitorID,
		Channel:   channel,
		Status:    models.StatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	m.conversations[conv.ID] = conv
	cp := *conv
	return &cp, true, nil
}

func (m *MemoryConversationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *conv
	return &cp, nil
}

func (m *MemoryConversationRepo) AppendMessage(ctx context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[msg.ConversationID]
	if !ok {
		return ErrNotFound
	}
	if msg.ProviderMessageID != "" {
		if m.providerIDs[msg.ProviderMessageID] {
			return ErrDuplicateDelivery
		}
		m.providerIDs[msg.ProviderMessageID] = true
	}

	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	m.nextSeq++
	msg.Seq = m.nextSeq
	cp := *msg
	m.messages = append(m.messages, &cp)
	conv.MessageCount++
	conv.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryConversationRepo) Transition(ctx context.Context, id uuid.UUID, to models.ConversationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	if !conv.CanTransition(to) {
		return ErrConflict
	}
	conv.Status = to
	conv.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryConversationRepo) SetTurnMeta(ctx context.Context, id uuid.UUID, language, intent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	if language != "" {
		conv.Language = language
	}
	if intent != "" {
		conv.Intent = intent
	}
	return nil
}

func (m *MemoryConversationRepo) SetMessageIntent(ctx context.Context, messageID uuid.UUID, intent string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, msg := range m.messages {
		if msg.ID == messageID {
			msg.Intent = intent
			return nil
		}
	}
	return ErrNotFound
}

func (m *MemoryConversationRepo) RecentMessages(ctx context.Context, id uuid.UUID, n int) ([]models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var msgs []models.Message
	for _, msg := range m.messages {
		if msg.ConversationID == id {
			msgs = append(msgs, *msg)
		}
	}
	// insertion order already breaks createdAt ties
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	return msgs, nil
}

func (m *MemoryConversationRepo) List(ctx context.Context, status models.ConversationStatus, limit, offset int) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var convs []models.Conversation
	for _, c := range m.conversations {
		if status == "" || c.Status == status {
			convs = append(convs, *c)
		}
	}
	sort.Slice(convs, func(i, j int) bool {
		return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
	})
	if offset >= len(convs) {
		return nil, nil
	}
	convs = convs[offset:]
	if limit > 0 && len(convs) > limit {
		convs = convs[:limit]
	}
	return convs, nil
}

func (m *MemoryConversationRepo) ListIdle(ctx context.Context, channel models.Channel, cutoff time.Time) ([]models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var convs []models.Conversation
	for _, c := range m.conversations {
		if c.Channel == channel && c.Status == models.StatusActive && c.UpdatedAt.Before(cutoff) {
			convs = append(convs, *c)
		}
	}
	return convs, nil
}

// MemoryTemplateRepo

type MemoryTemplateRepo struct {
	mu        sync.Mutex
	templates map[uuid.UUID]*models.Template
}

var _ TemplateRepo = (*MemoryTemplateRepo)(nil)

func NewMemoryTemplateRepo() *MemoryTemplateRepo {
	return &MemoryTemplateRepo{templates: make(map[uuid.UUID]*models.Template)}
}

func (m *MemoryTemplateRepo) GetActiveByKey(ctx context.Context, key string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, t := range m.templates {
		if t.Key == key && t.Active {
			cp := *t
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryTemplateRepo) List(ctx context.Context) ([]models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ts []models.Template
	for _, t := range m.templates {
		ts = append(ts, *t)
	}
	sort.Slice(ts, func(i, j int) bool { return ts[i].Key < ts[j].Key })
	return ts, nil
}

func (m *MemoryTemplateRepo) Create(ctx context.Context, t *models.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.templates {
		if other.Key == t.Key && other.Active && t.Active {
			return ErrConflict
		}
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

func (m *MemoryTemplateRepo) Update(ctx context.Context, t *models.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.templates[t.ID]; !ok {
		return ErrNotFound
	}
	cp := *t
	m.templates[t.ID] = &cp
	return nil
}

// MemoryPolicyRepo

type MemoryPolicyRepo struct {
	mu       sync.Mutex
	policies map[uuid.UUID]*models.Policy
}

var _ PolicyRepo = (*MemoryPolicyRepo)(nil)

func NewMemoryPolicyRepo() *MemoryPolicyRepo {
	return &MemoryPolicyRepo{policies: make(map[uuid.UUID]*models.Policy)}
}

func (m *MemoryPolicyRepo) ListActive(ctx context.Context) ([]models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ps []models.Policy
	for _, p := range m.policies {
		if p.Active {
			ps = append(ps, *p)
		}
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Type < ps[j].Type })
	return ps, nil
}

func (m *MemoryPolicyRepo) List(ctx context.Context) ([]models.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ps []models.Policy
	for _, p := range m.policies {
		ps = append(ps, *p)
	}
	sort.Slice(ps, func(i, j int) bool { return ps[i].Type < ps[j].Type })
	return ps, nil
}

func (m *MemoryPolicyRepo) Create(ctx context.Context, p *models.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	cp := *p
	m.policies[p.ID] = &cp
	return nil
}

func (m *MemoryPolicyRepo) Update(ctx context.Context, p *models.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.policies[p.ID]; !ok {
		return ErrNotFound
	}
	cp := *p
	m.policies[p.ID] = &cp
	return nil
}

// MemoryHandoffRepo

type MemoryHandoffRepo struct {
	mu       sync.Mutex
	handoffs map[uuid.UUID]*models.Handoff
}

var _ HandoffRepo = (*MemoryHandoffRepo)(nil)

func NewMemoryHandoffRepo() *MemoryHandoffRepo {
	return &MemoryHandoffRepo{handoffs: make(map[uuid.UUID]*models.Handoff)}
}

func (m *MemoryHandoffRepo) Create(ctx context.Context, h *models.Handoff) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, other := range m.handoffs {
		if other.ConversationID == h.ConversationID && other.Status == models.HandoffPending {
			return ErrConflict
		}
	}
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	h.Status = models.HandoffPending
	if h.CreatedAt.IsZero() {
		h.CreatedAt = time.Now()
	}
	cp := *h
	m.handoffs[h.ID] = &cp
	return nil
}

func (m *MemoryHandoffRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Handoff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handoffs[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *h
	return &cp, nil
}

func (m *MemoryHandoffRepo) PendingFor(ctx context.Context, conversationID uuid.UUID) (*models.Handoff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, h := range m.handoffs {
		if h.ConversationID == conversationID && h.Status == models.HandoffPending {
			cp := *h
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryHandoffRepo) List(ctx context.Context, status models.HandoffStatus, limit, offset int) ([]models.Handoff, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var hs []models.Handoff
	for _, h := range m.handoffs {
		if status == "" || h.Status == status {
			hs = append(hs, *h)
		}
	}
	sort.Slice(hs, func(i, j int) bool { return hs[i].CreatedAt.After(hs[j].CreatedAt) })
	if offset >= len(hs) {
		return nil, nil
	}
	hs = hs[offset:]
	if limit > 0 && len(hs) > limit {
		hs = hs[:limit]
	}
	return hs, nil
}

func (m *MemoryHandoffRepo) Resolve(ctx context.Context, id uuid.UUID, assignedTo *uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	h, ok := m.handoffs[id]
	if !ok || h.Status != models.HandoffPending {
		return ErrNotFound
	}
	now := time.Now()
	h.Status = models.HandoffResolved
	h.ResolvedAt = &now
	if assignedTo != nil {
		h.AssignedTo = assignedTo
	}
	return nil
}

// MemoryAnalyticsRepo

type MemoryAnalyticsRepo struct {
	mu   sync.Mutex
	rows map[string]*models.AnalyticsDaily
}

var _ AnalyticsRepo = (*MemoryAnalyticsRepo)(nil)

func NewMemoryAnalyticsRepo() *MemoryAnalyticsRepo {
	return &MemoryAnalyticsRepo{rows: make(map[string]*models.AnalyticsDaily)}
}

func (m *MemoryAnalyticsRepo) row(day time.Time, channel models.Channel) *models.AnalyticsDaily {
	key := day.Format("2006-01-02") + "|" + string(channel)
	r, ok := m.rows[key]
	if !ok {
		r = &models.AnalyticsDaily{Date: day, Channel: channel}
		m.rows[key] = r
	}
	return r
}

func (m *MemoryAnalyticsRepo) IncrConversations(ctx context.Context, day time.Time, channel models.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row(day, channel).TotalConversations++
	return nil
}

func (m *MemoryAnalyticsRepo) IncrMessages(ctx context.Context, day time.Time, channel models.Channel, n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row(day, channel).TotalMessages += int64(n)
	return nil
}

func (m *MemoryAnalyticsRepo) IncrHandoffs(ctx context.Context, day time.Time, channel models.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row(day, channel).Handoffs++
	return nil
}

func (m *MemoryAnalyticsRepo) AddCsat(ctx context.Context, day time.Time, channel models.Channel, score int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.row(day, channel)
	r.CsatSum += int64(score)
	r.CsatCount++
	return nil
}

func (m *MemoryAnalyticsRepo) IncrStoreClicks(ctx context.Context, day time.Time, channel models.Channel) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.row(day, channel).StoreClicks++
	return nil
}

func (m *MemoryAnalyticsRepo) ListRange(ctx context.Context, from, to time.Time) ([]models.AnalyticsDaily, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rows []models.AnalyticsDaily
	for _, r := range m.rows {
		if !r.Date.Before(from) && !r.Date.After(to) {
			rows = append(rows, *r)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date.Equal(rows[j].Date) {
			return rows[i].Channel < rows[j].Channel
		}
		return rows[i].Date.After(rows[j].Date)
	})
	return rows, nil
}
