package campaignapi

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

var _ API = (*FakeAPI)(nil)

// FakeAPI is an in-memory API for tests. Campaigns maps screen to the raw
// campaign payloads eligible there; ids are read from each payload's "id".
type FakeAPI struct {
	mu sync.Mutex

	Token     string
	Campaigns map[string][]json.RawMessage

	// Errors injected per operation ("validate", "eligible", "hydrate", "action", "capture").
	Errs map[string]error

	calls   map[string]int
	actions []Action
	events  []GenericEvent
	holds   map[string]*hold
}

type hold struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// NewFakeAPI returns a fake that validates any account with token "tok".
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		Token:     "tok",
		Campaigns: make(map[string][]json.RawMessage),
		Errs:      make(map[string]error),
		calls:     make(map[string]int),
		holds:     make(map[string]*hold),
	}
}

// Hold makes ListEligibleCampaigns for screen block until release is called
// or the call's context ends. entered is closed when a call starts waiting.
func (f *FakeAPI) Hold(screen string) (entered <-chan struct{}, release func()) {
	h := &hold{entered: make(chan struct{}), release: make(chan struct{})}
	f.mu.Lock()
	f.holds[screen] = h
	f.mu.Unlock()
	var once sync.Once
	return h.entered, func() { once.Do(func() { close(h.release) }) }
}

// SetCampaigns replaces the payloads eligible on screen.
func (f *FakeAPI) SetCampaigns(screen string, raws ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := make([]json.RawMessage, 0, len(raws))
	for _, r := range raws {
		list = append(list, json.RawMessage(r))
	}
	f.Campaigns[screen] = list
}

// SetErr injects err for op; nil clears it.
func (f *FakeAPI) SetErr(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.Errs, op)
		return
	}
	f.Errs[op] = err
}

// Calls returns how many times op was invoked.
func (f *FakeAPI) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Actions returns the recorded impressions and clicks.
func (f *FakeAPI) Actions() []Action {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Action(nil), f.actions...)
}

// Events returns the captured generic events.
func (f *FakeAPI) Events() []GenericEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]GenericEvent(nil), f.events...)
}

func (f *FakeAPI) begin(op, tok string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[op]++
	if err := f.Errs[op]; err != nil {
		return err
	}
	if op != "validate" && tok != f.Token {
		return ErrUnauthorized
	}
	return nil
}

func (f *FakeAPI) ValidateAccount(_ context.Context, _, _ string) (string, error) {
	if err := f.begin("validate", ""); err != nil {
		return "", err
	}
	return f.Token, nil
}

func (f *FakeAPI) ListEligibleCampaigns(ctx context.Context, tok, screen string, _ []string) ([]string, error) {
	if err := f.begin("eligible", tok); err != nil {
		return nil, err
	}
	f.mu.Lock()
	h := f.holds[screen]
	f.mu.Unlock()
	if h != nil {
		h.once.Do(func() { close(h.entered) })
		select {
		case <-h.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	ids := make([]string, 0, len(f.Campaigns[screen]))
	for i, raw := range f.Campaigns[screen] {
		ids = append(ids, fakeID(screen, i, raw))
	}
	return ids, nil
}

// HydrateCampaigns returns the payloads for ids in request order. Unknown ids
// are skipped.
func (f *FakeAPI) HydrateCampaigns(_ context.Context, tok, _ string, ids []string, _ map[string]string) ([]json.RawMessage, error) {
	if err := f.begin("hydrate", tok); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	byID := make(map[string]json.RawMessage)
	for screen, raws := range f.Campaigns {
		for i, raw := range raws {
			byID[fakeID(screen, i, raw)] = raw
		}
	}
	out := make([]json.RawMessage, 0, len(ids))
	for _, id := range ids {
		if raw, ok := byID[id]; ok {
			out = append(out, raw)
		}
	}
	return out, nil
}

// fakeID reads the payload's id, inventing one for payloads without.
func fakeID(screen string, i int, raw json.RawMessage) string {
	var head struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(raw, &head)
	if head.ID == "" {
		return fmt.Sprintf("%s#%d", screen, i)
	}
	return head.ID
}

func (f *FakeAPI) RecordAction(_ context.Context, tok string, a Action) error {
	if err := f.begin("action", tok); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, a)
	return nil
}

func (f *FakeAPI) CaptureEvent(_ context.Context, tok string, ev GenericEvent) error {
	if err := f.begin("capture", tok); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}
